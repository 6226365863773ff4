// Package dynamodb reads pricing rules and base constants from DynamoDB.
//
// Table requirements:
//   - rules: PK category (string), SK name (string)
//   - constants: PK service_type (string)
package dynamodb

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"quote-engine/core/condition"
	"quote-engine/core/gateway"
	"quote-engine/core/rules"
	"quote-engine/core/types"
	"quote-engine/internal/errors"
	"quote-engine/internal/logging"
)

const (
	DefaultRulesTable     = "pricing_rules"
	DefaultConstantsTable = "base_constants"
)

// Config holds the client and table settings
type Config struct {
	Region         string
	Endpoint       string
	RulesTable     string
	ConstantsTable string

	// Static credentials for local DynamoDB; empty uses the default chain
	AccessKeyID     string
	SecretAccessKey string
}

// NewClient creates a DynamoDB client. A custom Endpoint targets DynamoDB
// Local or LocalStack.
func NewClient(ctx context.Context, cfg Config) (*dynamodb.Client, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.ConfigurationUnavailable("failed to load AWS configuration", err)
	}
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

type ruleItem struct {
	Category     string `dynamodbav:"category"`
	Name         string `dynamodbav:"name"`
	ID           string `dynamodbav:"id"`
	ServiceType  string `dynamodbav:"service_type"`
	Value        string `dynamodbav:"value"`
	PercentBased bool   `dynamodbav:"percent_based"`
	Condition    string `dynamodbav:"condition,omitempty"`
	IsActive     bool   `dynamodbav:"is_active"`
	Version      int    `dynamodbav:"version"`
}

func (it ruleItem) toRule() (rules.Rule, error) {
	id := it.ID
	if id == "" {
		id = it.Name
	}
	r := rules.Rule{
		ID:           id,
		Name:         it.Name,
		PercentBased: it.PercentBased,
		Category:     types.Category(it.Category),
		ServiceType:  types.ServiceType(it.ServiceType),
		IsActive:     it.IsActive,
		Version:      it.Version,
	}
	v, err := decimal.NewFromString(it.Value)
	if err != nil {
		return r, errors.InvalidRule(id, "rule %s: value %q is not a number", id, it.Value)
	}
	r.Value = v

	cond, err := condition.Parse([]byte(it.Condition))
	if err != nil {
		return r, errors.InvalidRule(id, "rule %s: %v", id, err)
	}
	r.Condition = cond
	return r, nil
}

type constantsItem struct {
	ServiceType    string            `dynamodbav:"service_type"`
	PricePerM3     string            `dynamodbav:"price_per_m3"`
	PricePerKm     string            `dynamodbav:"price_per_km"`
	PricePerWorker string            `dynamodbav:"price_per_worker"`
	PricePerHour   string            `dynamodbav:"price_per_hour,omitempty"`
	AddOns         map[string]string `dynamodbav:"add_ons,omitempty"`
}

func (it constantsItem) toConstants() (types.BaseConstants, error) {
	var c types.BaseConstants
	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"price_per_m3", it.PricePerM3, &c.PricePerM3},
		{"price_per_km", it.PricePerKm, &c.PricePerKm},
		{"price_per_worker", it.PricePerWorker, &c.PricePerWorker},
		{"price_per_hour", it.PricePerHour, &c.PricePerHour},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			return c, errors.Newf(errors.TypeConfig, "base constants %s: %s %q is not a number", it.ServiceType, f.name, f.raw)
		}
		*f.dst = d
	}
	if len(it.AddOns) > 0 {
		c.AddOns = make(map[string]decimal.Decimal, len(it.AddOns))
		for name, raw := range it.AddOns {
			d, err := decimal.NewFromString(raw)
			if err != nil {
				return c, errors.Newf(errors.TypeConfig, "base constants %s: add-on %s %q is not a number", it.ServiceType, name, raw)
			}
			c.AddOns[name] = d
		}
	}
	return c, nil
}

// Source is a gateway source that scans both tables on every load
type Source struct {
	client         dynamodb.ScanAPIClient
	rulesTable     string
	constantsTable string
	logger         *zap.Logger
}

// NewSource creates a source
func NewSource(client dynamodb.ScanAPIClient, cfg Config, logger *zap.Logger) *Source {
	s := &Source{
		client:         client,
		rulesTable:     cfg.RulesTable,
		constantsTable: cfg.ConstantsTable,
		logger:         logging.Component(logger, "dynamodb"),
	}
	if s.rulesTable == "" {
		s.rulesTable = DefaultRulesTable
	}
	if s.constantsTable == "" {
		s.constantsTable = DefaultConstantsTable
	}
	return s
}

// Load scans the rules and constants tables into a validated snapshot
func (s *Source) Load(ctx context.Context) (*gateway.Snapshot, error) {
	ruleItems, err := s.scan(ctx, s.rulesTable)
	if err != nil {
		return nil, errors.ConfigurationUnavailable("failed to scan "+s.rulesTable, err)
	}
	constItems, err := s.scan(ctx, s.constantsTable)
	if err != nil {
		return nil, errors.ConfigurationUnavailable("failed to scan "+s.constantsTable, err)
	}

	var raw []rules.Rule
	var decodeErrs []error
	for _, av := range ruleItems {
		var it ruleItem
		if err := attributevalue.UnmarshalMap(av, &it); err != nil {
			decodeErrs = append(decodeErrs, errors.InvalidRule("", "malformed rule item: %v", err))
			continue
		}
		r, err := it.toRule()
		if err != nil {
			decodeErrs = append(decodeErrs, err)
			continue
		}
		raw = append(raw, r)
	}

	constants := make(map[types.ServiceType]types.BaseConstants, len(constItems))
	for _, av := range constItems {
		var it constantsItem
		if err := attributevalue.UnmarshalMap(av, &it); err != nil {
			return nil, errors.Wrap(errors.TypeConfig, "malformed base constants item", err)
		}
		c, err := it.toConstants()
		if err != nil {
			return nil, err
		}
		constants[types.ServiceType(it.ServiceType)] = c
	}

	s.logger.Debug("tables scanned",
		zap.Int("rule_items", len(ruleItems)),
		zap.Int("constant_items", len(constItems)))
	return gateway.NewSnapshot(raw, constants, time.Now().UTC(), s.logger, decodeErrs...)
}

func (s *Source) scan(ctx context.Context, table string) ([]map[string]ddbtypes.AttributeValue, error) {
	var items []map[string]ddbtypes.AttributeValue
	p := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:      aws.String(table),
		ConsistentRead: aws.Bool(true),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
	}
	return items, nil
}
