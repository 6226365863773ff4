// Package postgres stores pricing rules and base constants in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"quote-engine/core/condition"
	"quote-engine/core/gateway"
	"quote-engine/core/rules"
	"quote-engine/core/types"
	"quote-engine/internal/errors"
	"quote-engine/internal/logging"
)

// Config holds connection settings
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}

// Open connects to PostgreSQL, retrying with exponential backoff until
// ConnectTimeout elapses
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*sql.DB, error) {
	logger = logging.Component(logger, "postgres")

	retryPolicy := backoff.NewExponentialBackOff()
	retryPolicy.MaxElapsedTime = cfg.ConnectTimeout
	if retryPolicy.MaxElapsedTime <= 0 {
		retryPolicy.MaxElapsedTime = time.Minute
	}
	retryPolicy.MaxInterval = 10 * time.Second

	logger.Info("connecting to PostgreSQL")

	var db *sql.DB
	err := backoff.RetryNotify(
		func() error {
			conn, err := sql.Open("postgres", cfg.DSN)
			if err != nil {
				return backoff.Permanent(fmt.Errorf("open: %w", err))
			}
			if err := conn.PingContext(ctx); err != nil {
				conn.Close()
				return fmt.Errorf("ping: %w", err)
			}
			db = conn
			return nil
		},
		backoff.WithContext(retryPolicy, ctx),
		func(err error, next time.Duration) {
			logger.Warn("PostgreSQL connection failed, retrying",
				zap.Error(err),
				zap.Duration("next_attempt_in", next))
		},
	)
	if err != nil {
		return nil, errors.ConfigurationUnavailable("failed to connect to PostgreSQL", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	logger.Info("connected to PostgreSQL")
	return db, nil
}

const (
	selectRules = `
        SELECT id, name, category, service_type, value, percent_based, condition, is_active, version
        FROM pricing_rules
        ORDER BY category, name`

	selectConstants = `
        SELECT service_type, price_per_m3, price_per_km, price_per_worker, price_per_hour, add_ons
        FROM base_constants
        ORDER BY service_type`

	upsertRule = `
        INSERT INTO pricing_rules (category, name, id, service_type, value, percent_based, condition, is_active, version, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
        ON CONFLICT (category, name) DO UPDATE SET
            id = EXCLUDED.id,
            service_type = EXCLUDED.service_type,
            value = EXCLUDED.value,
            percent_based = EXCLUDED.percent_based,
            condition = EXCLUDED.condition,
            is_active = EXCLUDED.is_active,
            version = pricing_rules.version + 1,
            updated_at = NOW()`

	upsertConstants = `
        INSERT INTO base_constants (service_type, price_per_m3, price_per_km, price_per_worker, price_per_hour, add_ons, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, NOW())
        ON CONFLICT (service_type) DO UPDATE SET
            price_per_m3 = EXCLUDED.price_per_m3,
            price_per_km = EXCLUDED.price_per_km,
            price_per_worker = EXCLUDED.price_per_worker,
            price_per_hour = EXCLUDED.price_per_hour,
            add_ons = EXCLUDED.add_ons,
            updated_at = NOW()`
)

// ruleRow mirrors a pricing_rules row
type ruleRow struct {
	ID           string
	Name         string
	Category     string
	ServiceType  string
	Value        decimal.Decimal
	PercentBased bool
	Condition    []byte
	IsActive     bool
	Version      int
}

func (r ruleRow) toRule() (rules.Rule, error) {
	rule := rules.Rule{
		ID:           r.ID,
		Name:         r.Name,
		Value:        r.Value,
		PercentBased: r.PercentBased,
		Category:     types.Category(r.Category),
		ServiceType:  types.ServiceType(r.ServiceType),
		IsActive:     r.IsActive,
		Version:      r.Version,
	}
	cond, err := condition.Parse(r.Condition)
	if err != nil {
		return rule, errors.InvalidRule(r.ID, "rule %s: %v", r.ID, err)
	}
	rule.Condition = cond
	return rule, nil
}

func fromRule(r rules.Rule) (ruleRow, error) {
	row := ruleRow{
		ID:           r.ID,
		Name:         r.Name,
		Category:     string(r.Category),
		ServiceType:  string(r.ServiceType),
		Value:        r.Value,
		PercentBased: r.PercentBased,
		IsActive:     r.IsActive,
		Version:      r.Version,
	}
	if !r.Condition.IsZero() {
		body, err := json.Marshal(r.Condition)
		if err != nil {
			return row, err
		}
		row.Condition = body
	}
	return row, nil
}

// constantsRow mirrors a base_constants row
type constantsRow struct {
	ServiceType    string
	PricePerM3     decimal.Decimal
	PricePerKm     decimal.Decimal
	PricePerWorker decimal.Decimal
	PricePerHour   decimal.Decimal
	AddOns         []byte
}

func (r constantsRow) toConstants() (types.ServiceType, types.BaseConstants, error) {
	c := types.BaseConstants{
		PricePerM3:     r.PricePerM3,
		PricePerKm:     r.PricePerKm,
		PricePerWorker: r.PricePerWorker,
		PricePerHour:   r.PricePerHour,
	}
	if len(r.AddOns) > 0 {
		if err := json.Unmarshal(r.AddOns, &c.AddOns); err != nil {
			return "", c, errors.Wrapf(errors.TypeConfig, err, "base constants %s: invalid add_ons", r.ServiceType)
		}
		if len(c.AddOns) == 0 {
			c.AddOns = nil
		}
	}
	return types.ServiceType(r.ServiceType), c, nil
}

// Store reads and writes the pricing tables. It implements gateway.Source.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStore creates a store on an open connection pool
func NewStore(db *sql.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logging.Component(logger, "postgres")}
}

// Load reads both tables into a validated snapshot
func (s *Store) Load(ctx context.Context) (*gateway.Snapshot, error) {
	raw, decodeErrs, err := s.loadRules(ctx)
	if err != nil {
		return nil, errors.ConfigurationUnavailable("failed to read pricing_rules", err)
	}
	constants, err := s.loadConstants(ctx)
	if err != nil {
		return nil, errors.ConfigurationUnavailable("failed to read base_constants", err)
	}
	return gateway.NewSnapshot(raw, constants, time.Now().UTC(), s.logger, decodeErrs...)
}

func (s *Store) loadRules(ctx context.Context) ([]rules.Rule, []error, error) {
	rows, err := s.db.QueryContext(ctx, selectRules)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var out []rules.Rule
	var decodeErrs []error
	for rows.Next() {
		var row ruleRow
		if err := rows.Scan(&row.ID, &row.Name, &row.Category, &row.ServiceType, &row.Value,
			&row.PercentBased, &row.Condition, &row.IsActive, &row.Version); err != nil {
			return nil, nil, err
		}
		r, err := row.toRule()
		if err != nil {
			decodeErrs = append(decodeErrs, err)
			continue
		}
		out = append(out, r)
	}
	return out, decodeErrs, rows.Err()
}

func (s *Store) loadConstants(ctx context.Context) (map[types.ServiceType]types.BaseConstants, error) {
	rows, err := s.db.QueryContext(ctx, selectConstants)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[types.ServiceType]types.BaseConstants)
	for rows.Next() {
		var row constantsRow
		if err := rows.Scan(&row.ServiceType, &row.PricePerM3, &row.PricePerKm,
			&row.PricePerWorker, &row.PricePerHour, &row.AddOns); err != nil {
			return nil, err
		}
		st, c, err := row.toConstants()
		if err != nil {
			return nil, err
		}
		out[st] = c
	}
	return out, rows.Err()
}

// Import upserts rules and constants in one transaction. Rules are keyed by
// (category, name) and their version is bumped on every update.
func (s *Store) Import(ctx context.Context, rs []rules.Rule, constants map[types.ServiceType]types.BaseConstants) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.TypeInternal, "failed to begin import", err)
	}
	defer tx.Rollback()

	for st, c := range constants {
		addOns, err := json.Marshal(c.AddOns)
		if err != nil {
			return errors.Wrapf(errors.TypeInternal, err, "base constants %s", st)
		}
		if _, err := tx.ExecContext(ctx, upsertConstants, string(st), c.PricePerM3, c.PricePerKm,
			c.PricePerWorker, c.PricePerHour, addOns); err != nil {
			return errors.Wrapf(errors.TypeInternal, err, "failed to upsert base constants %s", st)
		}
	}

	for _, r := range rs {
		row, err := fromRule(r)
		if err != nil {
			return errors.Wrapf(errors.TypeInternal, err, "rule %s", r.ID)
		}
		var cond interface{}
		if row.Condition != nil {
			cond = string(row.Condition)
		}
		version := row.Version
		if version <= 0 {
			version = 1
		}
		if _, err := tx.ExecContext(ctx, upsertRule, row.Category, row.Name, row.ID, row.ServiceType,
			row.Value, row.PercentBased, cond, row.IsActive, version); err != nil {
			return errors.Wrapf(errors.TypeInternal, err, "failed to upsert rule %s", r.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.TypeInternal, "failed to commit import", err)
	}
	s.logger.Info("pricing configuration imported",
		zap.Int("rules", len(rs)),
		zap.Int("services", len(constants)))
	return nil
}

// Close closes the connection pool
func (s *Store) Close() error {
	return s.db.Close()
}
