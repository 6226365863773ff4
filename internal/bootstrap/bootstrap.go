// Package bootstrap wires configured components into a running engine and
// configuration gateway. It is shared by the server and the CLI.
package bootstrap

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"quote-engine/adapters/dynamodb"
	"quote-engine/adapters/postgres"
	"quote-engine/adapters/redis"
	"quote-engine/adapters/rulebook"
	"quote-engine/core/engine"
	"quote-engine/core/gateway"
	"quote-engine/core/rules"
	"quote-engine/core/volume"
	"quote-engine/internal/config"
	"quote-engine/internal/errors"
)

// App is the wired application
type App struct {
	Engine  *engine.Engine
	Gateway *gateway.CachedGateway

	closers []func() error
}

// Close releases backend connections
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// NewEngine builds the pricing engine from configuration
func NewEngine(cfg *config.Config, logger *zap.Logger) (*engine.Engine, error) {
	est := volume.Default()
	if cfg.Estimator != nil {
		var err error
		if est, err = volume.New(*cfg.Estimator); err != nil {
			return nil, err
		}
	}
	return engine.New(est, rules.NewAggregator(logger), cfg.Pricing, logger), nil
}

// New wires the engine and the configured gateway source
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	eng, err := NewEngine(cfg, logger)
	if err != nil {
		return nil, err
	}
	app := &App{Engine: eng}

	src, err := app.source(ctx, cfg, logger)
	if err != nil {
		app.Close()
		return nil, err
	}

	if rc := cfg.Gateway.Redis; rc.Enabled {
		client := redis.NewClient(redis.Config{Addr: rc.Addr, Password: rc.Password, DB: rc.DB})
		app.closers = append(app.closers, client.Close)
		src = redis.NewSource(client, src, redis.Config{TTL: rc.TTL.Std(), Key: rc.Key}, logger)
	}

	app.Gateway = gateway.New(src, cfg.Gateway.CacheTTL.Std(), logger)
	return app, nil
}

func (a *App) source(ctx context.Context, cfg *config.Config, logger *zap.Logger) (gateway.Source, error) {
	switch cfg.Gateway.Backend {
	case config.BackendRulebook:
		return rulebook.NewSource(cfg.Gateway.RulebookPath, logger), nil

	case config.BackendPostgres:
		db, err := OpenPostgres(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		return postgres.NewStore(db, logger), nil

	case config.BackendDynamoDB:
		dc := cfg.Gateway.DynamoDB
		ddbCfg := dynamodb.Config{
			Region:          dc.Region,
			Endpoint:        dc.Endpoint,
			RulesTable:      dc.RulesTable,
			ConstantsTable:  dc.ConstantsTable,
			AccessKeyID:     dc.AccessKeyID,
			SecretAccessKey: dc.SecretAccessKey,
		}
		client, err := dynamodb.NewClient(ctx, ddbCfg)
		if err != nil {
			return nil, err
		}
		return dynamodb.NewSource(client, ddbCfg, logger), nil
	}
	return nil, errors.Config("unknown gateway backend " + string(cfg.Gateway.Backend))
}

// OpenPostgres connects with the configured pool settings
func OpenPostgres(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*sql.DB, error) {
	pc := cfg.Gateway.Postgres
	if pc.DSN == "" {
		return nil, errors.Config("gateway.postgres.dsn is not set")
	}
	return postgres.Open(ctx, postgres.Config{
		DSN:             pc.DSN,
		MaxOpenConns:    pc.MaxOpenConns,
		MaxIdleConns:    pc.MaxIdleConns,
		ConnMaxLifetime: pc.ConnMaxLifetime.Std(),
		ConnectTimeout:  pc.ConnectTimeout.Std(),
	}, logger)
}

// InvalidateShared deletes the shared Redis snapshot so running instances
// reload from the backend. It does nothing when Redis is disabled.
func InvalidateShared(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	rc := cfg.Gateway.Redis
	if !rc.Enabled {
		return nil
	}
	client := redis.NewClient(redis.Config{Addr: rc.Addr, Password: rc.Password, DB: rc.DB})
	defer client.Close()
	return invalidateShared(ctx, client, rc, logger)
}

func invalidateShared(ctx context.Context, client redis.Client, rc config.RedisConfig, logger *zap.Logger) error {
	src := redis.NewSource(client, nil, redis.Config{TTL: rc.TTL.Std(), Key: rc.Key}, logger)
	if err := src.Invalidate(ctx); err != nil {
		return errors.ConfigurationUnavailable("shared configuration cache could not be invalidated", err)
	}
	return nil
}
