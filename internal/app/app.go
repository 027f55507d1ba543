package app

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"spycats/internal/breeds"
	"spycats/internal/config"
	"spycats/internal/db"
	"spycats/internal/engine"
	"spycats/internal/metrics"
	"spycats/internal/migrate"
)

// App bundles the wired components the CLI and the HTTP server share.
type App struct {
	DB      *sql.DB
	Dialect db.Dialect
	Engine  engine.Engine
	Breeds  *breeds.Validator
	Metrics *metrics.Recorder
	Logger  *zap.Logger
}

// Open connects to the configured store, applies migrations and wires the engine.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, dialect, err := db.Open(db.Config{
		Driver:    cfg.Database.Driver,
		DSN:       cfg.Database.DSN,
		Workspace: cfg.Database.Workspace,
	})
	if err != nil {
		return nil, err
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("connect %s: %w", dialect, err)
	}
	if err := migrate.Migrate(conn, dialect); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	rec := metrics.New()
	validator := breeds.NewValidator(
		breeds.NewHTTPRegistry(cfg.Breeds.URL, cfg.Breeds.APIKey, cfg.Breeds.Timeout),
		breeds.Options{
			CacheTTL:  cfg.Breeds.CacheTTL,
			CacheSize: cfg.Breeds.CacheSize,
			Metrics:   rec,
			Logger:    logger.Named("breeds"),
		},
	)
	eng := engine.New(conn, dialect, validator)
	eng.Metrics = rec
	eng.Logger = logger.Named("engine")
	logger.Debug("store ready", zap.String("dialect", string(dialect)))
	return &App{
		DB:      conn,
		Dialect: dialect,
		Engine:  eng,
		Breeds:  validator,
		Metrics: rec,
		Logger:  logger,
	}, nil
}

func (a *App) Close() error {
	return a.DB.Close()
}
