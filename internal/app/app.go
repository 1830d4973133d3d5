// Package app assembles the service components shared by the server and the
// batch CLI.
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/helixir/scientometrics-service/internal/authz"
	"github.com/helixir/scientometrics-service/internal/cache"
	"github.com/helixir/scientometrics-service/internal/config"
	"github.com/helixir/scientometrics-service/internal/database"
	"github.com/helixir/scientometrics-service/internal/domain"
	"github.com/helixir/scientometrics-service/internal/extractors"
	"github.com/helixir/scientometrics-service/internal/extractors/builtin"
	"github.com/helixir/scientometrics-service/internal/extras"
	"github.com/helixir/scientometrics-service/internal/observability"
	"github.com/helixir/scientometrics-service/internal/repository"
	"github.com/helixir/scientometrics-service/internal/scientometrics"
)

// App holds the wired components.
type App struct {
	Config     *config.Config
	Logger     zerolog.Logger
	DB         *database.DB
	Users      repository.UserRepository
	Authorizer authz.Authorizer
	Bridge     *extras.Bridge
	Registry   *extractors.Registry
	Service    *scientometrics.Service
	Metrics    *observability.Metrics

	redis *redis.Client
}

// New connects to the database and, when enabled, to Redis, then wires the
// reconciler. metrics may be nil.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, metrics *observability.Metrics) (*App, error) {
	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	a := &App{
		Config:     cfg,
		Logger:     logger,
		DB:         db,
		Users:      repository.NewPgUserRepository(db),
		Authorizer: authz.Policy{},
		Metrics:    metrics,
	}

	var metricsCache scientometrics.Cache
	if cfg.Redis.Enabled {
		client, err := cache.Connect(ctx, cfg.Redis)
		if err != nil {
			// The cache only speeds up reads.
			logger.Warn().Err(err).Msg("redis unavailable, metrics cache disabled")
		} else {
			a.redis = client
			metricsCache = cache.NewMetricsCache(client, cfg.Redis.TTL)
			logger.Info().Dur("ttl", cfg.Redis.TTL).Msg("metrics cache enabled")
		}
	}

	a.Bridge = extras.New(a.Users, a.Authorizer, extras.Options{
		ExtrasKey:       cfg.Scientometrics.ExtrasKey,
		LegacyExtrasKey: cfg.Scientometrics.LegacyExtrasKey,
		EnabledSources:  EnabledSources(cfg),
	}, logger, metrics)

	a.Registry = builtin.NewRegistry(cfg.Extractors, metrics)

	deps := scientometrics.Deps{
		Profiles:   a.Bridge,
		Records:    repository.NewPgMetricRepository(db),
		Transactor: repository.NewPgTransactor(db, logger),
		Extractors: a.Registry,
		Authorizer: a.Authorizer,
		Logger:     logger,
		Metrics:    metrics,
	}
	if metricsCache != nil {
		deps.Cache = metricsCache
	}
	a.Service = scientometrics.New(deps)

	return a, nil
}

// EnabledSources returns the configured sources, or the built-in ones when
// none are configured.
func EnabledSources(cfg *config.Config) []domain.Source {
	if sources := domain.ParseSources(cfg.Scientometrics.EnabledMetrics); len(sources) > 0 {
		return sources
	}
	return domain.DefaultSources()
}

// CacheCheck returns a readiness probe for the cache, or nil when caching
// is off.
func (a *App) CacheCheck() func(ctx context.Context) error {
	if a.redis == nil {
		return nil
	}
	return func(ctx context.Context) error {
		return a.redis.Ping(ctx).Err()
	}
}

// Close releases connections.
func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("failed to close redis client")
		}
	}
	a.DB.Close()
}
