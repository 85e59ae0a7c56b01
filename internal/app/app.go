// Package app builds the service object graph shared by the server and the CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/prisvakt/compliance-service/config"
	"github.com/prisvakt/compliance-service/internal/cache"
	"github.com/prisvakt/compliance-service/internal/commerce"
	"github.com/prisvakt/compliance-service/internal/compliance"
	"github.com/prisvakt/compliance-service/internal/database"
	"github.com/prisvakt/compliance-service/internal/events"
	"github.com/prisvakt/compliance-service/internal/http/ratelimit"
	"github.com/prisvakt/compliance-service/internal/jobs"
	"github.com/prisvakt/compliance-service/internal/locks"
	"github.com/prisvakt/compliance-service/internal/metrics"
	"github.com/prisvakt/compliance-service/internal/scanner"
	"github.com/prisvakt/compliance-service/internal/taskqueue"
)

// App holds the wired services. Close releases them.
type App struct {
	Store     *database.Store
	Queue     *taskqueue.TaskQueue
	Scanner   *scanner.Scanner
	Retention *jobs.Retention
	Cache     *cache.WidgetCache
	Publisher events.Publisher
	Metrics   *metrics.Recorder
	Rules     compliance.RuleSet

	redis  redis.UniversalClient
	logger *zerolog.Logger
}

// New connects to the database (running migrations) and wires the scanner,
// queue and retention job. Redis and Kafka are optional.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	dbURL := config.GetDatabaseURL()
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL not set")
	}

	if err := database.Connect(ctx, cfg.Database.PoolConfig(dbURL, cfg.Telemetry.Enabled)); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.Migrate(ctx, database.Pool()); err != nil {
		database.Close()
		return nil, err
	}

	rules, err := cfg.Compliance.RuleSet()
	if err != nil {
		database.Close()
		return nil, err
	}

	a := &App{
		Store:     database.NewStore(database.Pool()),
		Queue:     taskqueue.New(database.Pool()),
		Metrics:   metrics.NewRecorder(),
		Publisher: events.NopPublisher{},
		Rules:     rules,
		logger:    logger,
	}

	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			database.Close()
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		a.redis = redis.NewClient(opts)
		if err := a.redis.Ping(ctx).Err(); err != nil {
			// scans still run without locks on a single replica
			logger.Warn().Err(err).Msg("Redis unreachable, locks and widget cache degrade to no-ops")
		}
	}
	a.Cache = cache.NewWidgetCache(a.redis, cfg.Redis.WidgetTTL)

	if len(cfg.Kafka.Brokers) > 0 {
		a.Publisher = events.NewKafkaPublisher(events.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic))
		logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("Publishing compliance events")
	}

	source := commerce.NewClient(commerce.Config{
		APIVersion: cfg.Commerce.APIVersion,
		RateLimit: ratelimit.Config{
			RequestsPerSecond: cfg.Commerce.RequestsPerSecond,
			MaxRetries:        cfg.Commerce.MaxRetries,
			InitialBackoff:    cfg.Commerce.InitialBackoff,
			MaxBackoff:        cfg.Commerce.MaxBackoff,
		},
		Timeout: cfg.Commerce.Timeout,
		OnRetry: a.Metrics.RecordCommerceRetry,
	}, logger)

	evaluator := compliance.NewEvaluator(
		compliance.WithLogger(logger),
		compliance.WithSkipRecorder(a.Metrics),
	)

	a.Scanner = scanner.New(a.Store, source, evaluator, scanner.Config{
		Concurrency:    cfg.Scan.Concurrency,
		Timeout:        cfg.Scan.Timeout,
		LockTTL:        cfg.Scan.LockTTL,
		Rules:          rules,
		RulesByCountry: map[string]compliance.RuleSet{rules.CountryCode: rules},
	},
		scanner.WithLocker(locks.NewLocker(a.redis, "")),
		scanner.WithPublisher(a.Publisher),
		scanner.WithCache(a.Cache),
		scanner.WithMetrics(a.Metrics),
		scanner.WithLogger(logger),
	)

	a.Retention = jobs.NewRetention(a.Store, a.Queue, jobs.RetentionConfig{
		ObservationDays: cfg.Retention.ObservationDays,
		TaskDays:        cfg.Retention.TaskDays,
		MinHistory:      rules.RequiredHistory(),
	}, logger)

	return a, nil
}

// RulesFor returns the rule set for a shop country
func (a *App) RulesFor(countryCode string) compliance.RuleSet {
	return a.Scanner.RulesFor(countryCode)
}

// RedisPing returns a health probe for the Redis client, or nil when Redis
// is not configured
func (a *App) RedisPing() func(ctx context.Context) error {
	if a.redis == nil {
		return nil
	}
	return func(ctx context.Context) error {
		return a.redis.Ping(ctx).Err()
	}
}

// Close flushes the event publisher and closes the Redis and database
// connections. It waits at most timeout for the publisher.
func (a *App) Close(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := a.Publisher.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to close event publisher")
		}
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		a.logger.Warn().Dur("timeout", timeout).Msg("Event publisher did not close in time")
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to close redis client")
		}
	}
	database.Close()
}
