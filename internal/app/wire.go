package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/alanyoungcy/matchcast/internal/blob/s3"
	"github.com/alanyoungcy/matchcast/internal/cache/redis"
	"github.com/alanyoungcy/matchcast/internal/classifier"
	"github.com/alanyoungcy/matchcast/internal/config"
	"github.com/alanyoungcy/matchcast/internal/domain"
	"github.com/alanyoungcy/matchcast/internal/notify"
	"github.com/alanyoungcy/matchcast/internal/service"
	"github.com/alanyoungcy/matchcast/internal/store/postgres"
	kafkastream "github.com/alanyoungcy/matchcast/internal/stream/kafka"
)

// Dependencies bundles every infrastructure dependency the modes use. It is
// constructed by Wire and torn down by the returned cleanup function. Fields
// for backends that were not wired stay nil.
type Dependencies struct {
	Postgres *postgres.Client
	Redis    *redis.Client
	S3       *s3blob.Client

	// Stores
	MatchStore      domain.MatchStore
	HistoryStore    domain.RatingHistoryStore
	PredictionStore domain.PredictionStore
	LiveEventStore  domain.LiveEventStore
	AuditStore      domain.AuditStore

	// Caches
	FeatureCache domain.FeatureCache
	LiveCache    domain.LiveMatchCache
	RateLimiter  domain.RateLimiter
	LockManager  domain.LockManager
	SignalBus    domain.SignalBus

	// Blob storage
	BlobReader domain.BlobReader
	BlobWriter domain.BlobWriter
	Archiver   domain.Archiver

	// Live event mirror (Kafka)
	Mirror service.EventMirror

	Classifier domain.Classifier
	Notifier   *notify.Notifier
}

// needsPostgres reports whether mode reads or writes the match log.
func needsPostgres(mode string) bool {
	return mode != "simulate"
}

// Wire constructs the concrete dependencies for cfg and returns them with a
// cleanup function that releases them in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(what string, err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %s: %w", what, err)
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	var (
		predictions *postgres.PredictionStore
		events      *postgres.LiveEventStore
		history     *postgres.RatingHistoryStore
	)
	if needsPostgres(cfg.Mode) {
		pg, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail("postgres", err)
		}
		closers = append(closers, pg.Close)

		if cfg.Postgres.RunMigrations {
			if err := pg.RunMigrations(ctx); err != nil {
				return fail("postgres migrations", err)
			}
		}

		pool := pg.Pool()
		predictions = postgres.NewPredictionStore(pool)
		events = postgres.NewLiveEventStore(pool)
		history = postgres.NewRatingHistoryStore(pool)

		deps.Postgres = pg
		deps.MatchStore = postgres.NewMatchStore(pool)
		deps.HistoryStore = history
		deps.PredictionStore = predictions
		deps.LiveEventStore = events
		deps.AuditStore = postgres.NewAuditStore(pool)
	}

	// --- Redis ---
	rc, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
		Prefix:     "matchcast",
	})
	if err != nil {
		return fail("redis", err)
	}
	closers = append(closers, func() { _ = rc.Close() })

	deps.Redis = rc
	deps.FeatureCache = redis.NewFeatureCache(rc, time.Duration(cfg.Redis.FeatureTTLHours)*time.Hour)
	deps.LiveCache = redis.NewLiveMatchCache(rc, cfg.Live.StateTTL.Duration)
	deps.RateLimiter = redis.NewRateLimiter(rc)
	deps.LockManager = redis.NewLockManager(rc)
	deps.SignalBus = redis.NewSignalBus(rc, cfg.Redis.StreamMaxLen)

	// --- S3 ---
	if cfg.S3.Enabled {
		sc, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail("s3", err)
		}
		closers = append(closers, func() { _ = sc.Close() })

		writer := s3blob.NewWriter(sc)
		deps.S3 = sc
		deps.BlobReader = s3blob.NewReader(sc)
		deps.BlobWriter = writer
		if deps.Postgres != nil {
			deps.Archiver = s3blob.NewArchiver(writer, predictions, events, history, deps.AuditStore)
		}
	}

	// --- Kafka ---
	if len(cfg.Kafka.Brokers) > 0 {
		pub, err := kafkastream.NewPublisher(kafkastream.Config{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			BatchTimeout: cfg.Kafka.BatchTimeout.Duration,
		}, logger)
		if err != nil {
			return fail("kafka", err)
		}
		closers = append(closers, func() { _ = pub.Close() })
		deps.Mirror = pub
	}

	deps.Classifier = newClassifier(cfg.Classifier, logger)
	deps.Notifier = notify.FromConfig(cfg.Notify, logger)

	return deps, cleanup, nil
}

// newClassifier builds the configured classifier. A remote model is always
// wrapped in a circuit breaker, optionally falling back to the baseline.
func newClassifier(cfg config.ClassifierConfig, logger *slog.Logger) domain.Classifier {
	baseline := classifier.NewBaseline(cfg.HomeAdvantage)
	if cfg.Kind != "remote" {
		return baseline
	}
	var fallback domain.Classifier
	if cfg.FallbackBaseline {
		fallback = baseline
	}
	remote := classifier.NewRemote(cfg.RemoteURL, cfg.Timeout.Duration)
	return classifier.NewBreaker(remote, fallback, classifier.BreakerConfig{
		Name:     "remote_classifier",
		Failures: cfg.BreakerFailures,
		OpenFor:  cfg.BreakerOpenFor.Duration,
	}, logger)
}
