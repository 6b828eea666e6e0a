package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/moderation-ai/modai/automod/analyzer"
	"github.com/moderation-ai/modai/automod/audit"
	"github.com/moderation-ai/modai/automod/cachestore"
	"github.com/moderation-ai/modai/automod/config"
	"github.com/moderation-ai/modai/automod/consumer"
	"github.com/moderation-ai/modai/automod/countstore"
	"github.com/moderation-ai/modai/automod/engine"
	"github.com/moderation-ai/modai/automod/flagstore"
	"github.com/moderation-ai/modai/automod/platform"
	"github.com/moderation-ai/modai/automod/ratelimit"
	"github.com/moderation-ai/modai/util"
	"github.com/moderation-ai/modai/util/cliutil"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/plugin/opentelemetry/tracing"
)

type Server struct {
	logger   *slog.Logger
	engine   *engine.Engine
	limiter  *ratelimit.Limiter
	audit    *audit.Log
	auditDB  *audit.DBSink
	rdb      *redis.Client
	queueKey string
	// max webhook track requests per minute
	webhookRateLimit int64
}

type Config struct {
	Logger     *slog.Logger
	Moderation config.Config
	Policy     engine.Policy
	// platform gateway base URL, per platform
	Endpoints        map[engine.Platform]string
	PlatformToken    string
	DatabaseURL      string
	MaxDBConnections int
	// emit otel spans for audit database queries
	DBTracing        bool
	AuditJSONLPath   string
	RedisURL         string
	QueueKey         string
	SlackWebhookURL  string
	WebhookRateLimit int64
	// when set, idempotency records go to memcached instead of redis or memory
	MemcachedServers []string
}

func NewServer(config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}
	cfg := config.Moderation
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	analyzers := analyzer.NewSet(cfg.AnalyzerOptions())

	var counters countstore.CountStore
	var cache cachestore.CacheStore
	var flags flagstore.FlagStore
	var rdb *redis.Client
	if config.RedisURL != "" {
		// shared by the stores and the track event queue
		opt, err := redis.ParseURL(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis URL: %v", err)
		}
		rdb = redis.NewClient(opt)
		// check redis connection
		_, err = rdb.Ping(context.TODO()).Result()
		if err != nil {
			return nil, fmt.Errorf("redis ping failed: %v", err)
		}

		counters = countstore.NewRedisCountStoreFromClient(rdb)
		cache = cachestore.NewRedisCacheStoreFromClient(rdb, cfg.IdempotencyTTL)
		flags = flagstore.NewRedisFlagStoreFromClient(rdb)
	} else {
		counters = countstore.NewMemCountStore()
		cache = cachestore.NewMemCacheStore(50_000, cfg.IdempotencyTTL)
		flags = flagstore.NewMemFlagStore()
	}
	if len(config.MemcachedServers) > 0 {
		cache = cachestore.NewMemcachedCacheStore(config.MemcachedServers, cfg.IdempotencyTTL)
		logger.Info("using memcached for idempotency records", "servers", config.MemcachedServers)
	}

	var sinks audit.MultiSink
	var auditDB *audit.DBSink
	if config.DatabaseURL != "" {
		db, err := cliutil.SetupDatabase(config.DatabaseURL, config.MaxDBConnections)
		if err != nil {
			return nil, fmt.Errorf("opening audit database: %w", err)
		}
		if config.DBTracing {
			if err := db.Use(tracing.NewPlugin()); err != nil {
				return nil, err
			}
		}
		auditDB, err = audit.NewDBSink(db)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, auditDB)
	}
	if config.AuditJSONLPath != "" {
		jsonl, err := audit.OpenJSONLFile(config.AuditJSONLPath)
		if err != nil {
			return nil, fmt.Errorf("opening audit log file: %w", err)
		}
		sinks = append(sinks, jsonl)
	}
	var sink audit.Sink
	if len(sinks) > 0 {
		sink = sinks
	}
	auditLog := audit.NewLog(logger, sink)

	limiter := ratelimit.NewLimiter(cfg.LimiterOptions())

	sources := make(map[engine.Platform]engine.CommentSource)
	modSinks := make(map[engine.Platform]engine.ModerationSink)
	for p, base := range config.Endpoints {
		rc := platform.NewRESTClient(p, base, config.PlatformToken)
		sources[p] = rc
		modSinks[p] = rc
		logger.Info("configured platform gateway", "platform", p, "endpoint", base, "capabilities", rc.Caps)
	}

	var notifier engine.Notifier
	if config.SlackWebhookURL != "" {
		notifier = &engine.SlackNotifier{
			SlackWebhookURL: config.SlackWebhookURL,
			Client:          util.RobustHTTPClient(logger),
		}
	}

	retry := engine.RetryPolicy{
		MaxAttempts: cfg.MaxRetries,
		Backoff:     engine.ExponentialJitter(cfg.BackoffBase),
	}

	eng := &engine.Engine{
		Logger:   logger,
		Analyzer: analyzers,
		Policy:   config.Policy,
		Sources:  sources,
		Limiter:  limiter,
		Executor: &engine.Executor{
			Logger:              logger,
			Sinks:               modSinks,
			Limiter:             limiter,
			Retry:               retry,
			Cache:               cache,
			Counters:            counters,
			Flags:               flags,
			QuotaDestructiveDay: cfg.QuotaDestructiveDay,
		},
		Audit:          auditLog,
		Counters:       counters,
		Notifier:       notifier,
		FetchRetry:     retry,
		MaxComments:    cfg.MaxComments,
		Workers:        cfg.Workers,
		InterPostDelay: cfg.InterPostDelay,
		PollInterval:   cfg.PollInterval,
	}

	s := &Server{
		logger:           logger,
		engine:           eng,
		limiter:          limiter,
		audit:            auditLog,
		auditDB:          auditDB,
		rdb:              rdb,
		queueKey:         config.QueueKey,
		webhookRateLimit: config.WebhookRateLimit,
	}
	return s, nil
}

// Runs the webhook server, the redis queue consumer (if redis is configured), and the tracking loop, until ctx is done.
func (s *Server) Run(ctx context.Context, bind string, initial []engine.TrackedPost) error {
	events := make(chan engine.TrackEvent, 64)

	webhook, err := consumer.NewWebhookServer(consumer.WebhookConfig{
		Logger:            s.logger,
		Events:            events,
		Engine:            s.engine,
		Limiter:           s.limiter,
		AuditDB:           s.auditDB,
		RequestsPerMinute: s.webhookRateLimit,
	})
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return webhook.Run(ctx, bind)
	})
	if s.rdb != nil {
		rq := &consumer.RedisQueue{
			Logger:      s.logger,
			RedisClient: s.rdb,
			Key:         s.queueKey,
		}
		g.Go(func() error {
			return rq.Run(ctx, events)
		})
	}
	g.Go(func() error {
		return s.engine.RunTracking(ctx, initial, events)
	})

	err = g.Wait()
	if cerr := s.Close(); cerr != nil {
		s.logger.Error("closing server", "err", cerr)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// One-off pass over the given posts.
func (s *Server) RunPass(ctx context.Context, posts []engine.TrackedPost) engine.PassSummary {
	return s.engine.RunPass(ctx, posts)
}

func (s *Server) Close() error {
	var errs []error
	if err := s.audit.Close(); err != nil {
		errs = append(errs, err)
	}
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Replaces configured platform adapters with the given mock, for demos.
func (s *Server) UseMockPlatform(m *engine.MockPlatform) {
	s.engine.Sources[m.Platform] = m
	s.engine.Executor.Sinks[m.Platform] = m
}

// used by the demo, which should not wait between posts
func (s *Server) disablePacing() {
	s.engine.InterPostDelay = 0
	s.engine.Executor.Retry.Backoff = func(int) time.Duration { return 10 * time.Millisecond }
}
