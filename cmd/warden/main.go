package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/moderation-ai/modai/automod/config"
	"github.com/moderation-ai/modai/automod/engine"
	"github.com/moderation-ai/modai/automod/platform"
	"github.com/moderation-ai/modai/util/cliutil"

	"github.com/adrg/xdg"
	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"
)

//go:embed demo_capture.json
var demoCapture []byte

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "warden",
		Usage:   "comment moderation daemon",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "path to YAML moderation config file (overlays built-in defaults); searched for as modai/config.yaml in XDG config dirs if unset",
			EnvVars: []string{"MODAI_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "sets-file",
			Usage:   "path to JSON file with keyword sets (spam-phrases, profanity, harassment-patterns)",
			EnvVars: []string{"MODAI_SETS_FILE"},
		},
		&cli.StringFlag{
			Name:    "policy",
			Usage:   "moderation policy for destructive actions: default, hide-only",
			Value:   "default",
			EnvVars: []string{"MODAI_POLICY"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			EnvVars: []string{"MODAI_LOG_LEVEL", "LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "log output format: json, text",
			EnvVars: []string{"MODAI_LOG_FMT"},
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
		moderateCmd,
		analyzeCmd,
		demoCmd,
	}

	return app.Run(args)
}

// flags shared by commands which construct a full Server
var serverFlags = []cli.Flag{
	&cli.StringSliceFlag{
		Name:    "endpoint",
		Usage:   "platform gateway base URL, as platform=URL (eg, reddit=https://gateway.example.com/reddit)",
		EnvVars: []string{"MODAI_PLATFORM_ENDPOINTS"},
	},
	&cli.StringFlag{
		Name:    "platform-token",
		Usage:   "bearer token for platform gateway requests",
		EnvVars: []string{"MODAI_PLATFORM_TOKEN"},
	},
	&cli.StringFlag{
		Name:    "database-url",
		Usage:   "audit database (sqlite:// or postgres://); empty disables",
		EnvVars: []string{"MODAI_DATABASE_URL", "DATABASE_URL"},
	},
	&cli.IntFlag{
		Name:    "max-db-connections",
		EnvVars: []string{"MODAI_MAX_DB_CONNECTIONS"},
		Value:   10,
	},
	&cli.BoolFlag{
		Name:    "db-tracing",
		Usage:   "emit OpenTelemetry spans for audit database queries",
		EnvVars: []string{"MODAI_DB_TRACING"},
	},
	&cli.StringFlag{
		Name:    "audit-log",
		Usage:   "path of append-only JSON lines audit file; empty disables",
		EnvVars: []string{"MODAI_AUDIT_LOG"},
	},
	&cli.StringFlag{
		Name:    "redis-url",
		Usage:   "redis for counters, idempotency cache, flags and the track queue; in-process stores if empty",
		EnvVars: []string{"MODAI_REDIS_URL"},
	},
	&cli.StringSliceFlag{
		Name:    "memcached-servers",
		Usage:   "memcached servers (host:port) for idempotency records; overrides redis and in-process for that store only",
		EnvVars: []string{"MODAI_MEMCACHED_SERVERS"},
	},
	&cli.StringFlag{
		Name:    "slack-webhook-url",
		Usage:   "Slack incoming webhook for notable moderation actions",
		EnvVars: []string{"SLACK_WEBHOOK_URL"},
	},
	&cli.IntFlag{
		Name:    "max-comments",
		Usage:   "max comments fetched per post per pass (overrides config file)",
		EnvVars: []string{"MODAI_MAX_COMMENTS"},
	},
	&cli.IntFlag{
		Name:    "workers",
		Usage:   "concurrent comments processed per post (overrides config file)",
		EnvVars: []string{"MODAI_WORKERS"},
	},
	&cli.IntFlag{
		Name:    "quota-destructive-day",
		Usage:   "max successful hide/delete actions per platform per day; 0 is unlimited (overrides config file)",
		EnvVars: []string{"MODAI_QUOTA_DESTRUCTIVE_DAY"},
	},
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the moderation service, tracking posts continuously",
	Flags: append([]cli.Flag{
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for HTTP APIs",
			Value:   ":3999",
			EnvVars: []string{"MODAI_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3998",
			EnvVars: []string{"MODAI_METRICS_LISTEN"},
		},
		&cli.StringSliceFlag{
			Name:    "track",
			Usage:   "post to track from startup, as platform:postID",
			EnvVars: []string{"MODAI_TRACK"},
		},
		&cli.DurationFlag{
			Name:    "poll-interval",
			Usage:   "time between passes over tracked posts (overrides config file)",
			EnvVars: []string{"MODAI_POLL_INTERVAL"},
		},
		&cli.StringFlag{
			Name:    "queue-key",
			Usage:   "redis list consumed for track/untrack events",
			Value:   "modai/track-events",
			EnvVars: []string{"MODAI_QUEUE_KEY"},
		},
		&cli.Int64Flag{
			Name:    "webhook-rate-limit",
			Usage:   "max track/untrack webhook requests per minute; 0 is unlimited",
			Value:   600,
			EnvVars: []string{"MODAI_WEBHOOK_RATE_LIMIT"},
		},
	}, serverFlags...),
	Action: func(cctx *cli.Context) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger, err := setupLogger(cctx)
		if err != nil {
			return err
		}

		shutdownTracing, err := configOTEL("warden")
		if err != nil {
			return fmt.Errorf("failed to create trace exporter: %w", err)
		}
		defer shutdownTracing()

		initial, err := parseTrackedPosts(cctx.StringSlice("track"))
		if err != nil {
			return err
		}
		trackedFromFlags.Set(float64(len(initial)))

		srv, err := newServerFromFlags(cctx, logger)
		if err != nil {
			return err
		}

		go func() {
			if err := RunMetrics(cctx.String("metrics-listen")); err != nil {
				slog.Error("failed to start metrics endpoint", "error", err)
				panic(fmt.Errorf("failed to start metrics endpoint: %w", err))
			}
		}()

		if err := srv.Run(ctx, cctx.String("bind"), initial); err != nil {
			return fmt.Errorf("failed to run moderation service: %w", err)
		}
		return nil
	},
}

var moderateCmd = &cli.Command{
	Name:      "moderate",
	Usage:     "run a single moderation pass over the given posts, and print a summary",
	ArgsUsage: "<platform:postID>...",
	Flags: append([]cli.Flag{
		&cli.BoolFlag{
			Name:  "report",
			Usage: "print the full audit report instead of the pass summary",
		},
	}, serverFlags...),
	Action: func(cctx *cli.Context) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		posts, err := parseTrackedPosts(cctx.Args().Slice())
		if err != nil {
			return err
		}
		if len(posts) == 0 {
			return fmt.Errorf("need at least one post to moderate")
		}
		logger, err := setupLogger(cctx)
		if err != nil {
			return err
		}
		srv, err := newServerFromFlags(cctx, logger)
		if err != nil {
			return err
		}
		defer func() { _ = srv.Close() }()

		sum := srv.RunPass(ctx, posts)
		if cctx.Bool("report") {
			return printJSON(srv.audit.Report())
		}
		return printJSON(sum)
	},
}

type analysis struct {
	Text     string          `json:"text"`
	Signals  []engine.Signal `json:"signals"`
	Severity engine.Severity `json:"severity"`
	Decision engine.Decision `json:"decision"`
}

var analyzeCmd = &cli.Command{
	Name:      "analyze",
	Usage:     "analyze comment text and print the decision, without taking any action",
	ArgsUsage: "<text>...",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "own",
			Usage: "treat the text as one of our own comments",
		},
	},
	Action: func(cctx *cli.Context) error {
		if cctx.Args().Len() == 0 {
			return fmt.Errorf("need comment text to analyze")
		}
		cfg, err := loadConfig(cctx)
		if err != nil {
			return err
		}
		policy, err := engine.PolicyByName(cctx.String("policy"))
		if err != nil {
			return err
		}
		srv, err := NewServer(Config{Logger: slog.Default(), Moderation: *cfg, Policy: policy})
		if err != nil {
			return err
		}

		out := []analysis{}
		for i, text := range cctx.Args().Slice() {
			c := engine.Comment{
				ID:           fmt.Sprintf("cli-%d", i),
				Text:         text,
				IsOwnComment: cctx.Bool("own"),
			}
			signals := srv.engine.Analyzer.Analyze(c)
			sev, aux := engine.Aggregate(signals)
			d := policy.Evaluate(sev, aux, c.IsOwnComment, signals)
			d.CommentID = c.ID
			out = append(out, analysis{Text: text, Signals: signals, Severity: sev, Decision: d})
		}
		return printJSON(out)
	},
}

var demoCmd = &cli.Command{
	Name:  "demo",
	Usage: "run a moderation pass over a built-in (or given) comment capture, against an in-memory platform",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "capture",
			Usage: "path to JSON comment capture; uses the built-in capture if empty",
		},
		&cli.BoolFlag{
			Name:  "report",
			Usage: "print the full audit report, in addition to the pass summary",
		},
		&cli.IntFlag{
			Name:  "fake-comments",
			Usage: "number of generated filler comments to add, on an extra post",
		},
		&cli.Int64Flag{
			Name:  "fake-seed",
			Usage: "random seed for generated comments",
			Value: 1,
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var capture engine.CommentCapture
		if p := cctx.String("capture"); p != "" {
			capture = engine.MustLoadCapture(p)
		} else {
			var err error
			capture, err = engine.ParseCapture(demoCapture)
			if err != nil {
				return err
			}
		}
		if capture.Capabilities == nil {
			caps := platform.DefaultCapabilities(capture.Platform)
			capture.Capabilities = &caps
		}
		mock, posts := capture.MockPlatform()
		if n := cctx.Int("fake-comments"); n > 0 {
			mock.AddComments(fakePostID, fakeComments(n, cctx.Int64("fake-seed"))...)
			posts = append(posts, engine.TrackedPost{Platform: capture.Platform, PostID: fakePostID})
		}

		logger, err := setupLogger(cctx)
		if err != nil {
			return err
		}
		cfg, err := loadConfig(cctx)
		if err != nil {
			return err
		}
		policy, err := engine.PolicyByName(cctx.String("policy"))
		if err != nil {
			return err
		}
		srv, err := NewServer(Config{Logger: logger, Moderation: *cfg, Policy: policy})
		if err != nil {
			return err
		}
		srv.UseMockPlatform(mock)
		srv.disablePacing()

		sum := srv.RunPass(ctx, posts)
		if err := printJSON(sum); err != nil {
			return err
		}
		if cctx.Bool("report") {
			return printJSON(srv.audit.Report())
		}
		return nil
	},
}

func setupLogger(cctx *cli.Context) (*slog.Logger, error) {
	return cliutil.SetupSlog(cliutil.LogOptions{
		LogLevel:  cctx.String("log-level"),
		LogFormat: cctx.String("log-format"),
	})
}

func loadConfig(cctx *cli.Context) (*config.Config, error) {
	var cfg *config.Config
	p := cctx.String("config")
	if p == "" {
		// a missing file is not an error here
		if found, err := xdg.SearchConfigFile("modai/config.yaml"); err == nil {
			p = found
		}
	}
	if p != "" {
		var err error
		cfg, err = config.LoadFile(p)
		if err != nil {
			return nil, err
		}
	} else {
		d := config.Default()
		cfg = &d
	}
	if p := cctx.String("sets-file"); p != "" {
		if err := cfg.LoadSetsFile(p); err != nil {
			return nil, err
		}
	}
	if cctx.IsSet("max-comments") {
		cfg.MaxComments = cctx.Int("max-comments")
	}
	if cctx.IsSet("workers") {
		cfg.Workers = cctx.Int("workers")
	}
	if cctx.IsSet("quota-destructive-day") {
		cfg.QuotaDestructiveDay = cctx.Int("quota-destructive-day")
	}
	if cctx.IsSet("poll-interval") {
		cfg.PollInterval = cctx.Duration("poll-interval")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newServerFromFlags(cctx *cli.Context, logger *slog.Logger) (*Server, error) {
	cfg, err := loadConfig(cctx)
	if err != nil {
		return nil, err
	}
	policy, err := engine.PolicyByName(cctx.String("policy"))
	if err != nil {
		return nil, err
	}
	endpoints, err := parseEndpoints(cctx.StringSlice("endpoint"))
	if err != nil {
		return nil, err
	}
	return NewServer(Config{
		Logger:           logger,
		Moderation:       *cfg,
		Policy:           policy,
		Endpoints:        endpoints,
		PlatformToken:    cctx.String("platform-token"),
		DatabaseURL:      cctx.String("database-url"),
		MaxDBConnections: cctx.Int("max-db-connections"),
		DBTracing:        cctx.Bool("db-tracing"),
		AuditJSONLPath:   cctx.String("audit-log"),
		RedisURL:         cctx.String("redis-url"),
		QueueKey:         cctx.String("queue-key"),
		SlackWebhookURL:  cctx.String("slack-webhook-url"),
		WebhookRateLimit: cctx.Int64("webhook-rate-limit"),
		MemcachedServers: cctx.StringSlice("memcached-servers"),
	})
}

// Parses "platform:postID" arguments.
func parseTrackedPosts(args []string) ([]engine.TrackedPost, error) {
	var posts []engine.TrackedPost
	for _, raw := range args {
		name, postID, ok := strings.Cut(raw, ":")
		if !ok || postID == "" {
			return nil, fmt.Errorf("post must be formatted as platform:postID: %q", raw)
		}
		p, err := engine.ParsePlatform(name)
		if err != nil {
			return nil, err
		}
		posts = append(posts, engine.TrackedPost{Platform: p, PostID: postID})
	}
	return posts, nil
}

// Parses "platform=URL" arguments.
func parseEndpoints(args []string) (map[engine.Platform]string, error) {
	out := make(map[engine.Platform]string, len(args))
	for _, raw := range args {
		name, base, ok := strings.Cut(raw, "=")
		if !ok || base == "" {
			return nil, fmt.Errorf("endpoint must be formatted as platform=URL: %q", raw)
		}
		p, err := engine.ParsePlatform(name)
		if err != nil {
			return nil, err
		}
		out[p] = base
	}
	return out, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
