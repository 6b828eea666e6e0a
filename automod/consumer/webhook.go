package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/moderation-ai/modai/automod/audit"
	"github.com/moderation-ai/modai/automod/engine"
	"github.com/moderation-ai/modai/automod/ratelimit"

	"github.com/RussellLuo/slidingwindow"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	slogecho "github.com/samber/slog-echo"
)

type WebhookConfig struct {
	Logger *slog.Logger
	// track/untrack events are sent here; the tracking loop owns the receiving end
	Events chan<- engine.TrackEvent
	// optional; used for the status endpoint
	Engine  *engine.Engine
	Limiter *ratelimit.Limiter
	// optional; enables the per-post audit history endpoint
	AuditDB *audit.DBSink
	// max track/untrack requests per minute; zero is unlimited
	RequestsPerMinute int64
	// how long a request waits for the tracking loop to accept an event
	EnqueueTimeout time.Duration
	// metrics registry; defaults to the global prometheus registry
	Registry *prometheus.Registry
}

// HTTP ingress for track/untrack requests, and read-only status endpoints.
type WebhookServer struct {
	logger         *slog.Logger
	events         chan<- engine.TrackEvent
	engine         *engine.Engine
	limiter        *ratelimit.Limiter
	auditDB        *audit.DBSink
	enqueueTimeout time.Duration
	throttle       *slidingwindow.Limiter
	stopThrottle   slidingwindow.StopFunc
	echo           *echo.Echo
}

func NewWebhookServer(config WebhookConfig) (*WebhookServer, error) {
	if config.Events == nil {
		return nil, fmt.Errorf("webhook server requires an events channel")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("system", "webhook")

	srv := &WebhookServer{
		logger:         logger,
		events:         config.Events,
		engine:         config.Engine,
		limiter:        config.Limiter,
		auditDB:        config.AuditDB,
		enqueueTimeout: config.EnqueueTimeout,
	}
	if srv.enqueueTimeout <= 0 {
		srv.enqueueTimeout = 5 * time.Second
	}
	if config.RequestsPerMinute > 0 {
		srv.throttle, srv.stopThrottle = slidingwindow.NewLimiter(time.Minute, config.RequestsPerMinute, func() (slidingwindow.Window, slidingwindow.StopFunc) {
			return slidingwindow.NewLocalWindow()
		})
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(slogecho.New(logger))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("64K"))

	var metricsHandler echo.HandlerFunc
	if config.Registry != nil {
		e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
			Subsystem:  "modai_webhook",
			Registerer: config.Registry,
		}))
		metricsHandler = echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: config.Registry})
	} else {
		e.Use(echoprometheus.NewMiddleware("modai_webhook"))
		metricsHandler = echoprometheus.NewHandler()
	}

	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		var msg any = "internal error"
		var herr *echo.HTTPError
		if errors.As(err, &herr) {
			code = herr.Code
			msg = herr.Message
		} else {
			logger.Warn("HANDLER ERROR", "path", c.Path(), "err", err)
		}
		if c.Response().Committed {
			return
		}
		if err := c.JSON(code, map[string]any{"error": msg}); err != nil {
			logger.Error("failed to write http error", "err", err)
		}
	}

	e.GET("/_health", srv.HandleHealthCheck)
	e.GET("/metrics", metricsHandler)
	e.GET("/status", srv.HandleStatus)
	e.GET("/report", srv.HandleReport)
	e.GET("/audit/:postID", srv.HandleAuditHistory)
	e.POST("/track", srv.handleTrackEvent(engine.TrackEventTrack), srv.throttleMiddleware)
	e.POST("/untrack", srv.handleTrackEvent(engine.TrackEventUntrack), srv.throttleMiddleware)

	srv.echo = e
	return srv, nil
}

func (srv *WebhookServer) Handler() http.Handler {
	return srv.echo
}

// Serves until ctx is done, then shuts down gracefully.
func (srv *WebhookServer) Run(ctx context.Context, listen string) error {
	errCh := make(chan error, 1)
	go func() {
		srv.logger.Info("starting webhook server", "bind", listen)
		if err := srv.echo.Start(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	if srv.stopThrottle != nil {
		srv.stopThrottle()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.echo.Shutdown(shutdownCtx)
}

func (srv *WebhookServer) throttleMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if srv.throttle != nil && !srv.throttle.Allow() {
			return echo.NewHTTPError(http.StatusTooManyRequests, "too many track requests")
		}
		return next(c)
	}
}

func (srv *WebhookServer) handleTrackEvent(kind engine.TrackEventKind) echo.HandlerFunc {
	return func(c echo.Context) error {
		var post engine.TrackedPost
		if err := c.Bind(&post); err != nil {
			trackEventsInvalid.WithLabelValues("webhook").Inc()
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
		evt := engine.TrackEvent{Kind: kind, Post: post}
		if err := evt.Validate(); err != nil {
			trackEventsInvalid.WithLabelValues("webhook").Inc()
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}

		timer := time.NewTimer(srv.enqueueTimeout)
		defer timer.Stop()
		select {
		case srv.events <- evt:
		case <-timer.C:
			return echo.NewHTTPError(http.StatusServiceUnavailable, "tracking loop busy")
		case <-c.Request().Context().Done():
			return c.Request().Context().Err()
		}
		trackEventsReceived.WithLabelValues("webhook", string(kind)).Inc()
		return c.JSON(http.StatusAccepted, map[string]any{
			"status": "accepted",
			"kind":   kind,
			"post":   post,
		})
	}
}

func (srv *WebhookServer) HandleHealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"status": "ok"})
}

type statusResponse struct {
	LastPass          *engine.PassSummary              `json:"last_pass"`
	RateLimits        map[string]ratelimit.BudgetStats `json:"rate_limits,omitempty"`
	Audit             *audit.Summary                   `json:"audit,omitempty"`
	AuditSinkFailures int64                            `json:"audit_sink_failures"`
}

func (srv *WebhookServer) HandleStatus(c echo.Context) error {
	var resp statusResponse
	if srv.engine != nil {
		resp.LastPass = srv.engine.LastPass()
		if srv.engine.Audit != nil {
			sum := srv.engine.Audit.Summarize()
			resp.Audit = &sum
			resp.AuditSinkFailures = srv.engine.Audit.SinkFailures()
		}
	}
	if srv.limiter != nil {
		resp.RateLimits = srv.limiter.Stats()
	}
	return c.JSON(http.StatusOK, resp)
}

func (srv *WebhookServer) HandleReport(c echo.Context) error {
	if srv.engine == nil || srv.engine.Audit == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no audit log configured")
	}
	return c.JSON(http.StatusOK, srv.engine.Audit.Report())
}

func (srv *WebhookServer) HandleAuditHistory(c echo.Context) error {
	if srv.auditDB == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no audit database configured")
	}
	limit := 100
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be between 1 and 1000")
		}
		limit = n
	}
	entries, err := srv.auditDB.ForPost(c.Request().Context(), c.Param("postID"), limit)
	if err != nil {
		return fmt.Errorf("querying audit history: %w", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"entries": entries})
}
