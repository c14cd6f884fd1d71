// Package api serves the Partline JSON HTTP API.
package api

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/partline/internal/auth"
	"github.com/zulandar/partline/internal/idempotency"
	"github.com/zulandar/partline/internal/logger"
	"github.com/zulandar/partline/internal/telemetry"
	"github.com/zulandar/partline/internal/trace"
	"gorm.io/gorm"
)

// StartOpts holds configuration for the API server.
type StartOpts struct {
	DB       *gorm.DB
	Port     int
	Out      io.Writer
	Log      *logger.Logger
	Auth     *auth.Service
	Recorder *trace.Recorder
	// Idempotency backs the Idempotency-Key header. Nil ignores the header.
	Idempotency idempotency.Store
	// Metrics enables request metrics and /metrics/prometheus. Nil disables both.
	Metrics     *telemetry.Metrics
	CORSOrigins []string
	// Tracing wraps every request in an OpenTelemetry span.
	Tracing     bool
	ServiceName string
	// StreamInterval is how often the event stream polls. Defaults to 2s.
	StreamInterval time.Duration
	// StreamGrace is how long the event stream waits for an id that commits
	// out of order. Defaults to trace.DefaultTailGrace.
	StreamGrace time.Duration
}

// Server holds the dependencies shared by all handlers.
type Server struct {
	db             *gorm.DB
	log            *logger.Logger
	auth           *auth.Service
	rec            *trace.Recorder
	idem           idempotency.Store
	metrics        *telemetry.Metrics
	streamInterval time.Duration
	streamGrace    time.Duration
	heartbeat      time.Duration
	now            func() time.Time
}

// NewRouter builds the gin engine with every route and middleware registered.
func NewRouter(opts StartOpts) (*gin.Engine, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("api: db is required")
	}
	if opts.Auth == nil {
		return nil, fmt.Errorf("api: auth service is required")
	}
	if opts.Recorder == nil {
		return nil, fmt.Errorf("api: recorder is required")
	}
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}
	if opts.StreamInterval <= 0 {
		opts.StreamInterval = 2 * time.Second
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "partline"
	}

	s := &Server{
		db:             opts.DB,
		log:            opts.Log.With("component", "api"),
		auth:           opts.Auth,
		rec:            opts.Recorder,
		idem:           opts.Idempotency,
		metrics:        opts.Metrics,
		streamInterval: opts.StreamInterval,
		streamGrace:    opts.StreamGrace,
		heartbeat:      15 * time.Second,
		now:            time.Now,
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestID(), requestLogger(s.log))
	if len(opts.CORSOrigins) > 0 {
		router.Use(corsMiddleware(opts.CORSOrigins))
	}
	if opts.Tracing {
		router.Use(telemetry.TraceMiddleware(opts.ServiceName))
	}
	if s.metrics != nil {
		router.Use(s.metrics.Middleware())
		router.GET("/metrics/prometheus", gin.WrapH(s.metrics.Handler()))
	}

	s.registerRoutes(router)
	return router, nil
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Port <= 0 {
		opts.Port = 8000
	}

	gin.SetMode(gin.ReleaseMode)
	router, err := NewRouter(opts)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// Request contexts end with ctx so open event streams close on shutdown.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Partline API listening on http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}
