package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"

	mw "github.com/Project-OSmOSE/osmose-app-sub000/internal/api/middleware"
	v1 "github.com/Project-OSmOSE/osmose-app-sub000/internal/api/v1"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/buildinfo"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/campaign"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/conf"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/events"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/logger"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/observability"
)

// Server is the HTTP server of APLOSE.
type Server struct {
	echo     *echo.Echo
	config   *Config
	settings *conf.Settings
	logger   logger.Logger

	db        *gorm.DB
	metrics   *observability.Metrics
	publisher events.Publisher
	files     *campaign.FileCache
	build     *buildinfo.Context
	extra     []v1.Option

	apiController *v1.Controller

	startTime time.Time
	serveErr  chan error
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithDB sets the database of the server. It is required.
func WithDB(db *gorm.DB) ServerOption {
	return func(s *Server) {
		s.db = db
	}
}

// WithMetrics sets the observability metrics for the server.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithPublisher sets the domain event publisher.
func WithPublisher(p events.Publisher) ServerOption {
	return func(s *Server) {
		s.publisher = p
	}
}

// WithFileCache shares the sorted file cache with other components.
func WithFileCache(fc *campaign.FileCache) ServerOption {
	return func(s *Server) {
		s.files = fc
	}
}

// WithBuildInfo sets the version reported by the health endpoint.
func WithBuildInfo(b *buildinfo.Context) ServerOption {
	return func(s *Server) {
		s.build = b
	}
}

// WithControllerOptions passes extra options to the API controller.
func WithControllerOptions(opts ...v1.Option) ServerOption {
	return func(s *Server) {
		s.extra = append(s.extra, opts...)
	}
}

// New creates a new HTTP server with the given settings and options.
func New(settings *conf.Settings, opts ...ServerOption) (*Server, error) {
	config := ConfigFromSettings(settings)
	if err := config.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		config:    config,
		settings:  settings,
		logger:    GetLogger(),
		startTime: time.Now(),
		serveErr:  make(chan error, 1),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Debug = config.Debug
	s.echo.Logger = logger.NewEchoLoggerAdapter(s.logger.Module("echo"))

	s.echo.Server.ReadTimeout = config.ReadTimeout
	s.echo.Server.WriteTimeout = config.WriteTimeout
	s.echo.Server.IdleTimeout = config.IdleTimeout

	s.setupMiddleware()
	if err := s.setupRoutes(); err != nil {
		return nil, err
	}

	s.logger.Info("HTTP server initialized",
		logger.String("address", config.Listen),
		logger.Bool("cors", len(config.AllowedOrigins) > 0),
		logger.Bool("debug", config.Debug))

	return s, nil
}

// setupMiddleware configures the echo middleware stack.
func (s *Server) setupMiddleware() {
	s.echo.Use(echomw.Recover())
	s.echo.Use(mw.NewRequestID())
	s.echo.Use(mw.NewRequestLoggerWithSkipper(s.logger.Module("http"), func(c echo.Context) bool {
		return c.Path() == "/health" || c.Path() == "/metrics"
	}))
	if s.metrics != nil {
		s.echo.Use(mw.NewMetrics(s.metrics.HTTP))
	}

	securityConfig := mw.DefaultSecurityConfig()
	if len(s.config.AllowedOrigins) > 0 {
		securityConfig.AllowedOrigins = s.config.AllowedOrigins
		s.echo.Use(mw.NewCORS(securityConfig))
	}
	s.echo.Use(mw.NewBodyLimit(s.config.BodyLimit))
	s.echo.Use(echomw.Gzip())
	s.echo.Use(mw.NewSecureHeaders(securityConfig))
}

// setupRoutes registers the health, metrics and API routes.
func (s *Server) setupRoutes() error {
	s.echo.GET("/health", s.healthCheck)
	if s.metrics != nil && s.settings.Metrics.Enabled {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	opts := []v1.Option{
		v1.WithPublisher(s.publisher),
		v1.WithFileCache(s.files),
	}
	if s.metrics != nil {
		opts = append(opts, v1.WithRecorder(s.metrics.Annotation), v1.WithHTTPMetrics(s.metrics.HTTP))
	}
	opts = append(opts, s.extra...)

	controller, err := v1.New(s.echo, s.db, s.settings, opts...)
	if err != nil {
		return err
	}
	s.apiController = controller
	return nil
}

// healthCheck reports liveness and database reachability.
func (s *Server) healthCheck(c echo.Context) error {
	uptime := time.Since(s.startTime)
	status, code := "healthy", http.StatusOK

	if sqlDB, err := s.db.DB(); err != nil || sqlDB.PingContext(c.Request().Context()) != nil {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	return c.JSON(code, map[string]any{
		"status":         status,
		"version":        s.build.GetVersion(),
		"build_date":     s.build.GetBuildDate(),
		"uptime":         uptime.Round(time.Second).String(),
		"uptime_seconds": uptime.Seconds(),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}

// Echo returns the underlying echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start begins serving HTTP requests in a background goroutine and returns
// immediately. Serve errors are reported by Wait.
func (s *Server) Start() {
	go func() {
		s.logger.Info("starting HTTP server", logger.String("address", s.config.Listen))
		err := s.echo.Start(s.config.Listen)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.serveErr <- err
	}()
}

// Wait blocks until the server stops serving or ctx is done.
func (s *Server) Wait(ctx context.Context) error {
	select {
	case err := <-s.serveErr:
		return err
	case <-ctx.Done():
		return nil
	}
}

// StartWithGracefulShutdown starts the server and shuts it down on SIGINT
// or SIGTERM.
func (s *Server) StartWithGracefulShutdown() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s.Start()
	if err := s.Wait(ctx); err != nil {
		return err
	}

	s.logger.Info("shutdown signal received, initiating graceful shutdown")
	return s.Shutdown()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.echo.Shutdown(ctx); err != nil {
		s.logger.Error("server shutdown failed", logger.Error(err))
		return err
	}
	s.logger.Info("HTTP server stopped")
	return nil
}
