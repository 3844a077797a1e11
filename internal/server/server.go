package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sentinel-logs/sentinel/internal/config"
	"github.com/sentinel-logs/sentinel/internal/logging"
	"github.com/sentinel-logs/sentinel/internal/metrics"
	"github.com/sentinel-logs/sentinel/internal/pipeline"
	"github.com/sentinel-logs/sentinel/internal/store"
	"github.com/sentinel-logs/sentinel/internal/worker"
)

// Server exposes the processing pipeline over HTTP. The API only ever
// translates pipeline result records into status codes; it adds no
// processing semantics of its own.
type Server struct {
	cfg      config.ServerConfig
	store    *store.Store
	pipeline *pipeline.Pipeline
	pool     *worker.Pool // nil disables async processing
	logger   *logging.Logger
	metrics  *metrics.Collector

	engine    *gin.Engine
	server    *http.Server
	startTime time.Time
}

// Options wires the server's collaborators.
type Options struct {
	Config   config.ServerConfig
	Store    *store.Store
	Pipeline *pipeline.Pipeline
	Pool     *worker.Pool
	Logger   *logging.Logger
	Metrics  *metrics.Collector

	// MetricsPath enables the Prometheus endpoint when non-empty.
	MetricsPath string
}

// New builds the server and its routes.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	collector := opts.Metrics
	if collector == nil {
		collector = metrics.NewCollector()
	}

	s := &Server{
		cfg:      opts.Config,
		store:    opts.Store,
		pipeline: opts.Pipeline,
		pool:     opts.Pool,
		logger:   logger.WithComponent("http"),
		metrics:  collector,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(s.requestMetrics())

	engine.GET("/health", s.handleHealth)
	if opts.MetricsPath != "" {
		engine.GET(opts.MetricsPath, gin.WrapH(promhttp.HandlerFor(
			collector.Registry(), promhttp.HandlerOpts{},
		)))
	}

	api := engine.Group("/api/v1")
	if len(s.cfg.APIKeys) > 0 {
		api.Use(s.apiKeyAuth())
	}
	if s.cfg.RateLimit > 0 {
		api.Use(s.rateLimit())
	}
	if s.cfg.MaxBodySize > 0 {
		api.Use(s.limitBodySize())
	}

	api.POST("/logs", s.handleCreateRawLog)
	api.POST("/logs/:id/process", s.handleProcess)
	api.GET("/logs/:id/events", s.handleListEvents)
	api.POST("/ingest", s.handleIngest)
	api.GET("/events", s.handleEventsBySeverity)
	api.GET("/stats", s.handleStats)
	api.DELETE("/stats", s.handleResetStats)

	s.engine = engine
	return s
}

// Start begins serving in the background.
func (s *Server) Start() error {
	readTimeout := s.cfg.ReadTimeout
	if readTimeout == 0 {
		readTimeout = 30 * time.Second
	}
	writeTimeout := s.cfg.WriteTimeout
	if writeTimeout == 0 {
		writeTimeout = 60 * time.Second
	}

	s.server = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
	}

	listener, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return err
	}

	s.startTime = time.Now()
	s.logger.Info().Str("address", s.cfg.Address).Msg("http server listening")

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("http server stopped")
		}
	}()
	return nil
}

// Stop drains in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}
