package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/GaxGuy/agpl-BifrostMCP/internal/event"
	"github.com/GaxGuy/agpl-BifrostMCP/internal/logging"
	"github.com/GaxGuy/agpl-BifrostMCP/internal/lsp"
	"github.com/GaxGuy/agpl-BifrostMCP/internal/mcp"
	"github.com/GaxGuy/agpl-BifrostMCP/internal/metrics"
	"github.com/GaxGuy/agpl-BifrostMCP/internal/tool"
	"github.com/GaxGuy/agpl-BifrostMCP/internal/transport"
)

// DefaultPort is the preferred listen port.
const DefaultPort = 8008

// Config holds server configuration.
type Config struct {
	Host              string
	Port              int
	EnableCORS        bool
	HeartbeatInterval time.Duration
	ReadHeaderTimeout time.Duration
	Version           string
	// MaxPending bounds messages held while no channel is live.
	MaxPending int
	// LanguageServers, if set, reports reference backends on /status.
	LanguageServers func() []lsp.ServerStatus
}

// DefaultConfig returns default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:              "127.0.0.1",
		Port:              DefaultPort,
		EnableCORS:        true,
		HeartbeatInterval: SSEHeartbeatInterval,
		ReadHeaderTimeout: 10 * time.Second,
		Version:           "dev",
		MaxPending:        transport.DefaultMaxPending,
	}
}

// Server is the HTTP front door. It bridges /sse and /message to the
// session transport.
type Server struct {
	config     *Config
	router     *chi.Mux
	bus        *event.Bus
	dispatcher *mcp.Dispatcher
	transport  *transport.Transport
	stats      *event.Stats
	metrics    *metrics.Collector

	stopMetrics context.CancelFunc
	metricsDone chan struct{}
}

// New creates a new Server instance.
func New(cfg *Config, registry *tool.Registry, bus *event.Bus) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = SSEHeartbeatInterval
	}

	d := mcp.NewDispatcher(registry, bus, cfg.Version)
	t := transport.New(d, bus, transport.WithMaxPending(cfg.MaxPending))

	s := &Server{
		config:     cfg,
		router:     chi.NewRouter(),
		bus:        bus,
		dispatcher: d,
		transport:  t,
		stats:      event.NewStats(bus),
		metrics: metrics.New(func() metrics.Snapshot {
			s := t.Status()
			return metrics.Snapshot{Live: s.State == transport.StateLive, Queued: s.Queued}
		}),
		metricsDone: make(chan struct{}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.stopMetrics = cancel
	go func() {
		defer close(s.metricsDone)
		if err := s.metrics.Run(ctx, bus); err != nil {
			logging.Warn().Err(err).Msg("metrics collector failed")
		}
	}()

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures middleware for the server.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(logging.Middleware)
	s.router.Use(middleware.Recoverer)

	// Browser-hosted agents connect cross-origin.
	if s.config.EnableCORS {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Last-Event-ID", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Transport returns the session transport.
func (s *Server) Transport() *transport.Transport {
	return s.transport
}

// Stats returns the activity counters.
func (s *Server) Stats() *event.Stats {
	return s.stats
}

// Close shuts the transport down and detaches the server from the bus.
// Open event streams end once their channel is closed.
func (s *Server) Close(ctx context.Context) error {
	err := s.transport.Shutdown(ctx)
	s.stats.Stop()
	s.stopMetrics()
	select {
	case <-s.metricsDone:
	case <-ctx.Done():
	}
	return err
}
