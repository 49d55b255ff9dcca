package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/GaxGuy/agpl-BifrostMCP/internal/event"
	"github.com/GaxGuy/agpl-BifrostMCP/internal/logging"
	"github.com/GaxGuy/agpl-BifrostMCP/internal/tool"
)

// ErrAlreadyRunning is returned by Start while an instance is running.
var ErrAlreadyRunning = errors.New("server already running")

// Instance is one running server: protocol server, front door and listener.
type Instance struct {
	Port int
	Addr string

	server   *Server
	bus      *event.Bus
	httpSrv  *http.Server
	listener net.Listener
	served   chan error
}

// Server returns the instance's front door.
func (i *Instance) Server() *Server {
	return i.server
}

// Bus returns the instance's event bus.
func (i *Instance) Bus() *event.Bus {
	return i.bus
}

// URL returns the base URL of the instance.
func (i *Instance) URL() string {
	return "http://" + i.Addr
}

// Manager owns the single server instance. Start and Stop are serialized by
// one mutex.
type Manager struct {
	config   Config
	registry *tool.Registry

	mu       sync.Mutex
	instance *Instance
}

// NewManager creates a manager that serves registry with cfg.
func NewManager(cfg *Config, registry *tool.Registry) *Manager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Manager{
		config:   *cfg,
		registry: registry,
	}
}

// Start binds a listener and serves. If preferredPort cannot be bound the
// OS picks a free port; the bound port is in the returned Instance.
func (m *Manager) Start(ctx context.Context, preferredPort int) (*Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.instance != nil {
		return nil, ErrAlreadyRunning
	}

	ln, err := m.listen(ctx, preferredPort)
	if err != nil {
		return nil, err
	}

	cfg := m.config
	cfg.Port = ln.Addr().(*net.TCPAddr).Port

	bus := event.NewBus()
	srv := New(&cfg, m.registry, bus)

	inst := &Instance{
		Port:     cfg.Port,
		Addr:     ln.Addr().String(),
		server:   srv,
		bus:      bus,
		listener: ln,
		httpSrv: &http.Server{
			Handler:           srv.Handler(),
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		},
		served: make(chan error, 1),
	}

	go func() {
		err := inst.httpSrv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		if err != nil {
			logging.Error().Err(err).Int("port", inst.Port).Msg("server stopped unexpectedly")
		}
		inst.served <- err
	}()

	m.instance = inst

	logging.Info().
		Str("addr", inst.Addr).
		Int("port", inst.Port).
		Msg("mcp server listening")
	bus.Publish(event.Event{Type: event.ServerStarted, Data: event.ServerData{Port: inst.Port}})

	return inst, nil
}

func (m *Manager) listen(ctx context.Context, port int) (net.Listener, error) {
	var lc net.ListenConfig
	addr := net.JoinHostPort(m.config.Host, strconv.Itoa(port))

	ln, err := lc.Listen(ctx, "tcp", addr)
	if err == nil {
		return ln, nil
	}
	if port == 0 {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	logging.Warn().
		Err(err).
		Int("port", port).
		Msg("preferred port unavailable, using an OS-assigned port")

	fallback := net.JoinHostPort(m.config.Host, "0")
	ln, err = lc.Listen(ctx, "tcp", fallback)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", fallback, err)
	}
	return ln, nil
}

// Stop shuts the running instance down. Stop with nothing running is a
// no-op.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst := m.instance
	if inst == nil {
		return nil
	}
	m.instance = nil

	// Closing the transport ends open event streams, so the HTTP shutdown
	// below does not wait on them.
	var errs []error
	if err := inst.server.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close transport: %w", err))
	}
	if err := inst.httpSrv.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http server: %w", err))
		_ = inst.httpSrv.Close()
	}
	if err := <-inst.served; err != nil {
		errs = append(errs, err)
	}

	inst.bus.PublishSync(event.Event{Type: event.ServerStopped, Data: event.ServerData{Port: inst.Port}})
	if err := inst.bus.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close event bus: %w", err))
	}

	logging.Info().Int("port", inst.Port).Msg("mcp server stopped")
	return errors.Join(errs...)
}

// Instance returns the running instance, or nil.
func (m *Manager) Instance() *Instance {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.instance
}

// Running reports whether an instance is running.
func (m *Manager) Running() bool {
	return m.Instance() != nil
}
