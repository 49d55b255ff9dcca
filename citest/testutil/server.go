package testutil

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/GaxGuy/agpl-BifrostMCP/internal/preview"
	"github.com/GaxGuy/agpl-BifrostMCP/internal/server"
	"github.com/GaxGuy/agpl-BifrostMCP/internal/tool"
	"github.com/GaxGuy/agpl-BifrostMCP/pkg/types"
)

// TestServer wraps a running server instance for testing
type TestServer struct {
	Manager  *server.Manager
	Instance *server.Instance
	BaseURL  string
	Port     int
	Provider *FakeProvider
	Previews *preview.Reader
	WorkDir  *TempDir
}

// TestServerOption configures TestServer
type TestServerOption func(*testServerConfig)

type testServerConfig struct {
	heartbeat       time.Duration
	providerTimeout time.Duration
	port            int
}

// WithHeartbeat sets the SSE heartbeat interval
func WithHeartbeat(d time.Duration) TestServerOption {
	return func(c *testServerConfig) {
		c.heartbeat = d
	}
}

// WithProviderTimeout bounds each reference lookup
func WithProviderTimeout(d time.Duration) TestServerOption {
	return func(c *testServerConfig) {
		c.providerTimeout = d
	}
}

// WithPort sets the preferred port
func WithPort(port int) TestServerOption {
	return func(c *testServerConfig) {
		c.port = port
	}
}

// StartTestServer creates and starts a test server on a free port
func StartTestServer(opts ...TestServerOption) (*TestServer, error) {
	cfg := &testServerConfig{heartbeat: server.SSEHeartbeatInterval}
	for _, opt := range opts {
		opt(cfg)
	}

	workDir, err := NewTempDir()
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}

	previews, err := preview.NewReader(0, true)
	if err != nil {
		workDir.Cleanup()
		return nil, fmt.Errorf("failed to create preview reader: %w", err)
	}

	provider := &FakeProvider{}
	registry := tool.DefaultRegistry(provider, previews, tool.WithProviderTimeout(cfg.providerTimeout))

	serverConfig := server.DefaultConfig()
	serverConfig.HeartbeatInterval = cfg.heartbeat
	serverConfig.Version = "test"

	manager := server.NewManager(serverConfig, registry)
	inst, err := manager.Start(context.Background(), cfg.port)
	if err != nil {
		previews.Close()
		workDir.Cleanup()
		return nil, fmt.Errorf("failed to start server: %w", err)
	}

	if err := waitForServer(inst.Addr, 10*time.Second); err != nil {
		manager.Stop(context.Background())
		previews.Close()
		workDir.Cleanup()
		return nil, fmt.Errorf("server failed to start: %w", err)
	}

	return &TestServer{
		Manager:  manager,
		Instance: inst,
		BaseURL:  inst.URL(),
		Port:     inst.Port,
		Provider: provider,
		Previews: previews,
		WorkDir:  workDir,
	}, nil
}

// Stop shuts down the test server and cleans up
func (ts *TestServer) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := ts.Manager.Stop(ctx)
	ts.Previews.Close()
	ts.WorkDir.Cleanup()
	return err
}

// Client returns a new test client for this server
func (ts *TestServer) Client() *TestClient {
	return NewTestClient(ts.BaseURL)
}

// SSEClient returns a new SSE client for this server
func (ts *TestServer) SSEClient() *SSEClient {
	return NewSSEClient(ts.BaseURL)
}

// FakeProvider is a scriptable reference provider
type FakeProvider struct {
	mu        sync.Mutex
	locations []types.Location
	err       error
	delay     time.Duration
	calls     []types.DocumentLocation
}

// Set replaces the locations returned by every lookup
func (p *FakeProvider) Set(locations []types.Location, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.locations = locations
	p.err = err
}

// SetDelay makes each lookup block for d or until its context ends
func (p *FakeProvider) SetDelay(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delay = d
}

// Calls returns the lookups received so far
func (p *FakeProvider) Calls() []types.DocumentLocation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]types.DocumentLocation(nil), p.calls...)
}

// Reset clears scripted results and recorded calls
func (p *FakeProvider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.locations, p.err, p.delay, p.calls = nil, nil, 0, nil
}

// References implements tool.ReferenceProvider
func (p *FakeProvider) References(ctx context.Context, loc types.DocumentLocation, _ bool) ([]types.Location, error) {
	p.mu.Lock()
	p.calls = append(p.calls, loc)
	locations, err, delay := p.locations, p.err, p.delay
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return locations, err
}

// waitForServer waits until the server is accepting connections
func waitForServer(addr string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err == nil {
			conn.Close()
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("server at %s not ready within %v", addr, timeout)
}
