package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cenkalti/backoff/v4"

	"github.com/GaxGuy/agpl-BifrostMCP/internal/fileuri"
	"github.com/GaxGuy/agpl-BifrostMCP/internal/logging"
	"github.com/GaxGuy/agpl-BifrostMCP/pkg/types"
)

// ErrDisabled is returned by every lookup when LSP support is turned off.
var ErrDisabled = errors.New("LSP disabled")

// ErrNoServer is returned when no configured language server matches a file.
var ErrNoServer = errors.New("no language server for file")

// Client manages connections to language servers.
type Client struct {
	mu       sync.RWMutex
	clients  map[string]*languageClient
	servers  map[string]*ServerConfig
	workDir  string
	disabled bool

	// lifetime of spawned servers, independent of any single request
	ctx    context.Context
	cancel context.CancelFunc

	// spawn retry policy; replaced in tests
	newBackOff func() backoff.BackOff
}

// languageClient wraps a connection to a language server.
type languageClient struct {
	mu        sync.Mutex
	conn      *jsonrpcConn
	cmd       *exec.Cmd
	root      string
	serverID  string
	openFiles map[string]int // URI -> version
}

// jsonrpcConn manages JSON-RPC communication.
type jsonrpcConn struct {
	stdin   io.WriteCloser
	stdout  *bufio.Reader
	nextID  int64
	mu      sync.Mutex
	writeMu sync.Mutex
	pending map[int64]chan *incomingMessage
	closed  bool
	done    chan struct{}
}

// NewClient creates a new LSP client manager. Entries in cfg override or
// extend the built-in servers.
func NewClient(workDir string, cfg *types.LSPConfig) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		clients: make(map[string]*languageClient),
		servers: builtInServers(),
		workDir: workDir,
		ctx:     ctx,
		cancel:  cancel,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			return backoff.WithMaxRetries(b, 2)
		},
	}

	if cfg != nil {
		c.disabled = cfg.Disabled
		for id, server := range cfg.Servers {
			if server.Disabled {
				delete(c.servers, id)
				continue
			}
			existing := c.servers[id]
			merged := &ServerConfig{ID: id, Command: server.Command, Patterns: server.Patterns}
			if existing != nil {
				if len(merged.Command) == 0 {
					merged.Command = existing.Command
				}
				if len(merged.Patterns) == 0 {
					merged.Patterns = existing.Patterns
				}
				merged.Markers = existing.Markers
			}
			c.servers[id] = merged
		}
	}

	return c
}

// builtInServers returns default language server configurations.
func builtInServers() map[string]*ServerConfig {
	return map[string]*ServerConfig{
		"typescript": {
			ID:       "typescript",
			Patterns: []string{"**/*.{ts,tsx,js,jsx,mjs,cjs}"},
			Command:  []string{"typescript-language-server", "--stdio"},
			Markers:  []string{"package.json", "tsconfig.json"},
		},
		"go": {
			ID:       "go",
			Patterns: []string{"**/*.go"},
			Command:  []string{"gopls"},
			Markers:  []string{"go.mod"},
		},
		"python": {
			ID:       "python",
			Patterns: []string{"**/*.py"},
			Command:  []string{"pyright-langserver", "--stdio"},
			Markers:  []string{"pyproject.toml", "setup.py", "requirements.txt"},
		},
		"rust": {
			ID:       "rust",
			Patterns: []string{"**/*.rs"},
			Command:  []string{"rust-analyzer"},
			Markers:  []string{"Cargo.toml"},
		},
	}
}

// serverFor returns the first server, by ID, whose patterns match filePath.
func (c *Client) serverFor(filePath string) *ServerConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.servers))
	for id := range c.servers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	candidate := strings.TrimPrefix(filepath.ToSlash(filePath), "/")
	for _, id := range ids {
		for _, pattern := range c.servers[id].Patterns {
			if ok, _ := doublestar.Match(strings.TrimPrefix(pattern, "/"), candidate); ok {
				return c.servers[id]
			}
		}
	}
	return nil
}

// getClient returns or creates a client for the given file.
func (c *Client) getClient(ctx context.Context, filePath string) (*languageClient, error) {
	if c.IsDisabled() {
		return nil, ErrDisabled
	}

	serverConfig := c.serverFor(filePath)
	if serverConfig == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoServer, filePath)
	}

	root := c.findProjectRoot(filePath, serverConfig.Markers)
	clientKey := fmt.Sprintf("%s:%s", serverConfig.ID, root)

	c.mu.RLock()
	client, ok := c.clients[clientKey]
	c.mu.RUnlock()
	if ok && !client.conn.isClosed() {
		return client, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock
	if client, ok := c.clients[clientKey]; ok {
		if !client.conn.isClosed() {
			return client, nil
		}
		delete(c.clients, clientKey)
	}

	var spawned *languageClient
	op := func() error {
		var err error
		spawned, err = c.spawnServer(ctx, serverConfig, root)
		if errors.Is(err, exec.ErrNotFound) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		logging.Warn().Err(err).Str("server", serverConfig.ID).Dur("retryIn", wait).Msg("language server failed to start")
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(c.newBackOff(), ctx), notify); err != nil {
		return nil, err
	}

	logging.Info().Str("server", serverConfig.ID).Str("root", root).Msg("language server started")
	c.clients[clientKey] = spawned
	return spawned, nil
}

// spawnServer starts a language server process and runs the initialize handshake.
func (c *Client) spawnServer(ctx context.Context, config *ServerConfig, root string) (*languageClient, error) {
	if len(config.Command) == 0 {
		return nil, fmt.Errorf("empty command for server: %s", config.ID)
	}

	cmd := exec.CommandContext(c.ctx, config.Command[0], config.Command[1:]...)
	cmd.Dir = root

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start server: %w", err)
	}

	conn := newConn(stdin, stdout)
	go func() {
		conn.readLoop()
		_ = cmd.Wait()
	}()

	client := &languageClient{
		conn:      conn,
		cmd:       cmd,
		root:      root,
		serverID:  config.ID,
		openFiles: make(map[string]int),
	}

	if err := client.initialize(ctx, root); err != nil {
		_ = cmd.Process.Kill()
		return nil, fmt.Errorf("initialize %s: %w", config.ID, err)
	}

	return client, nil
}

func newConn(stdin io.WriteCloser, stdout io.Reader) *jsonrpcConn {
	return &jsonrpcConn{
		stdin:   stdin,
		stdout:  bufio.NewReader(stdout),
		pending: make(map[int64]chan *incomingMessage),
		done:    make(chan struct{}),
	}
}

// readLoop reads messages from the server until the stream ends.
func (c *jsonrpcConn) readLoop() {
	for {
		msg, err := c.readMessage()
		if err != nil {
			c.markClosed()
			return
		}

		switch {
		case msg.Method != "" && len(msg.ID) > 0:
			c.answerServerRequest(msg)
		case msg.Method != "":
			// notification (diagnostics, progress, logs)
		default:
			id, err := strconv.ParseInt(string(msg.ID), 10, 64)
			if err != nil {
				continue
			}
			c.mu.Lock()
			if ch, ok := c.pending[id]; ok {
				ch <- msg
				delete(c.pending, id)
			}
			c.mu.Unlock()
		}
	}
}

// answerServerRequest replies to server-to-client requests so the server
// never blocks waiting on us. Configuration requests get one null per item.
func (c *jsonrpcConn) answerServerRequest(msg *incomingMessage) {
	var result any
	if msg.Method == "workspace/configuration" {
		var params configurationParams
		_ = json.Unmarshal(msg.Params, &params)
		result = make([]any, len(params.Items))
	}
	_ = c.writeMessage(JSONRPCResponse{JSONRPC: "2.0", ID: msg.ID, Result: result})
}

func (c *jsonrpcConn) markClosed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
	for _, ch := range c.pending {
		close(ch)
	}
	c.pending = make(map[int64]chan *incomingMessage)
}

func (c *jsonrpcConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// readMessage reads a single Content-Length framed message.
func (c *jsonrpcConn) readMessage() (*incomingMessage, error) {
	var contentLength int
	for {
		line, err := c.stdout.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if strings.HasPrefix(line, "Content-Length:") {
			lenStr := strings.TrimSpace(strings.TrimPrefix(line, "Content-Length:"))
			contentLength, _ = strconv.Atoi(lenStr)
		}
	}

	if contentLength == 0 {
		return nil, fmt.Errorf("no content-length header")
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(c.stdout, body); err != nil {
		return nil, err
	}

	var msg incomingMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// call sends a request and waits for a response.
func (c *jsonrpcConn) call(ctx context.Context, method string, params any, result any) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("connection closed")
	}

	id := atomic.AddInt64(&c.nextID, 1)
	ch := make(chan *incomingMessage, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	req := JSONRPCRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	}

	if err := c.writeMessage(req); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return err
	}

	select {
	case resp := <-ch:
		if resp == nil {
			return fmt.Errorf("connection closed")
		}
		if resp.Error != nil {
			return fmt.Errorf("LSP error %d: %s", resp.Error.Code, resp.Error.Message)
		}
		if result != nil && len(resp.Result) > 0 {
			return json.Unmarshal(resp.Result, result)
		}
		return nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return ctx.Err()
	}
}

// notify sends a notification (no response expected).
func (c *jsonrpcConn) notify(method string, params any) error {
	return c.writeMessage(JSONRPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
	})
}

// writeMessage writes a Content-Length framed message.
func (c *jsonrpcConn) writeMessage(msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := fmt.Fprintf(c.stdin, "Content-Length: %d\r\n\r\n", len(body)); err != nil {
		return err
	}
	_, err = c.stdin.Write(body)
	return err
}

// initialize sends the initialize request to the server.
func (lc *languageClient) initialize(ctx context.Context, root string) error {
	rootURI := fileuri.FromPath(root)
	params := InitializeParams{
		ProcessID:        os.Getpid(),
		RootURI:          rootURI,
		WorkspaceFolders: []WorkspaceFolder{{URI: rootURI, Name: filepath.Base(root)}},
		Capabilities: ClientCapabilities{
			TextDocument: TextDocumentClientCapabilities{
				References: &DynamicRegistration{},
			},
			Workspace: WorkspaceClientCapabilities{
				Configuration:    true,
				WorkspaceFolders: true,
			},
		},
	}

	var result json.RawMessage
	if err := lc.conn.call(ctx, "initialize", params, &result); err != nil {
		return err
	}

	return lc.conn.notify("initialized", struct{}{})
}

// findProjectRoot walks up from the file looking for a marker, falling back to the work dir.
func (c *Client) findProjectRoot(filePath string, markers []string) string {
	if len(markers) == 0 {
		markers = []string{".git"}
	}

	dir := filepath.Dir(filePath)
	for {
		for _, marker := range markers {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return c.workDir
}

// Status returns the status of all LSP servers.
func (c *Client) Status() []ServerStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := make([]ServerStatus, 0, len(c.clients))
	for key, client := range c.clients {
		status = append(status, ServerStatus{
			ID:     client.serverID,
			Root:   client.root,
			Key:    key,
			Active: !client.conn.isClosed(),
		})
	}
	sort.Slice(status, func(i, j int) bool { return status[i].Key < status[j].Key })
	return status
}

// Close shuts down all language servers.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, client := range c.clients {
		if !client.conn.isClosed() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			_ = client.conn.call(ctx, "shutdown", nil, nil)
			cancel()
			_ = client.conn.notify("exit", nil)
		}
		_ = client.conn.stdin.Close()
	}
	c.cancel()

	c.clients = make(map[string]*languageClient)
	return nil
}

// IsDisabled returns whether LSP is disabled.
func (c *Client) IsDisabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.disabled
}

// GetServers returns the configured servers.
func (c *Client) GetServers() map[string]*ServerConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()

	servers := make(map[string]*ServerConfig)
	for k, v := range c.servers {
		servers[k] = v
	}
	return servers
}
