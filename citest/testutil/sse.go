package testutil

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Event types on the MCP event stream
const (
	EventEndpoint  = "endpoint"
	EventMessage   = "message"
	EventHeartbeat = "heartbeat"
)

// SSEEvent represents a Server-Sent Event
type SSEEvent struct {
	Type string
	Data string
}

// RPCResponse is a JSON-RPC response delivered as a message event
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is the error member of a JSON-RPC response
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Response parses a message event as a JSON-RPC response
func (evt *SSEEvent) Response() (*RPCResponse, error) {
	if evt.Type != EventMessage {
		return nil, fmt.Errorf("not a message event: %q", evt.Type)
	}
	var resp RPCResponse
	if err := json.Unmarshal([]byte(evt.Data), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SSEClient provides SSE client utilities for testing
type SSEClient struct {
	BaseURL    string
	HTTPClient *http.Client
	Headers    http.Header

	eventsCh chan SSEEvent
	errCh    chan error
	doneCh   chan struct{}
	cancel   context.CancelFunc
	body     io.ReadCloser
}

// NewSSEClient creates a new SSE test client
func NewSSEClient(baseURL string) *SSEClient {
	return &SSEClient{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 0, // No timeout for SSE
		},
		eventsCh: make(chan SSEEvent, 256),
		errCh:    make(chan error, 1),
		doneCh:   make(chan struct{}),
	}
}

// Connect opens GET /sse
func (c *SSEClient) Connect(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/sse", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "text/event-stream") {
		resp.Body.Close()
		return fmt.Errorf("unexpected content type: %s", contentType)
	}

	c.Headers = resp.Header
	c.body = resp.Body

	go c.readEvents(resp.Body)

	return nil
}

// readEvents reads SSE events from the connection
func (c *SSEClient) readEvents(body io.Reader) {
	defer func() {
		close(c.doneCh)
		close(c.eventsCh)
	}()

	reader := bufio.NewReader(body)
	var eventType string
	var eventData strings.Builder

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
				select {
				case c.errCh <- err:
				default:
				}
			}
			return
		}

		line = strings.TrimRight(line, "\r\n")

		// Empty line = event complete
		if line == "" {
			if eventType != "" || eventData.Len() > 0 {
				c.record(SSEEvent{Type: eventType, Data: eventData.String()})
			}
			eventType = ""
			eventData.Reset()
			continue
		}

		// Comment (heartbeat)
		if strings.HasPrefix(line, ":") {
			c.record(SSEEvent{Type: EventHeartbeat})
			continue
		}

		if strings.HasPrefix(line, "event:") {
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		} else if strings.HasPrefix(line, "data:") {
			eventData.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
}

func (c *SSEClient) record(evt SSEEvent) {
	select {
	case c.eventsCh <- evt:
	default:
		// Channel full, drop event
	}
}

// Events returns the event channel
func (c *SSEClient) Events() <-chan SSEEvent {
	return c.eventsCh
}

// Done is closed when the server ends the stream
func (c *SSEClient) Done() <-chan struct{} {
	return c.doneCh
}

// WaitForEvent waits for a specific event type with timeout
func (c *SSEClient) WaitForEvent(eventType string, timeout time.Duration) (*SSEEvent, error) {
	deadline := time.After(timeout)
	for {
		select {
		case evt, ok := <-c.eventsCh:
			if !ok {
				return nil, fmt.Errorf("connection closed")
			}
			if evt.Type == eventType {
				return &evt, nil
			}
		case err := <-c.errCh:
			return nil, err
		case <-deadline:
			return nil, fmt.Errorf("timeout waiting for event: %s", eventType)
		}
	}
}

// WaitForEndpoint waits for the endpoint event and returns the message URL path
func (c *SSEClient) WaitForEndpoint(timeout time.Duration) (string, error) {
	evt, err := c.WaitForEvent(EventEndpoint, timeout)
	if err != nil {
		return "", err
	}
	return evt.Data, nil
}

// WaitForResponse waits for the next JSON-RPC response on the stream
func (c *SSEClient) WaitForResponse(timeout time.Duration) (*RPCResponse, error) {
	evt, err := c.WaitForEvent(EventMessage, timeout)
	if err != nil {
		return nil, err
	}
	return evt.Response()
}

// WaitForHeartbeat waits for a heartbeat with timeout
func (c *SSEClient) WaitForHeartbeat(timeout time.Duration) error {
	_, err := c.WaitForEvent(EventHeartbeat, timeout)
	return err
}

// Close closes the SSE connection
func (c *SSEClient) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	if c.body != nil {
		c.body.Close()
	}
}
