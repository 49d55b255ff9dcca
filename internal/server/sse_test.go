package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// mockResponseWriter counts flushes on top of a recorder.
type mockResponseWriter struct {
	*httptest.ResponseRecorder
	flushed int
}

func (m *mockResponseWriter) Flush() {
	m.flushed++
}

func newMockResponseWriter() *mockResponseWriter {
	return &mockResponseWriter{
		ResponseRecorder: httptest.NewRecorder(),
	}
}

type noFlushWriter struct{}

func (n *noFlushWriter) Header() http.Header       { return http.Header{} }
func (n *noFlushWriter) Write([]byte) (int, error) { return 0, nil }
func (n *noFlushWriter) WriteHeader(int)           {}

type failingWriter struct {
	mockResponseWriter
}

func (f *failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestNewSSEWriter(t *testing.T) {
	w := newMockResponseWriter()
	sse, err := newSSEWriter(w)
	if err != nil {
		t.Fatalf("newSSEWriter failed: %v", err)
	}
	if sse == nil {
		t.Fatal("SSE writer should not be nil")
	}
}

func TestNewSSEWriter_NoFlusher(t *testing.T) {
	_, err := newSSEWriter(&noFlushWriter{})
	if !errors.Is(err, errStreamingUnsupported) {
		t.Errorf("Expected errStreamingUnsupported, got %v", err)
	}
}

func TestSSEWriter_WriteMessage(t *testing.T) {
	w := newMockResponseWriter()
	sse, _ := newSSEWriter(w)

	if err := sse.WriteMessage([]byte(`{"jsonrpc":"2.0","id":1,"result":{}}`)); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}

	body := w.Body.String()
	want := "event: message\ndata: {\"jsonrpc\":\"2.0\",\"id\":1,\"result\":{}}\n\n"
	if body != want {
		t.Errorf("Expected %q, got %q", want, body)
	}
	if w.flushed == 0 {
		t.Error("Expected Flush to be called")
	}
}

func TestSSEWriter_WriteHeartbeat(t *testing.T) {
	w := newMockResponseWriter()
	sse, _ := newSSEWriter(w)

	if err := sse.WriteHeartbeat(); err != nil {
		t.Fatalf("WriteHeartbeat failed: %v", err)
	}

	body := w.Body.String()
	if body != ": heartbeat\n\n" {
		t.Errorf("Expected heartbeat comment, got: %q", body)
	}
	if w.flushed == 0 {
		t.Error("Expected Flush to be called")
	}
}

func TestSSEWriter_WriteError(t *testing.T) {
	w := &failingWriter{mockResponseWriter: *newMockResponseWriter()}
	sse, _ := newSSEWriter(w)

	if err := sse.WriteMessage([]byte(`{}`)); err == nil {
		t.Error("Expected write error")
	}
	if err := sse.WriteHeartbeat(); err == nil {
		t.Error("Expected heartbeat error")
	}
}

func TestEndpointURL(t *testing.T) {
	got := endpointURL("01HZX3")
	if got != "/message?sessionId=01HZX3" {
		t.Errorf("Unexpected endpoint URL: %s", got)
	}
	if !strings.HasPrefix(endpointURL("a b"), "/message?sessionId=a+b") {
		t.Errorf("Expected query escaping, got %s", endpointURL("a b"))
	}
}
