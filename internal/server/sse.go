package server

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/GaxGuy/agpl-BifrostMCP/internal/logging"
)

const (
	// SSEHeartbeatInterval is the default interval for SSE heartbeats.
	SSEHeartbeatInterval = 30 * time.Second

	eventEndpoint = "endpoint"
	eventMessage  = "message"
)

var errStreamingUnsupported = errors.New("streaming not supported")

// sseWriter wraps http.ResponseWriter for SSE. It is the transport.Stream of
// one channel; the transport serializes calls to it.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
}

// newSSEWriter creates a new SSE writer.
func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	// ResponseController reaches the flusher through middleware wrappers.
	rc := http.NewResponseController(w)

	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errStreamingUnsupported
	}

	return &sseWriter{w: w, flusher: flusher, rc: rc}, nil
}

// writeEvent writes one SSE event. data must not contain newlines.
func (s *sseWriter) writeEvent(eventType string, data []byte) error {
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", eventType, data); err != nil {
		return err
	}
	s.flush()
	return nil
}

func (s *sseWriter) flush() {
	if err := s.rc.Flush(); err != nil {
		s.flusher.Flush()
	}
}

// WriteMessage writes a JSON-RPC message as a "message" event.
func (s *sseWriter) WriteMessage(data []byte) error {
	return s.writeEvent(eventMessage, data)
}

// WriteHeartbeat writes an SSE comment.
func (s *sseWriter) WriteHeartbeat() error {
	if _, err := fmt.Fprint(s.w, ": heartbeat\n\n"); err != nil {
		return err
	}
	s.flush()
	return nil
}

// endpointURL is where clients of channel id post their messages.
func endpointURL(id string) string {
	return "/message?sessionId=" + url.QueryEscape(id)
}

// handleSSE handles GET /sse. It opens the live channel, superseding any
// previous one, and holds the stream until the client goes away or the
// channel is closed by the transport.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	sse, err := newSSEWriter(w)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	w.WriteHeader(http.StatusOK)
	sse.flush()

	// The endpoint event goes out before the channel is live so replayed
	// responses can never precede it.
	id := ulid.Make().String()
	if err := sse.writeEvent(eventEndpoint, []byte(endpointURL(id))); err != nil {
		logging.Warn().Err(err).Msg("sse handshake failed")
		return
	}

	ch, err := s.transport.Open(id, sse)
	if err != nil {
		logging.Warn().Err(err).Msg("sse channel rejected")
		return
	}
	defer s.transport.Close(ch)

	ticker := time.NewTicker(s.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ch.Done():
			return
		case <-ticker.C:
			if err := ch.Heartbeat(); err != nil {
				logging.Debug().Err(err).Str("channel", ch.ID()).Msg("heartbeat failed")
				return
			}
		}
	}
}
