package server

import (
	"errors"
	"io"
	"net/http"

	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/GaxGuy/agpl-BifrostMCP/internal/logging"
	"github.com/GaxGuy/agpl-BifrostMCP/internal/mcp"
	"github.com/GaxGuy/agpl-BifrostMCP/internal/transport"
)

// maxMessageBytes bounds a posted message body.
const maxMessageBytes = 4 << 20

// handleMessage handles POST /message.
//
// With no live channel the message is queued and acknowledged with a
// provisional result. With a live channel the response travels over the
// event stream and this request only returns 202 once it was processed.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMessageBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeRPCError(w, http.StatusRequestEntityTooLarge, mcpgo.NewRequestId(nil), mcpgo.INVALID_REQUEST, "Request body too large")
			return
		}
		writeRPCError(w, http.StatusBadRequest, mcpgo.NewRequestId(nil), mcp.CodeParseError, "Failed to read request body")
		return
	}

	req, err := mcp.ParseRequest(body)
	if err != nil {
		writeRPCError(w, http.StatusBadRequest, mcpgo.NewRequestId(nil), mcp.CodeParseError, "Parse error")
		return
	}

	if sid := r.URL.Query().Get("sessionId"); sid != "" {
		if ch := s.transport.Current(); ch == nil || ch.ID() != sid {
			logging.Debug().
				Str("sessionId", sid).
				Str("method", req.Method).
				Msg("message for a stale session, routing to current channel")
		}
	}

	env := transport.NewEnvelope(body, req.Method, req.ID.Value())
	outcome, err := s.transport.Deliver(r.Context(), env)
	if errors.Is(err, transport.ErrQueueFull) {
		writeRPCError(w, http.StatusServiceUnavailable, req.ID, mcp.CodeDispatchError, "Too many queued messages; open /sse first")
		return
	}
	if err != nil {
		logging.Error().
			Err(err).
			Str("method", req.Method).
			Interface("id", req.ID.Value()).
			Msg("message dispatch failed")
		writeRPCError(w, http.StatusInternalServerError, req.ID, mcp.CodeDispatchError, err.Error())
		return
	}

	switch outcome {
	case transport.Queued:
		writeJSON(w, http.StatusAccepted, mcp.QueuedResponse(req.ID))
	default:
		writeAccepted(w)
	}
}
