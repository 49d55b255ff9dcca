package server

import (
	"encoding/json"
	"net/http"

	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/GaxGuy/agpl-BifrostMCP/internal/logging"
	"github.com/GaxGuy/agpl-BifrostMCP/internal/mcp"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Debug().Err(err).Msg("write response failed")
	}
}

// writeRPCError writes a JSON-RPC error envelope.
func writeRPCError(w http.ResponseWriter, status int, id mcpgo.RequestId, code int, message string) {
	writeJSON(w, status, mcp.ErrorResponse(id, code, message))
}

// writeAccepted acknowledges a message the live channel has processed.
func writeAccepted(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusAccepted)
	_, _ = w.Write([]byte("Accepted"))
}
