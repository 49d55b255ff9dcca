package mcp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
)

// JSON-RPC error codes used outside the protocol server.
const (
	CodeParseError    = mcpgo.PARSE_ERROR
	CodeDispatchError = -32000
)

var errNotObject = errors.New("parse request: message is not a JSON object")

// Request is the part of an inbound JSON-RPC message the transport needs
// for routing, acknowledgements and logging.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      mcpgo.RequestId `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the message carries no id.
func (r *Request) IsNotification() bool {
	return r.ID.IsNil()
}

// ParseRequest decodes the envelope of a JSON-RPC message. The body must be
// a JSON object; the protocol server validates the rest.
func ParseRequest(raw []byte) (*Request, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errNotObject
	}
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("parse request: %w", err)
	}
	return &req, nil
}

// QueuedResponse is the provisional acknowledgement for a message buffered
// while no channel is live.
func QueuedResponse(id mcpgo.RequestId) mcpgo.JSONRPCResponse {
	return mcpgo.NewJSONRPCResultResponse(id, map[string]string{"status": "queued"})
}

// ErrorResponse builds a JSON-RPC error envelope.
func ErrorResponse(id mcpgo.RequestId, code int, message string) mcpgo.JSONRPCError {
	return mcpgo.JSONRPCError{
		JSONRPC: mcpgo.JSONRPC_VERSION,
		ID:      id,
		Error:   mcpgo.NewJSONRPCErrorDetails(code, message, nil),
	}
}
