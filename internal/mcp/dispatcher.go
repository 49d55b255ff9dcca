package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/GaxGuy/agpl-BifrostMCP/internal/event"
	"github.com/GaxGuy/agpl-BifrostMCP/internal/logging"
	"github.com/GaxGuy/agpl-BifrostMCP/internal/tool"
)

// ServerName is the implementation name reported in initialize results.
const ServerName = "bifrost"

const instructions = "Use find_usages to list every reference to the symbol at a " +
	"zero-based position in a document."

// Dispatcher answers JSON-RPC messages for one protocol server. Tool calls
// are routed to the tool registry; every call yields exactly one result.
type Dispatcher struct {
	server   *server.MCPServer
	registry *tool.Registry
	bus      *event.Bus
}

// NewDispatcher creates a protocol server advertising every tool in the
// registry.
func NewDispatcher(registry *tool.Registry, bus *event.Bus, version string) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		bus:      bus,
	}

	hooks := &server.Hooks{}
	hooks.AddAfterCallTool(func(ctx context.Context, id any, req *mcpgo.CallToolRequest, result *mcpgo.CallToolResult) {
		d.recordCall(req.Params.Name, result)
	})
	hooks.AddOnError(func(ctx context.Context, id any, method mcpgo.MCPMethod, message any, err error) {
		logging.Warn().
			Err(err).
			Str("method", string(method)).
			Interface("id", id).
			Msg("protocol request failed")
	})

	d.server = server.NewMCPServer(
		ServerName,
		version,
		server.WithToolCapabilities(false),
		server.WithInstructions(instructions),
		server.WithHooks(hooks),
		server.WithRecovery(),
	)

	for _, t := range registry.List() {
		d.server.AddTool(t, d.callTool)
	}

	return d
}

// Server returns the underlying protocol server.
func (d *Dispatcher) Server() *server.MCPServer {
	return d.server
}

func (d *Dispatcher) callTool(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return d.registry.Invoke(ctx, req.Params.Name, req.Params.Arguments), nil
}

func (d *Dispatcher) recordCall(name string, result *mcpgo.CallToolResult) {
	isError := result != nil && result.IsError
	logging.Info().
		Str("tool", name).
		Bool("isError", isError).
		Msg("tool invoked")
	d.bus.Publish(event.Event{
		Type: event.ToolInvoked,
		Data: event.ToolData{Tool: name, IsError: isError},
	})
}

// Dispatch handles one inbound message and returns the encoded response,
// or nil when the message is a notification.
func (d *Dispatcher) Dispatch(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	var resp mcpgo.JSONRPCMessage
	if r, ok := d.unknownToolCall(ctx, raw); ok {
		resp = r
	} else {
		resp = d.server.HandleMessage(ctx, raw)
	}
	if resp == nil {
		return nil, nil
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return data, nil
}

// unknownToolCall answers tools/call for names missing from the registry.
// The protocol server would reject those at the JSON-RPC level; they are
// tool results here so the caller sees an isError result naming the tool.
func (d *Dispatcher) unknownToolCall(ctx context.Context, raw json.RawMessage) (mcpgo.JSONRPCMessage, bool) {
	var msg struct {
		JSONRPC string               `json:"jsonrpc"`
		ID      mcpgo.RequestId      `json:"id"`
		Method  mcpgo.MCPMethod      `json:"method"`
		Params  mcpgo.CallToolParams `json:"params"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, false
	}
	if msg.JSONRPC != mcpgo.JSONRPC_VERSION || msg.Method != mcpgo.MethodToolsCall || msg.ID.IsNil() {
		return nil, false
	}
	if _, ok := d.registry.Get(msg.Params.Name); ok {
		return nil, false
	}

	result := d.registry.Invoke(ctx, msg.Params.Name, msg.Params.Arguments)
	d.recordCall(msg.Params.Name, result)
	return mcpgo.NewJSONRPCResultResponse(msg.ID, result), true
}

// Tools returns the advertised tool descriptors.
func (d *Dispatcher) Tools() []mcpgo.Tool {
	return d.registry.List()
}
