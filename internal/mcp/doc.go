// Package mcp dispatches Model Context Protocol messages for the server.
//
// A Dispatcher wraps a mark3labs/mcp-go protocol server whose tools are
// taken from a tool.Registry. Inbound JSON-RPC messages arrive as raw bytes
// from the session transport; Dispatch returns the encoded response that the
// transport writes to the live event stream.
//
// # Methods
//
//	initialize                 server info and capabilities
//	ping                       empty result
//	notifications/initialized  no response
//	tools/list                 the registry's tool descriptors
//	tools/call                 one isError-flagged result per call
//
// Tool failures are never JSON-RPC errors. Calls naming an unregistered tool
// return an isError result with an "Unknown tool" message, matching the
// registry's own error shape.
//
// # Usage
//
//	registry := tool.DefaultRegistry(provider, previews)
//	d := mcp.NewDispatcher(registry, bus, "1.0.0")
//
//	resp, err := d.Dispatch(ctx, []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
package mcp
