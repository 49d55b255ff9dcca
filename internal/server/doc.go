// Package server provides the HTTP front door and lifecycle for the MCP server.
//
// The front door speaks the MCP SSE transport: a client opens an event stream
// with GET /sse, receives an "endpoint" event naming the URL to post to, and
// sends JSON-RPC messages with POST /message. Responses come back on the
// stream as "message" events.
//
// # Endpoints
//
//   - GET /sse: opens the live channel, superseding any previous one
//   - POST /message: delivers one JSON-RPC message to the live channel
//   - GET /health: liveness probe
//   - GET /status: channel state, pending queue length, counters and
//     language servers
//   - GET /metrics: Prometheus metrics
//
// # Pending Messages
//
// Messages posted while no channel is live are queued and acknowledged with
// 202 and a provisional {"status":"queued"} result. The queue is replayed in
// arrival order to the next channel, after its endpoint event. When the
// queue is full POST /message answers 503.
//
// Only one channel is live at a time. Opening a new stream closes the old one,
// and responses still in flight for a closed channel are dropped. Messages
// the closed channel had not started yet are kept for the next one.
//
// # Lifecycle
//
// Manager owns the single running instance:
//
//	m := server.NewManager(server.DefaultConfig(), registry)
//	inst, err := m.Start(ctx, server.DefaultPort)
//	if err != nil {
//		return err
//	}
//	fmt.Println("listening on", inst.Port)
//	defer m.Stop(context.Background())
//
// If the preferred port is taken the OS picks one; Instance.Port reports the
// port actually bound. Start while running returns ErrAlreadyRunning and Stop
// with nothing running is a no-op.
package server
