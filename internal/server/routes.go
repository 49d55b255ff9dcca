package server

// setupRoutes configures all routes.
func (s *Server) setupRoutes() {
	r := s.router

	// MCP over SSE
	r.Get("/sse", s.handleSSE)
	r.Post("/message", s.handleMessage)

	// Operations
	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Method("GET", "/metrics", s.metrics.Handler())
}
