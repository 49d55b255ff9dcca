package server

import (
	"net/http"

	"github.com/GaxGuy/agpl-BifrostMCP/internal/event"
	"github.com/GaxGuy/agpl-BifrostMCP/internal/lsp"
	"github.com/GaxGuy/agpl-BifrostMCP/internal/transport"
)

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	transport.Status
	event.StatsSnapshot
	Tools           []string           `json:"tools"`
	LanguageServers []lsp.ServerStatus `json:"languageServers"`
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStatus handles GET /status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	tools := s.dispatcher.Tools()
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Name)
	}

	servers := []lsp.ServerStatus{}
	if s.config.LanguageServers != nil {
		servers = s.config.LanguageServers()
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		Status:          s.transport.Status(),
		StatsSnapshot:   s.stats.Snapshot(),
		Tools:           names,
		LanguageServers: servers,
	})
}
