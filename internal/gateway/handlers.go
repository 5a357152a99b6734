package gateway

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Version   string `json:"version"`
	Agents    int    `json:"agents"`
	Clients   int    `json:"clients"`
	Timestamp int64  `json:"timestamp"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Service:   "3ai",
		Version:   s.version,
		Agents:    s.registry.Count(),
		Clients:   s.clients.Count(),
		Timestamp: time.Now().UnixMilli(),
	})
}

// handleListAgents returns the fleet snapshot over plain HTTP for clients
// that do not hold a WebSocket open.
func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	agents := s.registry.List()
	views := make([]AgentView, 0, len(agents))
	for _, a := range agents {
		views = append(views, agentView(a))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	a, err := s.registry.Get(id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "agent not found",
			"id":    id,
		})
		return
	}
	writeJSON(w, http.StatusOK, agentView(a))
}

// handleNotFound returns a 404 for unknown routes.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
