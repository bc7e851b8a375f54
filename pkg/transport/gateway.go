package transport

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aktasdeniz/maestro"
)

type registerRequest struct {
	Endpoint string `json:"endpoint"`
}

type unregisterRequest struct {
	AgentIdentifier string `json:"agent_identifier"`
}

type queryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

type listResponse struct {
	Success    bool        `json:"success"`
	Agents     interface{} `json:"agents"`
	TotalCount int         `json:"total_count"`
	Message    string      `json:"message"`
}

// managementRouter builds the chi router mounted under /management.
func (s *Server) managementRouter() chi.Router {
	r := chi.NewRouter()

	r.Get("/", s.handleManagementIndex)
	r.Get("/health", s.handleHealth)

	r.Route("/api/v1/agents", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/unregister", s.handleUnregister)
		r.Get("/list", s.handleList)
		r.Get("/health", s.handleAgentsHealth)

		// GET conveniences for curl-friendly management.
		r.Get("/register_agent", s.handleRegisterGet)
		r.Get("/unregister_agent", s.handleUnregisterGet)
		r.Get("/list_agents", s.handleList)

		r.Post("/query", s.handleQuery)
		r.Post("/query/stream", s.handleQueryStream)
		r.Get("/stats", s.handleStats)
		r.Get("/context/{session_id}", s.handleSessionContext)
	})

	return r
}

func (s *Server) handleManagementIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Orchestrator Agent Management API",
		"version": maestro.Version,
		"endpoints": map[string]string{
			"register_agent":   "/management/api/v1/agents/register",
			"unregister_agent": "/management/api/v1/agents/unregister",
			"list_agents":      "/management/api/v1/agents/list",
			"query":            "/management/api/v1/agents/query",
			"stats":            "/management/api/v1/agents/stats",
			"health":           "/management/health",
		},
	})
}

// handleAgentsHealth is the liveness probe on the agents API surface.
func (s *Server) handleAgentsHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

// handleHealth reports service health with version and registry size.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"version": maestro.Version,
		"agents":  len(s.orchestrator.ListAgents()),
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.registerAgent(w, r, req.Endpoint)
}

func (s *Server) handleRegisterGet(w http.ResponseWriter, r *http.Request) {
	s.registerAgent(w, r, r.URL.Query().Get("endpoint"))
}

func (s *Server) registerAgent(w http.ResponseWriter, r *http.Request, endpoint string) {
	if endpoint == "" {
		writeError(w, http.StatusBadRequest, "endpoint is required")
		return
	}

	slog.Info("Registering agent", "endpoint", endpoint)
	result := s.orchestrator.RegisterAgent(r.Context(), endpoint)
	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, result)
}

func (s *Server) handleUnregister(w http.ResponseWriter, r *http.Request) {
	var req unregisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.unregisterAgent(w, req.AgentIdentifier)
}

func (s *Server) handleUnregisterGet(w http.ResponseWriter, r *http.Request) {
	s.unregisterAgent(w, r.URL.Query().Get("agent_identifier"))
}

func (s *Server) unregisterAgent(w http.ResponseWriter, identifier string) {
	if identifier == "" {
		writeError(w, http.StatusBadRequest, "agent_identifier is required")
		return
	}

	slog.Info("Unregistering agent", "identifier", identifier)
	result := s.orchestrator.UnregisterAgent(identifier)
	status := http.StatusOK
	if !result.Success {
		status = http.StatusNotFound
	}
	writeJSON(w, status, result)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	agents := s.orchestrator.ListAgents()
	writeJSON(w, http.StatusOK, listResponse{
		Success:    true,
		Agents:     agents,
		TotalCount: len(agents),
		Message:    fmt.Sprintf("Found %d registered agents", len(agents)),
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	result := s.orchestrator.ProcessRequest(r.Context(), req.Query, req.SessionID)
	writeJSON(w, http.StatusOK, result)
}

// handleQueryStream runs the query lifecycle and replays it as SSE events:
// status, metadata, chunk, done. A transport failure becomes an error event.
func (s *Server) handleQueryStream(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeSSE(w, flusher, "status", map[string]interface{}{
		"state":     "routing",
		"timestamp": time.Now().Format(time.RFC3339),
	})

	result := s.orchestrator.ProcessRequest(r.Context(), req.Query, req.SessionID)

	if !result.Success {
		writeSSE(w, flusher, "error", map[string]interface{}{
			"error":    result.Error,
			"fallback": result.Response,
		})
		return
	}

	writeSSE(w, flusher, "metadata", map[string]interface{}{
		"session_id":          result.SessionID,
		"selected_agent_id":   result.SelectedAgentID,
		"selected_agent_name": result.SelectedAgentName,
		"confidence":          result.Confidence,
		"reasoning":           result.Reasoning,
		"context_enriched":    result.ContextEnriched,
	})
	writeSSE(w, flusher, "chunk", map[string]interface{}{
		"text": result.Response,
	})
	writeSSE(w, flusher, "done", map[string]interface{}{
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orchestrator.SessionStats())
}

func (s *Server) handleSessionContext(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	writeJSON(w, http.StatusOK, s.orchestrator.SessionContext(sessionID))
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	flusher.Flush()
}
