package transport

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aktasdeniz/maestro/pkg/a2a"
)

// In-band control texts understood on the JSON-RPC surface, alongside
// ordinary queries:
//
//	LIST_AGENTS
//	REGISTER_AGENT:<agent_url>
//	UNREGISTER_AGENT:<agent_id>
const (
	controlListAgents       = "LIST_AGENTS"
	controlRegisterPrefix   = "REGISTER_AGENT:"
	controlUnregisterPrefix = "UNREGISTER_AGENT:"
)

// handleJSONRPC serves the orchestrator's own A2A surface: message/send and
// tasks/get, POSTed to the server root.
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req a2a.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRPCError(w, nil, a2a.CodeParseError, "invalid JSON")
		return
	}
	if req.JSONRPC != "2.0" {
		writeRPCError(w, req.ID, a2a.CodeInvalidRequest, "jsonrpc must be \"2.0\"")
		return
	}

	switch req.Method {
	case a2a.MethodMessageSend:
		s.handleMessageSend(w, r, &req)
	case a2a.MethodTasksGet:
		s.handleTasksGet(w, &req)
	default:
		writeRPCError(w, req.ID, a2a.CodeMethodNotFound, fmt.Sprintf("unknown method %q", req.Method))
	}
}

func (s *Server) handleMessageSend(w http.ResponseWriter, r *http.Request, req *a2a.Request) {
	var params a2a.MessageSendParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		writeRPCError(w, req.ID, a2a.CodeInvalidParams, "invalid message/send params")
		return
	}

	query := inboundText(params.Message.Parts)
	if query == "" {
		writeRPCError(w, req.ID, a2a.CodeInvalidParams, "message contains no text part")
		return
	}

	t := s.tasks.Create(params.ID, params.Message.ContextID)
	slog.Info("Inbound task accepted", "task_id", t.ID, "context_id", t.ContextID)

	responseText, execErr := s.runQuery(r, query, params.Message.ContextID)
	if execErr != nil {
		slog.Error("Inbound task execution failed", "task_id", t.ID, "error", execErr)
		if _, err := s.tasks.Fail(t.ID, execErr.Error()); err != nil {
			slog.Error("Failed to mark task failed", "task_id", t.ID, "error", err)
		}
		writeRPCError(w, req.ID, a2a.CodeInternalError, execErr.Error())
		return
	}

	completed, err := s.tasks.Complete(t.ID, responseText)
	if err != nil {
		writeRPCError(w, req.ID, a2a.CodeInternalError, err.Error())
		return
	}
	writeRPCResult(w, req.ID, completed)
}

// runQuery guards executeQuery against panics so a crashed execution leaves
// the task failed rather than stuck in the working state.
func (s *Server) runQuery(r *http.Request, query, contextID string) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("query execution panicked: %v", rec)
		}
	}()
	return s.executeQuery(r, query, contextID), nil
}

// executeQuery dispatches a control text or runs the full query lifecycle,
// returning the text for the orchestrator_result artifact.
func (s *Server) executeQuery(r *http.Request, query, contextID string) string {
	trimmed := strings.TrimSpace(query)

	switch {
	case trimmed == controlListAgents:
		slog.Info("Listing available agents")
		agents := s.orchestrator.ListAgents()
		payload, err := json.MarshalIndent(map[string]interface{}{
			"type":        "agent_list",
			"agents":      agents,
			"total_count": len(agents),
		}, "", "  ")
		if err != nil {
			return fmt.Sprintf("Error: %v", err)
		}
		return string(payload)

	case strings.HasPrefix(trimmed, controlRegisterPrefix):
		endpoint := strings.TrimSpace(strings.TrimPrefix(trimmed, controlRegisterPrefix))
		result := s.orchestrator.RegisterAgent(r.Context(), endpoint)
		if !result.Success {
			return fmt.Sprintf("Registration failed: %s", result.Error)
		}
		return fmt.Sprintf("%s\nAgent ID: %s\nAgent Name: %s\nTotal agents: %d",
			result.Message, result.AgentID, result.AgentName, len(s.orchestrator.ListAgents()))

	case strings.HasPrefix(trimmed, controlUnregisterPrefix):
		identifier := strings.TrimSpace(strings.TrimPrefix(trimmed, controlUnregisterPrefix))
		result := s.orchestrator.UnregisterAgent(identifier)
		if !result.Success {
			return fmt.Sprintf("Unregistration failed: %s", result.Error)
		}
		return fmt.Sprintf("%s\nAgent ID: %s\nRemaining agents: %d",
			result.Message, result.AgentID, len(s.orchestrator.ListAgents()))

	default:
		result := s.orchestrator.ProcessRequest(r.Context(), query, contextID)
		if !result.Success {
			return fmt.Sprintf("Error: %s", result.Error)
		}
		if result.SelectedAgentID == "" {
			names := make([]string, 0)
			for _, agent := range s.orchestrator.ListAgents() {
				names = append(names, agent.Name)
			}
			return fmt.Sprintf("No suitable agent found for this request\nReason: %s\nAvailable agents: %s",
				result.Reasoning, strings.Join(names, ", "))
		}
		return fmt.Sprintf("Routed to %s\nConfidence: %.2f\nReasoning: %s\nResponse: %s",
			result.SelectedAgentName, result.Confidence, result.Reasoning, result.Response)
	}
}

func (s *Server) handleTasksGet(w http.ResponseWriter, req *a2a.Request) {
	var params a2a.TaskQueryParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		writeRPCError(w, req.ID, a2a.CodeInvalidParams, "invalid tasks/get params")
		return
	}

	t, err := s.tasks.Get(params.ID)
	if err != nil {
		writeRPCError(w, req.ID, a2a.CodeInvalidParams, fmt.Sprintf("task %q not found", params.ID))
		return
	}
	writeRPCResult(w, req.ID, t)
}

// inboundText joins the text parts of an inbound message, accepting either
// part discriminator.
func inboundText(parts []a2a.Part) string {
	var texts []string
	for _, part := range parts {
		if part.Type == "text" || part.Kind == "text" {
			texts = append(texts, part.Text)
		}
	}
	return strings.Join(texts, " ")
}

func writeRPCResult(w http.ResponseWriter, id interface{}, result interface{}) {
	raw, err := json.Marshal(result)
	if err != nil {
		writeRPCError(w, id, a2a.CodeInternalError, "unmarshalable result")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(a2a.Response{JSONRPC: "2.0", ID: id, Result: raw})
}

func writeRPCError(w http.ResponseWriter, id interface{}, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(a2a.Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &a2a.RPCError{Code: code, Message: message},
	})
}
