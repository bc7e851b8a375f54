// Package orchestrator ties the registry, session manager, routing engine,
// and task transport together into the query lifecycle: validate session,
// enrich, route, forward, record.
package orchestrator

import (
	gocontext "context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aktasdeniz/maestro/pkg/a2a"
	"github.com/aktasdeniz/maestro/pkg/context"
	"github.com/aktasdeniz/maestro/pkg/observability"
	"github.com/aktasdeniz/maestro/pkg/registry"
	"github.com/aktasdeniz/maestro/pkg/router"
)

// NoAgentResponse is returned when routing declines the query.
const NoAgentResponse = "No suitable agent found for this request. Please try a different query or register additional agents."

// historyTurns is how many previous turns ride along to the downstream agent.
const historyTurns = 3

// Orchestrator is the facade in front of all orchestration subsystems. Safe
// for concurrent use; each collaborator carries its own locking.
type Orchestrator struct {
	registry *registry.Registry
	sessions *context.Manager
	engine   *router.Engine
	client   *a2a.Client
}

// New wires the orchestrator facade.
func New(reg *registry.Registry, sessions *context.Manager, engine *router.Engine, client *a2a.Client) *Orchestrator {
	return &Orchestrator{
		registry: reg,
		sessions: sessions,
		engine:   engine,
		client:   client,
	}
}

// QueryResult is the outcome of one query lifecycle.
type QueryResult struct {
	Success           bool                   `json:"success"`
	Request           string                 `json:"request"`
	OriginalRequest   string                 `json:"original_request,omitempty"`
	EnrichedRequest   string                 `json:"enriched_request,omitempty"`
	SessionID         string                 `json:"session_id"`
	SelectedAgentID   string                 `json:"selected_agent_id"`
	SelectedAgentName string                 `json:"selected_agent_name"`
	AgentSkills       []string               `json:"agent_skills"`
	Confidence        float64                `json:"confidence"`
	Reasoning         string                 `json:"reasoning"`
	Response          string                 `json:"response"`
	ContextEnriched   bool                   `json:"context_enriched"`
	Error             string                 `json:"error,omitempty"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
}

// RegistrationResult reports a register or unregister operation.
type RegistrationResult struct {
	Success   bool   `json:"success"`
	AgentID   string `json:"agent_id,omitempty"`
	AgentName string `json:"agent_name,omitempty"`
	Endpoint  string `json:"endpoint,omitempty"`
	Message   string `json:"message"`
	Error     string `json:"error,omitempty"`
}

// ProcessRequest drives the full query lifecycle. The router scores the
// enriched query; the recorded turn keeps the user's original wording.
func (o *Orchestrator) ProcessRequest(ctx gocontext.Context, request, sessionID string) QueryResult {
	sessionID = o.sessions.GetOrCreate(sessionID, "")

	enriched := o.sessions.EnrichQuery(sessionID, request)
	contextEnriched := enriched != request
	if contextEnriched {
		slog.Info("Context enrichment applied", "original", request, "enriched", enriched)
	}

	snap := o.registry.Snapshot()
	decision := o.engine.Select(enriched, snap)
	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		metrics.RecordRoutingDecision(ctx, decision.AgentID, decision.Declined, decision.Confidence)
	}

	metadata := map[string]interface{}{
		"request_id":       uuid.NewString(),
		"agent_scores":     decision.Scores,
		"context_enriched": contextEnriched,
		"timestamp":        time.Now().Format(time.RFC3339),
	}

	if decision.Declined {
		metadata["status"] = "no_agent_found"
		return QueryResult{
			Success:           true,
			Request:           request,
			OriginalRequest:   request,
			EnrichedRequest:   enriched,
			SessionID:         sessionID,
			SelectedAgentName: "None",
			AgentSkills:       []string{},
			Reasoning:         decision.Reasoning,
			Response:          NoAgentResponse,
			ContextEnriched:   contextEnriched,
			Metadata:          metadata,
		}
	}

	card, err := o.registry.Lookup(decision.AgentID)
	if err != nil {
		metadata["status"] = "agent_missing"
		return QueryResult{
			Success:   false,
			Request:   request,
			SessionID: sessionID,
			Error:     fmt.Sprintf("Selected agent '%s' not found in registry", decision.AgentID),
			Metadata:  metadata,
		}
	}

	payload := composePayload(enriched, o.sessions.Context(sessionID, historyTurns))
	slog.Info("Routing request to agent",
		"agent", card.Name,
		"endpoint", card.URL,
		"confidence", decision.Confidence)

	started := time.Now()
	text, err := o.client.SendText(ctx, card.URL, payload, sessionID)
	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		metrics.RecordTransportCall(ctx, decision.AgentID, time.Since(started), err)
	}
	if err != nil {
		// Transport failures produce a structured error; the turn is not
		// recorded because no agent response exists.
		slog.Error("Request forwarding failed", "agent", card.Name, "endpoint", card.URL, "error", err)
		metadata["status"] = "routing_only"
		return QueryResult{
			Success:           false,
			Request:           request,
			OriginalRequest:   request,
			EnrichedRequest:   enriched,
			SessionID:         sessionID,
			SelectedAgentID:   decision.AgentID,
			SelectedAgentName: card.Name,
			AgentSkills:       skillNames(card),
			Confidence:        decision.Confidence,
			Reasoning:         decision.Reasoning,
			Response:          fallbackText(card, decision, err),
			ContextEnriched:   contextEnriched,
			Error:             err.Error(),
			Metadata:          metadata,
		}
	}

	response := fmt.Sprintf("Routed to %s: %s", card.Name, text)
	o.sessions.AppendTurn(sessionID, request, card.Name, response, decision.Confidence, map[string]interface{}{
		"agent_id":         decision.AgentID,
		"reasoning":        decision.Reasoning,
		"context_enriched": contextEnriched,
	})

	metadata["status"] = "completed"
	return QueryResult{
		Success:           true,
		Request:           request,
		OriginalRequest:   request,
		EnrichedRequest:   enriched,
		SessionID:         sessionID,
		SelectedAgentID:   decision.AgentID,
		SelectedAgentName: card.Name,
		AgentSkills:       skillNames(card),
		Confidence:        decision.Confidence,
		Reasoning:         decision.Reasoning,
		Response:          response,
		ContextEnriched:   contextEnriched,
		Metadata:          metadata,
	}
}

// RegisterAgent fetches the card at endpoint and adds it to the registry.
func (o *Orchestrator) RegisterAgent(ctx gocontext.Context, endpoint string) RegistrationResult {
	card, err := o.registry.Register(ctx, endpoint)
	if err != nil {
		slog.Warn("Agent registration failed", "endpoint", endpoint, "error", err)
		return RegistrationResult{
			Success: false,
			Message: "Failed to register agent",
			Error:   err.Error(),
		}
	}

	slog.Info("Agent registered", "agent", card.Name, "endpoint", endpoint, "total", o.registry.Len())
	return RegistrationResult{
		Success:   true,
		AgentID:   card.Name,
		AgentName: card.Name,
		Endpoint:  endpoint,
		Message:   fmt.Sprintf("Successfully registered %s from %s", card.Name, endpoint),
	}
}

// UnregisterAgent removes an agent by id, URL, name, or URL fragment.
func (o *Orchestrator) UnregisterAgent(identifier string) RegistrationResult {
	card, err := o.registry.Remove(identifier)
	if err != nil {
		return RegistrationResult{
			Success: false,
			Message: "Failed to unregister agent",
			Error:   fmt.Sprintf("Agent not found: %s. Available agents: %v", identifier, o.registry.IDs()),
		}
	}

	slog.Info("Agent unregistered", "agent", card.Name, "remaining", o.registry.Len())
	return RegistrationResult{
		Success:   true,
		AgentID:   card.Name,
		AgentName: card.Name,
		Endpoint:  card.URL,
		Message:   fmt.Sprintf("Successfully unregistered %s (ID: %s)", card.Name, card.Name),
	}
}

// ListAgents returns summaries of all registered agents.
func (o *Orchestrator) ListAgents() []registry.Summary {
	return o.registry.List()
}

// SessionStats aggregates activity across sessions.
func (o *Orchestrator) SessionStats() context.Stats {
	return o.sessions.Stats()
}

// SessionContext returns the recent-turn view for a session, with the
// generated summary filled in.
func (o *Orchestrator) SessionContext(sessionID string) context.View {
	view := o.sessions.Context(sessionID, 0)
	view.Summary = o.sessions.Summary(sessionID)
	return view
}

// CleanupSessions evicts expired sessions.
func (o *Orchestrator) CleanupSessions() int {
	return o.sessions.CleanupExpired()
}

func skillNames(card *a2a.AgentCard) []string {
	names := make([]string, 0, len(card.Skills))
	for _, skill := range card.Skills {
		names = append(names, skill.Name)
	}
	return names
}

// fallbackText renders the routing decision when forwarding failed, so the
// caller can still reach the agent directly.
func fallbackText(card *a2a.AgentCard, decision router.Decision, err error) string {
	var b strings.Builder
	b.WriteString("Smart Routing Decision\n\n")
	fmt.Fprintf(&b, "Selected Agent: %s\n", card.Name)
	fmt.Fprintf(&b, "Endpoint: %s\n", card.URL)
	fmt.Fprintf(&b, "Confidence: %.2f\n", decision.Confidence)
	fmt.Fprintf(&b, "Reasoning: %s\n\n", decision.Reasoning)
	fmt.Fprintf(&b, "Could not forward request: %s\n", err)
	fmt.Fprintf(&b, "Connect directly to %s at %s", card.Name, card.URL)
	return b.String()
}
