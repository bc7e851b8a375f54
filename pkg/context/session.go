// Package context tracks per-session conversation state for the
// orchestrator: turn logs, active topics, and the reference-resolution logic
// that enriches follow-up queries with earlier context.
package context

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Turn is one user-query / agent-response pair. Turns are append-only.
type Turn struct {
	Timestamp         time.Time              `json:"timestamp"`
	UserQuery         string                 `json:"user_query"`
	AgentName         string                 `json:"agent_name"`
	AgentResponse     string                 `json:"agent_response"`
	RoutingConfidence float64                `json:"confidence"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
}

// maxActiveTopics bounds the per-session topic list; the most recent entries
// are retained.
const maxActiveTopics = 5

// session holds one conversation. The embedded mutex serializes turn appends
// and reads so sessions can progress in parallel without a global lock.
type session struct {
	mu sync.Mutex

	id             string
	userID         string
	createdAt      time.Time
	lastActivity   time.Time
	turns          []Turn
	activeTopics   []string
	contextSummary string
}

// View is a read-only snapshot of recent session state.
type View struct {
	SessionID    string    `json:"session_id"`
	Turns        []Turn    `json:"turns"`
	Summary      string    `json:"summary,omitempty"`
	ActiveTopics []string  `json:"active_topics"`
	LastActivity time.Time `json:"last_activity"`
}

// Stats aggregates activity across all live sessions.
type Stats struct {
	TotalSessions int      `json:"total_sessions"`
	TotalTurns    int      `json:"total_turns"`
	ActiveTopics  []string `json:"active_topics"`
	AgentsUsed    []string `json:"agents_used"`
}

// Manager owns the session map. The map lock is held only to insert, look
// up, or evict entries; callers then operate under the per-session lock.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*session
	timeout  time.Duration
}

// NewManager creates a session manager. Sessions idle longer than timeout are
// eligible for eviction; a non-positive timeout defaults to 24 hours.
func NewManager(timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = 24 * time.Hour
	}
	return &Manager{
		sessions: make(map[string]*session),
		timeout:  timeout,
	}
}

// GetOrCreate validates the supplied session id and returns it, creating the
// session when absent. A missing or non-UUID id mints a fresh v4 UUID; the
// substitution is logged. Creation sweeps expired sessions opportunistically.
func (m *Manager) GetOrCreate(sessionID, userID string) string {
	if sessionID != "" {
		if _, err := uuid.Parse(sessionID); err != nil {
			replacement := uuid.NewString()
			slog.Warn("Invalid session id, minting replacement", "supplied", sessionID, "session_id", replacement)
			sessionID = replacement
		}
	} else {
		sessionID = uuid.NewString()
	}

	now := time.Now()

	m.mu.Lock()
	if s, ok := m.sessions[sessionID]; ok {
		m.mu.Unlock()
		s.mu.Lock()
		s.lastActivity = now
		s.mu.Unlock()
		return sessionID
	}

	m.sessions[sessionID] = &session{
		id:           sessionID,
		userID:       userID,
		createdAt:    now,
		lastActivity: now,
	}
	m.mu.Unlock()

	m.CleanupExpired()
	return sessionID
}

// AppendTurn records a completed turn and refreshes the session's topics.
// Appending to an unknown session creates it first, so a turn is never lost.
func (m *Manager) AppendTurn(sessionID, userQuery, agentName, agentResponse string, confidence float64, metadata map[string]interface{}) {
	s := m.handle(sessionID)
	if s == nil {
		sessionID = m.GetOrCreate(sessionID, "")
		s = m.handle(sessionID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns = append(s.turns, Turn{
		Timestamp:         time.Now(),
		UserQuery:         userQuery,
		AgentName:         agentName,
		AgentResponse:     agentResponse,
		RoutingConfidence: confidence,
		Metadata:          metadata,
	})
	s.lastActivity = time.Now()
	s.activeTopics = updateTopics(s.activeTopics, userQuery, agentResponse)
}

// Context returns a view of the most recent turns along with the summary,
// topics, and last-activity instant. Unknown sessions yield an empty view.
func (m *Manager) Context(sessionID string, lastNTurns int) View {
	s := m.handle(sessionID)
	if s == nil {
		return View{Turns: []Turn{}, ActiveTopics: []string{}}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	turns := s.turns
	if lastNTurns > 0 && len(turns) > lastNTurns {
		turns = turns[len(turns)-lastNTurns:]
	}

	view := View{
		SessionID:    sessionID,
		Turns:        make([]Turn, len(turns)),
		Summary:      s.contextSummary,
		ActiveTopics: append([]string(nil), s.activeTopics...),
		LastActivity: s.lastActivity,
	}
	copy(view.Turns, turns)
	return view
}

// EnrichQuery resolves references in userQuery against the session's most
// recent turn. Queries without reference tokens come back unchanged.
func (m *Manager) EnrichQuery(sessionID, userQuery string) string {
	s := m.handle(sessionID)
	if s == nil {
		return userQuery
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.turns) == 0 {
		return userQuery
	}
	return ResolveReferences(userQuery, s.turns[len(s.turns)-1])
}

// Summary generates a short human-readable conversation summary, or "" for
// empty or unknown sessions.
func (m *Manager) Summary(sessionID string) string {
	s := m.handle(sessionID)
	if s == nil {
		return ""
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.turns) == 0 {
		return ""
	}

	agents := make([]string, 0, 2)
	for _, turn := range s.turns {
		agents = appendUnique(agents, turn.AgentName)
	}

	summary := fmt.Sprintf("Conversation with %d turns involving %s.", len(s.turns), strings.Join(agents, ", "))
	if len(s.activeTopics) > 0 {
		summary += " Topics discussed: " + strings.Join(s.activeTopics, ", ") + "."
	}
	s.contextSummary = summary
	return summary
}

// CleanupExpired removes sessions idle longer than the timeout and returns
// the number removed. The map lock is taken first, then each candidate's
// session lock, matching the lock order used everywhere else.
func (m *Manager) CleanupExpired() int {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		s.mu.Lock()
		expired := now.Sub(s.lastActivity) > m.timeout
		s.mu.Unlock()
		if expired {
			delete(m.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		slog.Info("Evicted expired sessions", "removed", removed, "remaining", len(m.sessions))
	}
	return removed
}

// Stats aggregates session counts, turn counts, distinct topics, and agents.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	handles := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		handles = append(handles, s)
	}
	m.mu.Unlock()

	stats := Stats{
		TotalSessions: len(handles),
		ActiveTopics:  []string{},
		AgentsUsed:    []string{},
	}
	for _, s := range handles {
		s.mu.Lock()
		stats.TotalTurns += len(s.turns)
		for _, topic := range s.activeTopics {
			stats.ActiveTopics = appendUnique(stats.ActiveTopics, topic)
		}
		for _, turn := range s.turns {
			stats.AgentsUsed = appendUnique(stats.AgentsUsed, turn.AgentName)
		}
		s.mu.Unlock()
	}
	return stats
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// handle returns the session pointer without holding the map lock afterward.
func (m *Manager) handle(sessionID string) *session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[sessionID]
}

func appendUnique(list []string, candidate string) []string {
	for _, item := range list {
		if item == candidate {
			return list
		}
	}
	return append(list, candidate)
}
