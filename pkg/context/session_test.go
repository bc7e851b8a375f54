package context

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateMintsUUIDForInvalidID(t *testing.T) {
	m := NewManager(0)

	id := m.GetOrCreate("not-a-uuid", "")
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.NotEqual(t, "not-a-uuid", id)
}

func TestGetOrCreateKeepsValidID(t *testing.T) {
	m := NewManager(0)

	supplied := uuid.NewString()
	assert.Equal(t, supplied, m.GetOrCreate(supplied, "user-1"))

	// Re-entry with the same id returns the same session, not a new one.
	assert.Equal(t, supplied, m.GetOrCreate(supplied, "user-1"))
	assert.Equal(t, 1, m.Len())
}

func TestAppendTurnAndContextWindow(t *testing.T) {
	m := NewManager(0)
	id := m.GetOrCreate("", "")

	for _, q := range []string{"first", "second", "third", "fourth"} {
		m.AppendTurn(id, q, "weather_agent", "response to "+q, 0.8, nil)
	}

	view := m.Context(id, 3)
	require.Len(t, view.Turns, 3)
	assert.Equal(t, "second", view.Turns[0].UserQuery)
	assert.Equal(t, "fourth", view.Turns[2].UserQuery)

	all := m.Context(id, 0)
	assert.Len(t, all.Turns, 4)
}

func TestContextUnknownSessionIsEmpty(t *testing.T) {
	m := NewManager(0)

	view := m.Context(uuid.NewString(), 3)
	assert.Empty(t, view.Turns)
	assert.Empty(t, view.ActiveTopics)
}

func TestEnrichQueryResolvesPronoun(t *testing.T) {
	m := NewManager(0)
	id := m.GetOrCreate("", "")
	m.AppendTurn(id, "What is the weather in Chicago?", "weather_agent", "Chicago is cold in winter.", 0.9, nil)

	enriched := m.EnrichQuery(id, "Create a report about it")
	assert.Contains(t, enriched, "weather in Chicago")
	assert.NotContains(t, enriched, " it")
}

func TestEnrichQueryPassthroughWithoutReferences(t *testing.T) {
	m := NewManager(0)
	id := m.GetOrCreate("", "")
	m.AppendTurn(id, "weather in Boston", "weather_agent", "mild", 0.9, nil)

	query := "What is the exchange rate for euros?"
	assert.Equal(t, query, m.EnrichQuery(id, query))
}

func TestEnrichQueryEmptySessionPassthrough(t *testing.T) {
	m := NewManager(0)
	id := m.GetOrCreate("", "")
	assert.Equal(t, "tell me about it", m.EnrichQuery(id, "tell me about it"))
}

func TestTopicsCappedAtFive(t *testing.T) {
	m := NewManager(0)
	id := m.GetOrCreate("", "")

	// Six distinct topics across turns; only the five most recent survive.
	m.AppendTurn(id, "weather in new york", "a", "ok", 1, nil)
	m.AppendTurn(id, "weather in chicago", "a", "ok", 1, nil)
	m.AppendTurn(id, "weather in boston", "a", "ok", 1, nil)
	m.AppendTurn(id, "make a report", "a", "ok", 1, nil)
	m.AppendTurn(id, "currency exchange", "a", "ok", 1, nil)

	view := m.Context(id, 0)
	require.Len(t, view.ActiveTopics, 5)
	assert.NotContains(t, view.ActiveTopics, "weather")
	assert.Contains(t, view.ActiveTopics, "finance")
}

func TestSummary(t *testing.T) {
	m := NewManager(0)
	id := m.GetOrCreate("", "")

	assert.Empty(t, m.Summary(id))

	m.AppendTurn(id, "weather in Boston", "weather_agent", "mild", 0.9, nil)
	m.AppendTurn(id, "make a chart", "report_agent", "done", 0.7, nil)

	summary := m.Summary(id)
	assert.True(t, strings.HasPrefix(summary, "Conversation with 2 turns"), summary)
	assert.Contains(t, summary, "weather_agent")
	assert.Contains(t, summary, "report_agent")
	assert.Contains(t, summary, "Topics discussed:")
}

func TestCleanupExpired(t *testing.T) {
	m := NewManager(10 * time.Millisecond)

	stale := m.GetOrCreate("", "")
	m.handle(stale).lastActivity = time.Now().Add(-time.Minute)
	fresh := m.GetOrCreate("", "")

	assert.Equal(t, 1, m.CleanupExpired())
	assert.Equal(t, 0, m.CleanupExpired())
	assert.Nil(t, m.handle(stale))
	assert.NotNil(t, m.handle(fresh))
}

func TestStats(t *testing.T) {
	m := NewManager(0)

	s1 := m.GetOrCreate("", "")
	s2 := m.GetOrCreate("", "")
	m.AppendTurn(s1, "weather in Chicago", "weather_agent", "cold", 0.9, nil)
	m.AppendTurn(s2, "make a report", "report_agent", "done", 0.8, nil)

	stats := m.Stats()
	assert.Equal(t, 2, stats.TotalSessions)
	assert.Equal(t, 2, stats.TotalTurns)
	assert.ElementsMatch(t, []string{"weather_agent", "report_agent"}, stats.AgentsUsed)
	assert.Contains(t, stats.ActiveTopics, "weather")
	assert.Contains(t, stats.ActiveTopics, "reporting")
}
