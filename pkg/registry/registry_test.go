package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aktasdeniz/maestro/pkg/a2a"
)

func weatherCard() *a2a.AgentCard {
	return &a2a.AgentCard{
		Name:        "weather_agent",
		Description: "Weather forecasts and conditions",
		URL:         "http://localhost:8001/",
		Capabilities: a2a.AgentCapabilities{
			Streaming: true,
		},
		Skills: []a2a.AgentSkill{{
			ID:          "weather_search",
			Name:        "weather_search",
			Description: "search current weather data",
			Tags:        []string{"Weather", "temperature"},
			Examples:    []string{"What is the weather in Chicago?"},
		}},
	}
}

func mathCard() *a2a.AgentCard {
	return &a2a.AgentCard{
		Name:        "math_agent",
		Description: "Mathematical calculations",
		URL:         "http://localhost:8002/",
		Skills: []a2a.AgentSkill{{
			ID:   "calculate",
			Name: "calculate",
			Tags: []string{"math"},
		}},
	}
}

func TestAddKeepsInsertionOrder(t *testing.T) {
	r := New(nil)
	r.Add(weatherCard())
	r.Add(mathCard())

	assert.Equal(t, []string{"weather_agent", "math_agent"}, r.IDs())
	assert.Equal(t, 2, r.Len())
}

func TestReRegisterReplacesInPlace(t *testing.T) {
	r := New(nil)
	r.Add(weatherCard())
	r.Add(mathCard())

	updated := weatherCard()
	updated.Description = "Updated weather service"
	r.Add(updated)

	// Same position, new card.
	assert.Equal(t, []string{"weather_agent", "math_agent"}, r.IDs())
	card, err := r.Lookup("weather_agent")
	require.NoError(t, err)
	assert.Equal(t, "Updated weather service", card.Description)
}

func TestRemoveResolutionPriority(t *testing.T) {
	tests := []struct {
		name       string
		identifier string
	}{
		{"exact name", "weather_agent"},
		{"exact url", "http://localhost:8001/"},
		{"case-insensitive name", "Weather_Agent"},
		{"url fragment", "localhost:8001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(nil)
			r.Add(weatherCard())
			r.Add(mathCard())

			card, err := r.Remove(tt.identifier)
			require.NoError(t, err)
			assert.Equal(t, "weather_agent", card.Name)
			assert.Equal(t, []string{"math_agent"}, r.IDs())
		})
	}
}

func TestRemoveUnknownIdentifier(t *testing.T) {
	r := New(nil)
	r.Add(weatherCard())

	_, err := r.Remove("nobody")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, r.Len())
}

func TestSkillKeywordDerivation(t *testing.T) {
	r := New(nil)
	r.Add(weatherCard())

	keywords := r.SkillKeywords()["weather_search"]

	// Lowercased tags, flattened skill name, first description words.
	assert.Contains(t, keywords, "weather")
	assert.Contains(t, keywords, "temperature")
	assert.Contains(t, keywords, "weather search")
	assert.Contains(t, keywords, "search")
	assert.Contains(t, keywords, "current")
	// Duplicates collapse: "weather" appears once despite tag and description.
	count := 0
	for _, kw := range keywords {
		if kw == "weather" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestCapabilityDerivation(t *testing.T) {
	r := New(nil)
	r.Add(weatherCard())

	caps, ok := r.CapabilitiesFor("weather_agent")
	require.True(t, ok)

	assert.Contains(t, caps.Domains, "weather_search")
	assert.Contains(t, caps.Domains, "search")
	assert.Contains(t, caps.Domains, "current")
	assert.Contains(t, caps.Keywords, "weather")
	assert.Contains(t, caps.Keywords, "temperature")
	assert.Equal(t, []string{"What is the weather in Chicago?"}, caps.Examples)
	assert.Contains(t, caps.Skills, "weather_search")
}

func TestListSummaries(t *testing.T) {
	r := New(nil)
	r.Add(weatherCard())
	r.Add(mathCard())

	summaries := r.List()
	require.Len(t, summaries, 2)

	assert.Equal(t, "weather_agent", summaries[0].AgentID)
	assert.Equal(t, "http://localhost:8001/", summaries[0].Endpoint)
	assert.Equal(t, []string{"Weather", "temperature"}, summaries[0].Keywords)
	assert.Equal(t, []string{"streaming"}, summaries[0].Capabilities)
	require.Len(t, summaries[0].Skills, 1)
	assert.Equal(t, "weather_search", summaries[0].Skills[0].Name)
}

func TestSnapshotIsStable(t *testing.T) {
	r := New(nil)
	r.Add(weatherCard())

	snap := r.Snapshot()
	r.Add(mathCard())

	// The snapshot keeps the view from before the mutation.
	assert.Equal(t, []string{"weather_agent"}, snap.Order)
	assert.Len(t, snap.Agents, 1)
}

func TestBootstrapSkipsUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(weatherCard())
	}))
	defer server.Close()

	r := New(a2a.NewCardResolver(&http.Client{Timeout: 2 * time.Second}, time.Second))
	r.Bootstrap(context.Background(), []string{server.URL, "http://127.0.0.1:1"})

	assert.Equal(t, 1, r.Len())
	assert.Equal(t, []string{"weather_agent"}, r.IDs())
}
