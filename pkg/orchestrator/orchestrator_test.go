package orchestrator

import (
	gocontext "context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aktasdeniz/maestro/pkg/a2a"
	"github.com/aktasdeniz/maestro/pkg/context"
	"github.com/aktasdeniz/maestro/pkg/registry"
	"github.com/aktasdeniz/maestro/pkg/router"
)

// fakeAgent serves an agent card at the well-known path and answers
// message/send with an immediately completed task. Received request texts are
// recorded for assertions.
type fakeAgent struct {
	server   *httptest.Server
	card     a2a.AgentCard
	respond  func(text string) string
	failHTTP bool

	mu       sync.Mutex
	received []string
}

func newFakeAgent(t *testing.T, name, description string, skills []a2a.AgentSkill, respond func(string) string) *fakeAgent {
	t.Helper()

	f := &fakeAgent{
		card: a2a.AgentCard{
			Name:        name,
			Description: description,
			Version:     "1.0.0",
			Skills:      skills,
		},
		respond: respond,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+a2a.WellKnownCardPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(f.card)
	})
	mux.HandleFunc("POST /", func(w http.ResponseWriter, r *http.Request) {
		if f.failHTTP {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}

		var req a2a.Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, a2a.MethodMessageSend, req.Method)

		var params a2a.MessageSendParams
		require.NoError(t, json.Unmarshal(req.Params, &params))

		text := a2a.MessageText(&params.Message)
		f.mu.Lock()
		f.received = append(f.received, text)
		f.mu.Unlock()

		result := a2a.Task{
			ID:        params.ID,
			ContextID: params.Message.ContextID,
			Kind:      "task",
			Status:    a2a.TaskStatus{State: a2a.TaskStateCompleted},
			Artifacts: []a2a.Artifact{{
				ArtifactID: uuid.NewString(),
				Parts:      []a2a.Part{{Kind: "text", Text: f.respond(text)}},
			}},
		}
		raw, err := json.Marshal(result)
		require.NoError(t, err)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(a2a.Response{JSONRPC: "2.0", ID: req.ID, Result: raw})
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeAgent) lastReceived() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.received) == 0 {
		return ""
	}
	return f.received[len(f.received)-1]
}

func weatherSkills() []a2a.AgentSkill {
	return []a2a.AgentSkill{{
		ID:          "weather_search",
		Name:        "weather_search",
		Description: "search weather data for cities",
		Tags:        []string{"weather", "temperature", "climate"},
		Examples:    []string{"What is the weather in Chicago?"},
	}}
}

func reportSkills() []a2a.AgentSkill {
	return []a2a.AgentSkill{{
		ID:          "report_generation",
		Name:        "report_generation",
		Description: "create charts and written reports",
		Tags:        []string{"report", "chart", "analysis", "create"},
		Examples:    []string{"Create a report about the data"},
	}}
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *registry.Registry, *context.Manager) {
	t.Helper()

	httpClient := &http.Client{Timeout: 5 * time.Second}
	reg := registry.New(a2a.NewCardResolver(httpClient, 2*time.Second))
	sessions := context.NewManager(0)
	client := a2a.NewClient(httpClient, a2a.ClientConfig{
		SendTimeout: 5 * time.Second,
		PollBudget:  5 * time.Second,
	})
	return New(reg, sessions, router.New(router.DefaultWeights()), client), reg, sessions
}

func TestProcessRequestRoutesAndRecordsTurn(t *testing.T) {
	o, _, sessions := newTestOrchestrator(t)

	agent := newFakeAgent(t, "weather_agent", "Weather answers", weatherSkills(), func(string) string {
		return "Chicago is 20C and sunny."
	})
	require.True(t, o.RegisterAgent(gocontext.Background(), agent.server.URL).Success)

	result := o.ProcessRequest(gocontext.Background(), "What is the weather in Chicago?", "")

	require.True(t, result.Success)
	assert.Equal(t, "weather_agent", result.SelectedAgentID)
	assert.Equal(t, "Routed to weather_agent: Chicago is 20C and sunny.", result.Response)
	assert.Greater(t, result.Confidence, 0.0)
	assert.Contains(t, result.Reasoning, "Selected weather_agent")
	assert.False(t, result.ContextEnriched)

	view := sessions.Context(result.SessionID, 0)
	require.Len(t, view.Turns, 1)
	assert.Equal(t, "What is the weather in Chicago?", view.Turns[0].UserQuery)
	assert.Equal(t, "weather_agent", view.Turns[0].AgentName)
}

func TestProcessRequestEnrichesFollowUpAndForwardsData(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	weather := newFakeAgent(t, "weather_agent", "Weather answers", weatherSkills(), func(string) string {
		return "Chicago winters average -5C with heavy snow."
	})
	report := newFakeAgent(t, "report_agent", "Report generation", reportSkills(), func(string) string {
		return "Report generated."
	})
	require.True(t, o.RegisterAgent(gocontext.Background(), weather.server.URL).Success)
	require.True(t, o.RegisterAgent(gocontext.Background(), report.server.URL).Success)

	first := o.ProcessRequest(gocontext.Background(), "What is the weather in Chicago?", "")
	require.True(t, first.Success)
	require.Equal(t, "weather_agent", first.SelectedAgentID)

	second := o.ProcessRequest(gocontext.Background(), "Create a report about that", first.SessionID)
	require.True(t, second.Success)
	assert.Equal(t, "report_agent", second.SelectedAgentID)
	assert.True(t, second.ContextEnriched)
	assert.Contains(t, second.EnrichedRequest, "weather in Chicago")

	// The downstream payload carries history and the previous data block
	// because the preceding turn came from a data-source agent.
	payload := report.lastReceived()
	assert.Contains(t, payload, "Previous conversation:")
	assert.Contains(t, payload, "Detailed data from most recent query:")
	assert.Contains(t, payload, "generate a comprehensive report")
}

func TestProcessRequestDeclinesWithoutAgents(t *testing.T) {
	o, _, sessions := newTestOrchestrator(t)

	result := o.ProcessRequest(gocontext.Background(), "anything at all", "")

	assert.True(t, result.Success)
	assert.Empty(t, result.SelectedAgentID)
	assert.Equal(t, "None", result.SelectedAgentName)
	assert.Zero(t, result.Confidence)
	assert.Equal(t, router.DeclinedReasoning, result.Reasoning)
	assert.Equal(t, NoAgentResponse, result.Response)

	// Declined queries never record a turn.
	assert.Empty(t, sessions.Context(result.SessionID, 0).Turns)
}

func TestProcessRequestTransportErrorRecordsNoTurn(t *testing.T) {
	o, _, sessions := newTestOrchestrator(t)

	agent := newFakeAgent(t, "weather_agent", "Weather answers", weatherSkills(), func(string) string {
		return "unused"
	})
	require.True(t, o.RegisterAgent(gocontext.Background(), agent.server.URL).Success)
	agent.failHTTP = true

	result := o.ProcessRequest(gocontext.Background(), "What is the weather in Chicago?", "")

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "HTTP_ERROR")
	assert.Contains(t, result.Response, "Smart Routing Decision")
	assert.Contains(t, result.Response, "Connect directly to weather_agent")
	assert.Empty(t, sessions.Context(result.SessionID, 0).Turns)
}

func TestRegisterAndUnregisterLifecycle(t *testing.T) {
	o, reg, _ := newTestOrchestrator(t)

	agent := newFakeAgent(t, "math_agent", "Math answers", []a2a.AgentSkill{{
		Name: "calculate",
		Tags: []string{"math"},
	}}, func(string) string { return "4" })

	reg1 := o.RegisterAgent(gocontext.Background(), agent.server.URL)
	require.True(t, reg1.Success)
	assert.Equal(t, "math_agent", reg1.AgentID)
	assert.Contains(t, reg1.Message, "Successfully registered math_agent")
	assert.Equal(t, 1, reg.Len())

	// Re-registration replaces in place.
	require.True(t, o.RegisterAgent(gocontext.Background(), agent.server.URL).Success)
	assert.Equal(t, 1, reg.Len())

	// Unregister by URL fragment.
	hostPort := strings.TrimPrefix(agent.server.URL, "http://")
	unreg := o.UnregisterAgent(hostPort)
	require.True(t, unreg.Success)
	assert.Equal(t, "math_agent", unreg.AgentID)
	assert.Equal(t, 0, reg.Len())

	missing := o.UnregisterAgent("nobody")
	assert.False(t, missing.Success)
	assert.Contains(t, missing.Error, "Agent not found: nobody")
}

func TestRegisterAgentUnreachableEndpoint(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	result := o.RegisterAgent(gocontext.Background(), "http://127.0.0.1:1")
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "FETCH_FAILED")
}

func TestSessionContextIncludesSummary(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	agent := newFakeAgent(t, "weather_agent", "Weather answers", weatherSkills(), func(string) string {
		return "Sunny."
	})
	require.True(t, o.RegisterAgent(gocontext.Background(), agent.server.URL).Success)

	result := o.ProcessRequest(gocontext.Background(), "weather in Boston please", "")
	require.True(t, result.Success)

	view := o.SessionContext(result.SessionID)
	assert.Contains(t, view.Summary, "Conversation with 1 turns involving weather_agent")
}
