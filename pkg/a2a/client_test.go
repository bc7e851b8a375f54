package a2a

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedAgent answers message/send with the first scripted task and each
// subsequent tasks/get with the next one, modeling a working-then-terminal
// progression.
type scriptedAgent struct {
	server *httptest.Server

	mu    sync.Mutex
	tasks []Task
	next  int
}

func newScriptedAgent(t *testing.T, tasks ...Task) *scriptedAgent {
	t.Helper()

	a := &scriptedAgent{tasks: tasks}
	a.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		a.mu.Lock()
		task := a.tasks[a.next]
		if a.next < len(a.tasks)-1 {
			a.next++
		}
		a.mu.Unlock()

		raw, err := json.Marshal(task)
		require.NoError(t, err)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Response{JSONRPC: "2.0", ID: req.ID, Result: raw})
	}))
	t.Cleanup(a.server.Close)
	return a
}

func newTestClient() *Client {
	return NewClient(&http.Client{Timeout: 5 * time.Second}, ClientConfig{
		SendTimeout:  2 * time.Second,
		PollInterval: 10 * time.Millisecond,
		PollTimeout:  time.Second,
		PollBudget:   2 * time.Second,
	})
}

func completedTask(id, text string) Task {
	return Task{
		ID:     id,
		Kind:   "task",
		Status: TaskStatus{State: TaskStateCompleted},
		Artifacts: []Artifact{{
			ArtifactID: "a1",
			Parts:      []Part{{Kind: "text", Text: text}},
		}},
	}
}

func TestSendTextImmediateCompletion(t *testing.T) {
	agent := newScriptedAgent(t, completedTask("t1", "all done"))

	text, err := newTestClient().SendText(context.Background(), agent.server.URL, "hello", "ctx-1")
	require.NoError(t, err)
	assert.Equal(t, "all done", text)
}

func TestSendTextPollsUntilCompleted(t *testing.T) {
	agent := newScriptedAgent(t,
		Task{ID: "t1", Kind: "task", Status: TaskStatus{State: TaskStateWorking}},
		Task{ID: "t1", Kind: "task", Status: TaskStatus{State: TaskStateWorking}},
		completedTask("t1", "eventually done"),
	)

	text, err := newTestClient().SendText(context.Background(), agent.server.URL, "hello", "")
	require.NoError(t, err)
	assert.Equal(t, "eventually done", text)
}

func TestSendTextFailedStateIsTextResponse(t *testing.T) {
	agent := newScriptedAgent(t, Task{
		ID:   "t1",
		Kind: "task",
		Status: TaskStatus{
			State: TaskStateFailed,
			Message: &Message{
				Role:  "agent",
				Parts: []Part{{Kind: "text", Text: "quota exceeded"}},
			},
		},
	})

	// A failed task is a successful transport exchange; the failure text is
	// the response.
	text, err := newTestClient().SendText(context.Background(), agent.server.URL, "hello", "")
	require.NoError(t, err)
	assert.Equal(t, "Agent task failed: quota exceeded", text)
}

func TestSendTextInputRequiredReturnsPrompt(t *testing.T) {
	agent := newScriptedAgent(t, Task{
		ID:   "t1",
		Kind: "task",
		Status: TaskStatus{
			State: TaskStateInputRequired,
			Message: &Message{
				Role:  "agent",
				Parts: []Part{{Kind: "text", Text: "Which city do you mean?"}},
			},
		},
	})

	text, err := newTestClient().SendText(context.Background(), agent.server.URL, "weather", "")
	require.NoError(t, err)
	assert.Equal(t, "Which city do you mean?", text)
}

func TestSendTextDirectMessageResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		msg := Message{
			Role:      "agent",
			MessageID: "m1",
			Parts:     []Part{{Type: "text", Text: "direct answer"}},
		}
		raw, _ := json.Marshal(msg)
		json.NewEncoder(w).Encode(Response{JSONRPC: "2.0", ID: req.ID, Result: raw})
	}))
	defer server.Close()

	text, err := newTestClient().SendText(context.Background(), server.URL, "hello", "")
	require.NoError(t, err)
	assert.Equal(t, "direct answer", text)
}

func TestSendTextCompletedWithoutArtifacts(t *testing.T) {
	agent := newScriptedAgent(t, Task{ID: "t1", Kind: "task", Status: TaskStatus{State: TaskStateCompleted}})

	text, err := newTestClient().SendText(context.Background(), agent.server.URL, "hello", "")
	require.NoError(t, err)
	assert.Equal(t, "Task completed but no response text found", text)
}

func TestSendTextHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal failure", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestClient().SendText(context.Background(), server.URL, "hello", "")
	require.Error(t, err)

	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, ErrHTTPError, terr.Kind)
	assert.Equal(t, http.StatusInternalServerError, terr.Status)
	assert.Contains(t, err.Error(), "HTTP_ERROR")
}

func TestSendTextConnectFailed(t *testing.T) {
	_, err := newTestClient().SendText(context.Background(), "http://127.0.0.1:1", "hello", "")
	require.Error(t, err)

	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, ErrConnectFailed, terr.Kind)
}

func TestSendTextJSONRPCError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		json.NewEncoder(w).Encode(Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &RPCError{Code: CodeInvalidParams, Message: "bad params"},
		})
	}))
	defer server.Close()

	_, err := newTestClient().SendText(context.Background(), server.URL, "hello", "")
	require.Error(t, err)

	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, ErrJSONRPCError, terr.Kind)
	assert.Contains(t, terr.Detail, "bad params")
}

func TestSendTextMalformedResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		json.NewEncoder(w).Encode(Response{JSONRPC: "2.0", ID: req.ID, Result: json.RawMessage(`{"neither": true}`)})
	}))
	defer server.Close()

	_, err := newTestClient().SendText(context.Background(), server.URL, "hello", "")
	require.Error(t, err)

	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, ErrMalformedResponse, terr.Kind)
}

func TestSendTextPollBudgetExhausted(t *testing.T) {
	agent := newScriptedAgent(t, Task{ID: "t1", Kind: "task", Status: TaskStatus{State: TaskStateWorking}})

	client := NewClient(&http.Client{Timeout: 5 * time.Second}, ClientConfig{
		SendTimeout:  time.Second,
		PollInterval: 10 * time.Millisecond,
		PollTimeout:  time.Second,
		PollBudget:   100 * time.Millisecond,
	})

	_, err := client.SendText(context.Background(), agent.server.URL, "hello", "")
	require.Error(t, err)

	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, ErrTimeout, terr.Kind)
	assert.Equal(t, TaskStateWorking, terr.State)
}
