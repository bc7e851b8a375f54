package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Fallback texts returned when a terminal task carries no usable text part.
const (
	noArtifactText     = "Task completed but no response text found"
	noFailureText      = "Agent task failed"
	noInputText        = "Agent requires input but no message provided"
	noMessageText      = "Message received but no text content"
	failedTextTemplate = "Agent task failed: %s"
)

// ClientConfig tunes the transport timeouts. Zero values take the documented
// defaults (60s send, 1s poll interval, 5s per poll, 120s budget).
type ClientConfig struct {
	SendTimeout  time.Duration
	PollInterval time.Duration
	PollTimeout  time.Duration
	PollBudget   time.Duration
}

func (c *ClientConfig) setDefaults() {
	if c.SendTimeout <= 0 {
		c.SendTimeout = 60 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 1 * time.Second
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = 5 * time.Second
	}
	if c.PollBudget <= 0 {
		c.PollBudget = 120 * time.Second
	}
}

// Client speaks JSON-RPC 2.0 over HTTP POST to agent base URLs. It dispatches
// message/send, then polls tasks/get until a terminal state or the polling
// budget elapses. Safe for concurrent use.
type Client struct {
	httpClient *http.Client
	cfg        ClientConfig
}

// NewClient creates a transport client on top of a shared pooled HTTP client.
func NewClient(httpClient *http.Client, cfg ClientConfig) *Client {
	cfg.setDefaults()
	return &Client{
		httpClient: httpClient,
		cfg:        cfg,
	}
}

// SendText forwards a text payload to the agent at endpoint and returns the
// final response text. contextID rides along as the message contextId so the
// agent can correlate the session. The call blocks through the polling
// lifecycle; cancellation is via ctx.
func (c *Client) SendText(ctx context.Context, endpoint, text, contextID string) (string, error) {
	endpoint = strings.TrimRight(endpoint, "/")
	taskID := uuid.NewString()

	params := MessageSendParams{
		ID: taskID,
		Message: Message{
			Role:      "user",
			MessageID: uuid.NewString(),
			ContextID: contextID,
			Parts:     []Part{TextPart(text)},
		},
		Configuration: &MessageConfiguration{
			AcceptedOutputModes: []string{"text"},
		},
	}

	result, err := c.call(ctx, endpoint, MethodMessageSend, params, c.cfg.SendTimeout)
	if err != nil {
		return "", err
	}

	// The result is either a Task envelope (id + status) or a direct Message
	// (parts, no status).
	var probe struct {
		ID     string          `json:"id"`
		Status json.RawMessage `json:"status"`
		Parts  []Part          `json:"parts"`
	}
	if err := json.Unmarshal(result, &probe); err != nil {
		return "", &TransportError{Kind: ErrMalformedResponse, Endpoint: endpoint, Detail: "unparseable result", Err: err}
	}

	switch {
	case probe.ID != "" && len(probe.Status) > 0:
		var task Task
		if err := json.Unmarshal(result, &task); err != nil {
			return "", &TransportError{Kind: ErrMalformedResponse, Endpoint: endpoint, Detail: "unparseable task envelope", Err: err}
		}
		return c.awaitTask(ctx, endpoint, &task)

	case len(probe.Parts) > 0:
		var msg Message
		if err := json.Unmarshal(result, &msg); err != nil {
			return "", &TransportError{Kind: ErrMalformedResponse, Endpoint: endpoint, Detail: "unparseable message", Err: err}
		}
		if text := MessageText(&msg); text != "" {
			return text, nil
		}
		return noMessageText, nil

	default:
		return "", &TransportError{Kind: ErrMalformedResponse, Endpoint: endpoint, Detail: "result is neither task nor message"}
	}
}

// GetTask fetches the current task envelope via tasks/get.
func (c *Client) GetTask(ctx context.Context, endpoint, taskID string) (*Task, error) {
	endpoint = strings.TrimRight(endpoint, "/")
	result, err := c.call(ctx, endpoint, MethodTasksGet, TaskQueryParams{ID: taskID}, c.cfg.PollTimeout)
	if err != nil {
		return nil, err
	}

	var task Task
	if err := json.Unmarshal(result, &task); err != nil {
		return nil, &TransportError{Kind: ErrMalformedResponse, Endpoint: endpoint, Detail: "unparseable task envelope", Err: err}
	}
	return &task, nil
}

// awaitTask drives the task state machine: extract from a terminal state, or
// poll until the budget elapses. Transient poll failures do not abort the
// loop; the budget is the only exit.
func (c *Client) awaitTask(ctx context.Context, endpoint string, task *Task) (string, error) {
	if task.Status.State.Terminal() {
		return c.extract(endpoint, task)
	}

	deadline := time.Now().Add(c.cfg.PollBudget)
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	lastState := task.Status.State
	polls := 0

	for {
		select {
		case <-ctx.Done():
			return "", &TransportError{Kind: ErrTimeout, Endpoint: endpoint, State: lastState, Detail: ctx.Err().Error(), Err: ctx.Err()}
		case <-ticker.C:
			if time.Now().After(deadline) {
				slog.Warn("Task polling budget exhausted", "endpoint", endpoint, "task_id", task.ID, "last_state", lastState, "polls", polls)
				return "", &TransportError{
					Kind:     ErrTimeout,
					Endpoint: endpoint,
					State:    lastState,
					Detail:   fmt.Sprintf("task did not complete within %s", c.cfg.PollBudget),
				}
			}

			polls++
			current, err := c.GetTask(ctx, endpoint, task.ID)
			if err != nil {
				// Transient poll failures continue until the budget elapses.
				slog.Debug("Task poll failed", "endpoint", endpoint, "task_id", task.ID, "poll", polls, "error", err)
				continue
			}

			lastState = current.Status.State
			slog.Debug("Task polled", "endpoint", endpoint, "task_id", task.ID, "poll", polls, "state", lastState)

			if lastState.Terminal() {
				return c.extract(endpoint, current)
			}
		}
	}
}

// extract turns a terminal task into its response text.
func (c *Client) extract(endpoint string, task *Task) (string, error) {
	state := task.Status.State
	slog.Info("Task reached terminal state", "endpoint", endpoint, "task_id", task.ID, "state", state)

	switch state {
	case TaskStateCompleted:
		if text := ArtifactText(task); text != "" {
			return text, nil
		}
		return noArtifactText, nil

	case TaskStateFailed:
		if text := StatusMessageText(task); text != "" {
			return fmt.Sprintf(failedTextTemplate, text), nil
		}
		return noFailureText, nil

	case TaskStateInputRequired:
		// The agent requests user disambiguation; its message text is the
		// final response from the orchestrator's perspective.
		if text := StatusMessageText(task); text != "" {
			return text, nil
		}
		return noInputText, nil

	default:
		return "", &TransportError{Kind: ErrMalformedResponse, Endpoint: endpoint, Detail: fmt.Sprintf("unexpected terminal state %q", state)}
	}
}

// call performs one JSON-RPC round trip and returns the raw result.
func (c *Client) call(ctx context.Context, endpoint, method string, params interface{}, timeout time.Duration) (json.RawMessage, error) {
	rawParams, err := json.Marshal(params)
	if err != nil {
		return nil, &TransportError{Kind: ErrMalformedResponse, Endpoint: endpoint, Detail: "unmarshalable params", Err: err}
	}

	req := Request{
		JSONRPC: "2.0",
		ID:      uuid.NewString(),
		Method:  method,
		Params:  rawParams,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &TransportError{Kind: ErrMalformedResponse, Endpoint: endpoint, Detail: "unmarshalable request", Err: err}
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Kind: ErrConnectFailed, Endpoint: endpoint, Detail: "invalid request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return nil, &TransportError{Kind: ErrTimeout, Endpoint: endpoint, Detail: "request timed out", Err: err}
		}
		return nil, &TransportError{Kind: ErrConnectFailed, Endpoint: endpoint, Detail: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &TransportError{
			Kind:     ErrHTTPError,
			Endpoint: endpoint,
			Status:   resp.StatusCode,
			Detail:   strings.TrimSpace(string(raw)),
		}
	}

	var rpcResp Response
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, &TransportError{Kind: ErrMalformedResponse, Endpoint: endpoint, Detail: "invalid JSON-RPC response", Err: err}
	}
	if rpcResp.Error != nil {
		return nil, &TransportError{
			Kind:     ErrJSONRPCError,
			Endpoint: endpoint,
			Detail:   fmt.Sprintf("code %d: %s", rpcResp.Error.Code, rpcResp.Error.Message),
		}
	}
	if len(rpcResp.Result) == 0 || string(rpcResp.Result) == "null" {
		return nil, &TransportError{Kind: ErrMalformedResponse, Endpoint: endpoint, Detail: "no result in agent response"}
	}

	return rpcResp.Result, nil
}
