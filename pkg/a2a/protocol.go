// Package a2a implements the agent-to-agent JSON-RPC wire protocol used
// between the orchestrator and downstream agents: agent card discovery,
// message/send dispatch, and tasks/get polling.
package a2a

import (
	"encoding/json"
	"strings"
)

// ============================================================================
// AGENT CARD - Agent Discovery & Capability Advertisement
// ============================================================================

// AgentCard describes a remote agent's identity, endpoint, and skills.
// Cards are fetched once at registration and treated as immutable.
type AgentCard struct {
	Name               string            `json:"name"`
	Description        string            `json:"description"`
	URL                string            `json:"url"`
	Version            string            `json:"version"`
	Capabilities       AgentCapabilities `json:"capabilities"`
	Skills             []AgentSkill      `json:"skills,omitempty"`
	DefaultInputModes  []string          `json:"defaultInputModes,omitempty"`
	DefaultOutputModes []string          `json:"defaultOutputModes,omitempty"`
}

// AgentCapabilities carries the protocol feature flags of an agent.
type AgentCapabilities struct {
	Streaming              bool `json:"streaming"`
	PushNotifications      bool `json:"pushNotifications"`
	StateTransitionHistory bool `json:"stateTransitionHistory"`
}

// AgentSkill describes a single capability advertised on a card.
// Tags and examples feed the routing engine.
type AgentSkill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
	Examples    []string `json:"examples,omitempty"`
}

// ============================================================================
// JSON-RPC 2.0 ENVELOPE
// ============================================================================

type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// RPC method names spoken on the wire.
const (
	MethodMessageSend = "message/send"
	MethodTasksGet    = "tasks/get"
)

// ============================================================================
// MESSAGE & PART
// ============================================================================

// Message is the user-facing payload of message/send.
type Message struct {
	Role      string `json:"role"`
	MessageID string `json:"messageId"`
	ContextID string `json:"contextId,omitempty"`
	Parts     []Part `json:"parts"`
}

// Part is a single content fragment. Agents are inconsistent about the
// discriminator: requests carry "type" while task artifacts and status
// messages carry "kind". Both fields are kept so either form round-trips.
type Part struct {
	Kind string `json:"kind,omitempty"`
	Type string `json:"type,omitempty"`
	Text string `json:"text,omitempty"`
}

// TextPart builds an outbound text part using the request-side "type"
// discriminator.
func TextPart(text string) Part {
	return Part{Type: "text", Text: text}
}

// MessageSendParams is the params object of message/send.
type MessageSendParams struct {
	ID            string                `json:"id"`
	Message       Message               `json:"message"`
	Configuration *MessageConfiguration `json:"configuration,omitempty"`
}

// MessageConfiguration restricts the output modes an agent may answer with.
type MessageConfiguration struct {
	AcceptedOutputModes []string `json:"acceptedOutputModes,omitempty"`
}

// TaskQueryParams is the params object of tasks/get.
type TaskQueryParams struct {
	ID string `json:"id"`
}

// ============================================================================
// TASK - Unit of Work
// ============================================================================

// TaskState enumerates the task state machine. Pending and Working require
// continued polling; the other three are terminal.
type TaskState string

const (
	TaskStatePending       TaskState = "pending"
	TaskStateWorking       TaskState = "working"
	TaskStateInputRequired TaskState = "input-required"
	TaskStateCompleted     TaskState = "completed"
	TaskStateFailed        TaskState = "failed"
)

// Terminal reports whether a state ends the polling loop.
func (s TaskState) Terminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateFailed, TaskStateInputRequired:
		return true
	}
	return false
}

// TaskStatus is the status block of a task envelope. Message carries the
// agent's explanation for failed and input-required states.
type TaskStatus struct {
	State   TaskState `json:"state"`
	Message *Message  `json:"message,omitempty"`
}

// Artifact is a named output attached to a completed task.
type Artifact struct {
	ArtifactID string `json:"artifactId,omitempty"`
	Name       string `json:"name,omitempty"`
	Parts      []Part `json:"parts"`
}

// Task is the envelope returned by message/send and tasks/get.
type Task struct {
	ID        string     `json:"id"`
	ContextID string     `json:"contextId,omitempty"`
	Kind      string     `json:"kind,omitempty"`
	Status    TaskStatus `json:"status"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
}

// ============================================================================
// TEXT EXTRACTION
// ============================================================================

// ArtifactText concatenates the text parts of all artifacts in order.
// Artifact parts use the "kind" discriminator.
func ArtifactText(task *Task) string {
	var texts []string
	for _, artifact := range task.Artifacts {
		for _, part := range artifact.Parts {
			if part.Kind == "text" {
				texts = append(texts, part.Text)
			}
		}
	}
	return strings.Join(texts, "")
}

// StatusMessageText extracts the text parts of the status message, used for
// failed and input-required terminal states.
func StatusMessageText(task *Task) string {
	if task.Status.Message == nil {
		return ""
	}
	var texts []string
	for _, part := range task.Status.Message.Parts {
		if part.Kind == "text" {
			texts = append(texts, part.Text)
		}
	}
	return strings.Join(texts, "")
}

// MessageText extracts the text parts of a direct message response, which
// uses the request-side "type" discriminator.
func MessageText(msg *Message) string {
	var texts []string
	for _, part := range msg.Parts {
		if part.Type == "text" {
			texts = append(texts, part.Text)
		}
	}
	return strings.Join(texts, "")
}
