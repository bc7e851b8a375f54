// Package task keeps the envelopes for work accepted on the orchestrator's
// own JSON-RPC surface, so clients can poll tasks/get against us the same way
// we poll downstream agents.
package task

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/aktasdeniz/maestro/pkg/a2a"
)

// ErrNotFound is returned when a task id is unknown.
var ErrNotFound = errors.New("task not found")

// ResultArtifactName labels the artifact carrying the orchestrator's answer.
const ResultArtifactName = "orchestrator_result"

// Store is an in-memory task map guarded by a RWMutex.
type Store struct {
	mu    sync.RWMutex
	tasks map[string]*a2a.Task
}

// NewStore creates an empty task store.
func NewStore() *Store {
	return &Store{tasks: make(map[string]*a2a.Task)}
}

// Create registers a new task in the working state. A missing id gets a fresh
// UUID. The stored envelope is returned.
func (s *Store) Create(id, contextID string) *a2a.Task {
	if id == "" {
		id = uuid.NewString()
	}

	t := &a2a.Task{
		ID:        id,
		ContextID: contextID,
		Kind:      "task",
		Status:    a2a.TaskStatus{State: a2a.TaskStateWorking},
	}

	s.mu.Lock()
	s.tasks[id] = t
	s.mu.Unlock()
	return t
}

// Complete moves a task to completed and attaches the result text as the
// orchestrator_result artifact.
func (s *Store) Complete(id, text string) (*a2a.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}

	t.Status = a2a.TaskStatus{State: a2a.TaskStateCompleted}
	t.Artifacts = append(t.Artifacts, a2a.Artifact{
		ArtifactID: uuid.NewString(),
		Name:       ResultArtifactName,
		Parts:      []a2a.Part{{Kind: "text", Text: text}},
	})
	return t, nil
}

// Fail moves a task to failed with the error text on the status message.
func (s *Store) Fail(id, text string) (*a2a.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}

	t.Status = a2a.TaskStatus{
		State: a2a.TaskStateFailed,
		Message: &a2a.Message{
			Role:      "agent",
			MessageID: uuid.NewString(),
			ContextID: t.ContextID,
			Parts:     []a2a.Part{{Kind: "text", Text: text}},
		},
	}
	return t, nil
}

// Get returns the task envelope for id.
func (s *Store) Get(id string) (*a2a.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t, nil
}

// Len returns the number of stored tasks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}
