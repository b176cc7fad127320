package eventlog

import (
	"context"
	"sync"
	"time"

	"github.com/lumenmed/lumen/internal/model"
)

// Compile-time interface satisfaction check.
var _ Store = (*MemoryStore)(nil)

// MemoryStore is a volatile Store implementation keeping tasks and event logs
// in a process-local map. It is safe for concurrent single-writer/multi-reader
// access per task and is the default backend; logs do not survive a restart.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]*taskEntry
}

type taskEntry struct {
	task   model.Task
	events []model.Event
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]*taskEntry)}
}

// CreateTask stores a new task record.
func (s *MemoryStore) CreateTask(_ context.Context, t *model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = &taskEntry{task: *t}
	return nil
}

// GetTask returns a copy of the task record.
func (s *MemoryStore) GetTask(_ context.Context, id string) (*model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	t := e.task
	return &t, nil
}

// SetStatus transitions a task to a new status, enforcing the lifecycle.
func (s *MemoryStore) SetStatus(_ context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.tasks[id]
	if !ok {
		return ErrNotFound
	}
	if !model.ValidTransition(e.task.Status, status) {
		return ErrInvalidTransition
	}
	e.task.Status = status
	return nil
}

// FinishTask records a terminal status, error message and finish time.
func (s *MemoryStore) FinishTask(_ context.Context, id, status, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.tasks[id]
	if !ok {
		return ErrNotFound
	}
	if !model.ValidTransition(e.task.Status, status) {
		return ErrInvalidTransition
	}
	now := time.Now().UTC()
	e.task.Status = status
	e.task.Error = errMsg
	e.task.FinishedAt = &now
	return nil
}

// SetArtifact records the conversation and message the task's artifact was
// persisted to.
func (s *MemoryStore) SetArtifact(_ context.Context, id, conversationID, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.tasks[id]
	if !ok {
		return ErrNotFound
	}
	e.task.ConversationID = conversationID
	e.task.MessageID = messageID
	return nil
}

// Append adds an event to the task's log, assigning the next index.
func (s *MemoryStore) Append(_ context.Context, taskID string, ev model.Event) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.tasks[taskID]
	if !ok {
		return 0, ErrNotFound
	}
	ev.Index = len(e.events)
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	e.events = append(e.events, ev)
	return ev.Index, nil
}

// ListFrom returns all events with index >= from, in index order.
func (s *MemoryStore) ListFrom(_ context.Context, taskID string, from int) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.tasks[taskID]
	if !ok {
		return nil, ErrNotFound
	}
	if from < 0 {
		from = 0
	}
	if from >= len(e.events) {
		return nil, nil
	}
	out := make([]model.Event, len(e.events)-from)
	copy(out, e.events[from:])
	return out, nil
}

// Status returns the task's current status.
func (s *MemoryStore) Status(_ context.Context, taskID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.tasks[taskID]
	if !ok {
		return "", ErrNotFound
	}
	return e.task.Status, nil
}

// Delete evicts the task record and its event log.
func (s *MemoryStore) Delete(_ context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, taskID)
	return nil
}

// Stats aggregates counts and average duration across all live tasks.
func (s *MemoryStore) Stats(_ context.Context) (*TaskStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := &TaskStats{
		CountByStatus: make(map[string]int),
		CountByMode:   make(map[string]int),
	}
	var durSum float64
	var durN int
	for _, e := range s.tasks {
		st.Total++
		st.CountByStatus[e.task.Status]++
		st.CountByMode[e.task.Mode]++
		st.TotalEvents += len(e.events)
		if e.task.FinishedAt != nil {
			durSum += float64(e.task.FinishedAt.Sub(e.task.CreatedAt).Milliseconds())
			durN++
		}
	}
	if durN > 0 {
		st.AvgDurationMS = durSum / float64(durN)
	}
	return st, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }
