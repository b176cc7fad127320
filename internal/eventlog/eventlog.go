// Package eventlog provides the append-only per-task event log that decouples
// task runners from stream subscribers. A task's log has exactly one writer
// (its runner) and any number of polling readers; readers never observe a
// partially written event or a gap in the index sequence.
package eventlog

import (
	"context"
	"errors"

	"github.com/lumenmed/lumen/internal/model"
)

// ErrNotFound is returned when a task is unknown or has been evicted.
var ErrNotFound = errors.New("task not found")

// ErrInvalidTransition is returned when a task status transition is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// TaskStats holds aggregate task execution statistics.
type TaskStats struct {
	Total         int            `json:"total"`
	CountByStatus map[string]int `json:"count_by_status"`
	CountByMode   map[string]int `json:"count_by_mode"`
	AvgDurationMS float64        `json:"avg_duration_ms"`
	TotalEvents   int            `json:"total_events"`
}

// Store defines the persistence operations for tasks and their event logs.
//
// Append must only be called by the runner that owns the task; it assigns the
// next index (current length of the stored sequence) and is atomic with
// respect to concurrent ListFrom calls. ListFrom and Status are cheap enough
// to poll with a short backoff.
type Store interface {
	CreateTask(ctx context.Context, t *model.Task) error
	GetTask(ctx context.Context, id string) (*model.Task, error)
	SetStatus(ctx context.Context, id, status string) error
	// FinishTask records a terminal status together with the error message
	// (empty on success) and the finish timestamp.
	FinishTask(ctx context.Context, id, status, errMsg string) error
	// SetArtifact records where the task's final artifact was persisted.
	SetArtifact(ctx context.Context, id, conversationID, messageID string) error
	Append(ctx context.Context, taskID string, ev model.Event) (int, error)
	ListFrom(ctx context.Context, taskID string, from int) ([]model.Event, error)
	Status(ctx context.Context, taskID string) (string, error)
	Delete(ctx context.Context, taskID string) error
	Stats(ctx context.Context) (*TaskStats, error)
	Close() error
}
