package model

import "time"

// Task status constants.
const (
	StatusPending    = "pending"
	StatusGenerating = "generating"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Pipeline mode constants.
const (
	ModeResearch = "research"
	ModeDirect   = "direct"
)

// validTransitions maps each status to the set of statuses it may transition to.
// Terminal statuses have no outgoing transitions.
var validTransitions = map[string]map[string]bool{
	StatusPending: {
		StatusGenerating: true,
		StatusFailed:     true,
	},
	StatusGenerating: {
		StatusCompleted: true,
		StatusFailed:    true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// TerminalStatus reports whether a status is absorbing.
func TerminalStatus(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// Task represents one execution of a generation pipeline. It is created when
// a generation request is accepted and mutated only by the task runner that
// owns it.
type Task struct {
	ID             string     `json:"id"`
	Status         string     `json:"status"`
	Mode           string     `json:"mode"`
	Question       string     `json:"question"`
	ConversationID string     `json:"conversation_id,omitempty"`
	UserID         string     `json:"user_id,omitempty"`
	Error          string     `json:"error,omitempty"`
	MessageID      string     `json:"message_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
}
