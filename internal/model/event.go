package model

import "time"

// Event kind constants. The set is closed: the content reconstruction rule in
// the engine switches exhaustively over these values.
const (
	KindSectionStart = "section_start"
	KindSectionEnd   = "section_end"
	KindLog          = "log"
	KindResult       = "result"
	KindToken        = "token"
	KindError        = "error"
	KindDone         = "done"
)

// Event is a single entry in a task's append-only event log. Index is
// assigned at append time by the task's single writer and forms a contiguous
// range starting at zero. Step is empty for engine-level events (done, the
// terminal error).
type Event struct {
	Index     int            `json:"index"`
	Kind      string         `json:"kind"`
	Step      string         `json:"step,omitempty"`
	Content   string         `json:"content,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Terminal reports whether an event kind can close a task's event stream.
// Error events are terminal only when they were the last event appended; a
// recoverable step error mid-log carries the same kind.
func (e Event) Terminal() bool {
	return e.Kind == KindDone || e.Kind == KindError
}
