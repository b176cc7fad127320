package pipeline

import "github.com/lumenmed/lumen/internal/model"

// State is the shared mutable workflow state for one task. It is owned
// exclusively by the running task's goroutine; its effects become observable
// only through emitted events and the persisted artifact.
type State struct {
	Question       string
	ConversationID string
	UserID         string

	Features      []string
	Queries       []string
	Documents     []model.Document
	Trials        []model.Trial
	TrialAnalysis string
	Analyses      []model.DocumentAnalysis
	Report        string
}

// NewState initializes state from the task's input.
func NewState(t *model.Task) *State {
	return &State{
		Question:       t.Question,
		ConversationID: t.ConversationID,
		UserID:         t.UserID,
	}
}

// AddDocuments appends docs, skipping ids already present so that repeated
// queries do not duplicate hits. Order of first appearance is preserved.
func (s *State) AddDocuments(docs []model.Document) int {
	seen := make(map[string]bool, len(s.Documents))
	for _, d := range s.Documents {
		seen[d.ID] = true
	}
	added := 0
	for _, d := range docs {
		if d.ID == "" || seen[d.ID] {
			continue
		}
		seen[d.ID] = true
		s.Documents = append(s.Documents, d)
		added++
	}
	return added
}
