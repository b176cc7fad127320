package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/lumenmed/lumen/internal/provider"
)

// TrialsStep searches the trial registry and summarizes the trial landscape.
// Like literature search, an empty or failing registry lookup is recoverable.
type TrialsStep struct {
	search provider.Search
	llm    provider.Completion
	limit  int
}

// NewTrialsStep creates the clinical trials step.
func NewTrialsStep(search provider.Search, llm provider.Completion, limit int) *TrialsStep {
	if limit <= 0 {
		limit = 10
	}
	return &TrialsStep{search: search, llm: llm, limit: limit}
}

// Name implements Step.
func (s *TrialsStep) Name() string { return "trials" }

// Run implements Step.
func (s *TrialsStep) Run(ctx context.Context, st *State, em Emitter) error {
	keywords := st.Question
	if len(st.Features) > 0 {
		keywords = strings.Join(st.Features, " ")
	}

	em.Log("Searching clinical trial registry")
	trials, err := s.search.SearchTrials(ctx, keywords, s.limit)
	if err != nil {
		em.Result("## Clinical trials\n\nTrial registry was unavailable.\n\n",
			map[string]any{"trial_count": 0})
		return Recoverable(fmt.Errorf("trial search: %w", err))
	}
	if len(trials) == 0 {
		em.Result("## Clinical trials\n\nNo registered trials were found.\n\n",
			map[string]any{"trial_count": 0})
		return Recoverable(fmt.Errorf("trial search returned no trials"))
	}
	st.Trials = trials

	var listing strings.Builder
	for _, t := range trials {
		fmt.Fprintf(&listing, "%s — %s (%s)\n", t.ID, t.Title, t.Status)
	}

	em.Log(fmt.Sprintf("Analyzing %d registered trials", len(trials)))
	frags, errs := s.llm.Complete(ctx, provider.Request{
		System: trialsSystemPrompt,
		Messages: []provider.Message{{
			Role:    "user",
			Content: fmt.Sprintf("Question: %s\n\nTrials:\n%s", st.Question, listing.String()),
		}},
	})
	analysis, err := provider.CollectText(ctx, frags, errs)
	if err != nil {
		return fmt.Errorf("trial analysis: %w", err)
	}
	st.TrialAnalysis = analysis

	em.Result(
		fmt.Sprintf("## Clinical trials\n\n%s\n\n", strings.TrimSpace(analysis)),
		map[string]any{"trial_count": len(trials)},
	)
	return nil
}
