package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/lumenmed/lumen/internal/provider"
)

// maxQueries caps how many generated queries the search step will run.
const maxQueries = 3

// QueriesStep turns the question and its features into literature search
// queries.
type QueriesStep struct {
	llm provider.Completion
}

// NewQueriesStep creates the query generation step.
func NewQueriesStep(llm provider.Completion) *QueriesStep {
	return &QueriesStep{llm: llm}
}

// Name implements Step.
func (s *QueriesStep) Name() string { return "queries" }

// Run implements Step.
func (s *QueriesStep) Run(ctx context.Context, st *State, em Emitter) error {
	em.Log("Generating literature search queries")

	prompt := st.Question
	if len(st.Features) > 0 {
		prompt += "\n\nExtracted features:\n" + strings.Join(st.Features, "\n")
	}

	frags, errs := s.llm.Complete(ctx, provider.Request{
		System:   queriesSystemPrompt,
		Messages: []provider.Message{{Role: "user", Content: prompt}},
	})
	text, err := provider.CollectText(ctx, frags, errs)
	if err != nil {
		return fmt.Errorf("query generation: %w", err)
	}

	queries := splitLines(text)
	if len(queries) == 0 {
		return fmt.Errorf("query generation returned no queries")
	}
	if len(queries) > maxQueries {
		queries = queries[:maxQueries]
	}
	st.Queries = queries

	em.Result(
		fmt.Sprintf("## Search queries\n\n%s\n\n", bulletList(queries)),
		map[string]any{"queries": queries},
	)
	return nil
}
