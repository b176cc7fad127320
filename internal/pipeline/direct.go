package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/lumenmed/lumen/internal/model"
	"github.com/lumenmed/lumen/internal/provider"
)

// DirectStep answers the question in a single streamed completion. It is the
// only step of the flat "direct" pipeline: no sections are emitted, and the
// artifact is rebuilt from the token events alone.
type DirectStep struct {
	llm provider.Completion
}

// NewDirectStep creates the single-shot answer step.
func NewDirectStep(llm provider.Completion) *DirectStep {
	return &DirectStep{llm: llm}
}

// Name implements Step.
func (s *DirectStep) Name() string { return "direct" }

// Run implements Step.
func (s *DirectStep) Run(ctx context.Context, st *State, em Emitter) error {
	frags, errs := s.llm.Complete(ctx, provider.Request{
		Messages: []provider.Message{{Role: "user", Content: st.Question}},
	})

	var answer strings.Builder
	for frags != nil || errs != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-frags:
			if !ok {
				frags = nil
				continue
			}
			answer.WriteString(f)
			em.Token(f)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				return fmt.Errorf("direct answer: %w", err)
			}
		}
	}

	st.Report = answer.String()
	if st.Report == "" {
		return fmt.Errorf("direct answer produced no text")
	}
	return nil
}

// Defaults wires the standard pipeline variants from a provider set.
func Defaults(llm provider.Completion, search provider.Search, resolver provider.Resolver, searchLimit int) *Registry {
	r := NewRegistry()
	r.Register(New(model.ModeResearch,
		NewFeaturesStep(llm),
		NewQueriesStep(llm),
		NewSearchStep(search, searchLimit),
		NewTrialsStep(search, llm, searchLimit),
		NewAnalyzeStep(resolver, llm),
		NewReportStep(llm),
	))
	r.Register(NewFlat(model.ModeDirect, NewDirectStep(llm)))
	return r
}
