package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/lumenmed/lumen/internal/provider"
)

// FeaturesStep extracts the clinical features of the question. Everything
// downstream builds on its output, so its failures are fatal.
type FeaturesStep struct {
	llm provider.Completion
}

// NewFeaturesStep creates the feature extraction step.
func NewFeaturesStep(llm provider.Completion) *FeaturesStep {
	return &FeaturesStep{llm: llm}
}

// Name implements Step.
func (s *FeaturesStep) Name() string { return "features" }

// Run implements Step.
func (s *FeaturesStep) Run(ctx context.Context, st *State, em Emitter) error {
	em.Log("Extracting clinical features from the question")

	frags, errs := s.llm.Complete(ctx, provider.Request{
		System:   featuresSystemPrompt,
		Messages: []provider.Message{{Role: "user", Content: st.Question}},
	})
	text, err := provider.CollectText(ctx, frags, errs)
	if err != nil {
		return fmt.Errorf("feature extraction: %w", err)
	}

	st.Features = splitLines(text)
	if len(st.Features) == 0 {
		return fmt.Errorf("feature extraction returned no features")
	}

	em.Result(
		fmt.Sprintf("## Clinical features\n\n%s\n\n", bulletList(st.Features)),
		map[string]any{"features": st.Features},
	)
	return nil
}

// splitLines returns the non-empty trimmed lines of text.
func splitLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "-"))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func bulletList(items []string) string {
	var b strings.Builder
	for _, it := range items {
		b.WriteString("- ")
		b.WriteString(it)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
