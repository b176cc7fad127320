package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/lumenmed/lumen/internal/provider"
)

// ReportStep streams the final evidence report. Fragments are relayed as
// token events for live observers; the assembled report is emitted as a
// result event so it lands in the reconstructed artifact exactly once.
type ReportStep struct {
	llm provider.Completion
}

// NewReportStep creates the final report step.
func NewReportStep(llm provider.Completion) *ReportStep {
	return &ReportStep{llm: llm}
}

// Name implements Step.
func (s *ReportStep) Name() string { return "report" }

// Run implements Step.
func (s *ReportStep) Run(ctx context.Context, st *State, em Emitter) error {
	em.Log("Writing evidence report")

	frags, errs := s.llm.Complete(ctx, provider.Request{
		System:   reportSystemPrompt,
		Messages: []provider.Message{{Role: "user", Content: s.buildPrompt(st)}},
	})

	var report strings.Builder
	for frags != nil || errs != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-frags:
			if !ok {
				frags = nil
				continue
			}
			report.WriteString(f)
			em.Token(f)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				return fmt.Errorf("report generation: %w", err)
			}
		}
	}

	st.Report = report.String()
	if st.Report == "" {
		return fmt.Errorf("report generation produced no text")
	}

	em.Result(
		fmt.Sprintf("## Evidence report\n\n%s\n", strings.TrimSpace(st.Report)),
		map[string]any{"length": len(st.Report)},
	)
	return nil
}

// buildPrompt assembles everything accumulated by earlier steps into the
// report request.
func (s *ReportStep) buildPrompt(st *State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n", st.Question)
	if len(st.Features) > 0 {
		fmt.Fprintf(&b, "\nClinical features:\n%s\n", strings.Join(st.Features, "\n"))
	}
	if len(st.Analyses) > 0 {
		b.WriteString("\nPublication analyses:\n")
		for _, a := range st.Analyses {
			fmt.Fprintf(&b, "[%s] %s\n%s\n\n", a.DocumentID, a.Title, strings.TrimSpace(a.Summary))
		}
	} else {
		b.WriteString("\nNo publications could be analyzed; say so explicitly.\n")
	}
	if st.TrialAnalysis != "" {
		fmt.Fprintf(&b, "\nTrial landscape:\n%s\n", strings.TrimSpace(st.TrialAnalysis))
	}
	return b.String()
}
