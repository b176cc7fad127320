package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/lumenmed/lumen/internal/model"
	"github.com/lumenmed/lumen/internal/provider"
)

// maxAnalyzedDocuments caps how many retrieved documents are analyzed in
// depth; search already ranks by relevance.
const maxAnalyzedDocuments = 5

// AnalyzeStep resolves and summarizes each retrieved document. A document
// whose full text cannot be resolved is analyzed from its metadata; the step
// itself only fails fatally when the completion provider does.
type AnalyzeStep struct {
	resolver provider.Resolver
	llm      provider.Completion
}

// NewAnalyzeStep creates the per-document analysis step.
func NewAnalyzeStep(resolver provider.Resolver, llm provider.Completion) *AnalyzeStep {
	return &AnalyzeStep{resolver: resolver, llm: llm}
}

// Name implements Step.
func (s *AnalyzeStep) Name() string { return "analyze" }

// Run implements Step.
func (s *AnalyzeStep) Run(ctx context.Context, st *State, em Emitter) error {
	if len(st.Documents) == 0 {
		em.Log("No documents to analyze")
		return nil
	}

	docs := st.Documents
	if len(docs) > maxAnalyzedDocuments {
		docs = docs[:maxAnalyzedDocuments]
	}

	for _, doc := range docs {
		analysis, err := s.analyzeOne(ctx, st, doc, em)
		if err != nil {
			return fmt.Errorf("analyze %s: %w", doc.ID, err)
		}
		st.Analyses = append(st.Analyses, analysis)
		em.Result(
			fmt.Sprintf("### %s\n\n%s\n\n", doc.Title, strings.TrimSpace(analysis.Summary)),
			map[string]any{"document_id": doc.ID, "full_text": analysis.FullText},
		)
	}
	return nil
}

func (s *AnalyzeStep) analyzeOne(ctx context.Context, st *State, doc model.Document, em Emitter) (model.DocumentAnalysis, error) {
	em.Log(fmt.Sprintf("Analyzing %s", doc.ID))

	fullText := false
	if _, err := s.resolver.Resolve(ctx, doc); err != nil {
		em.Log(fmt.Sprintf("Full text unavailable for %s, using metadata only", doc.ID))
	} else {
		fullText = true
	}

	var material strings.Builder
	fmt.Fprintf(&material, "Title: %s\n", doc.Title)
	if doc.Abstract != "" {
		fmt.Fprintf(&material, "Abstract: %s\n", doc.Abstract)
	}
	idKeys := make([]string, 0, len(doc.Identifiers))
	for k := range doc.Identifiers {
		idKeys = append(idKeys, k)
	}
	sort.Strings(idKeys)
	for _, k := range idKeys {
		fmt.Fprintf(&material, "%s: %s\n", k, doc.Identifiers[k])
	}
	if !fullText {
		material.WriteString("Note: full text could not be retrieved; judge from the metadata above.\n")
	}

	frags, errs := s.llm.Complete(ctx, provider.Request{
		System: analysisSystemPrompt,
		Messages: []provider.Message{{
			Role:    "user",
			Content: fmt.Sprintf("Question: %s\n\nPublication:\n%s", st.Question, material.String()),
		}},
	})
	summary, err := provider.CollectText(ctx, frags, errs)
	if err != nil {
		return model.DocumentAnalysis{}, err
	}

	return model.DocumentAnalysis{
		DocumentID: doc.ID,
		Title:      doc.Title,
		Summary:    summary,
		FullText:   fullText,
	}, nil
}
