package pipeline

import (
	"context"
	"fmt"

	"github.com/lumenmed/lumen/internal/provider"
)

// SearchStep runs the generated queries against the literature search
// capability and deduplicates the hits. Finding nothing, or losing the search
// backend, degrades the pipeline instead of aborting it.
type SearchStep struct {
	search provider.Search
	limit  int
}

// NewSearchStep creates the literature search step; limit caps hits per query.
func NewSearchStep(search provider.Search, limit int) *SearchStep {
	if limit <= 0 {
		limit = 10
	}
	return &SearchStep{search: search, limit: limit}
}

// Name implements Step.
func (s *SearchStep) Name() string { return "search" }

// Run implements Step.
func (s *SearchStep) Run(ctx context.Context, st *State, em Emitter) error {
	queries := st.Queries
	if len(queries) == 0 {
		queries = []string{st.Question}
	}

	var searchErr error
	for _, q := range queries {
		em.Log(fmt.Sprintf("Searching literature: %s", q))
		docs, err := s.search.SearchDocuments(ctx, q, s.limit)
		if err != nil {
			searchErr = err
			em.Log(fmt.Sprintf("Search failed for %q: %v", q, err))
			continue
		}
		st.AddDocuments(docs)
	}

	if len(st.Documents) == 0 {
		em.Result("## Literature search\n\nNo matching publications were found.\n\n",
			map[string]any{"document_count": 0})
		if searchErr != nil {
			return Recoverable(fmt.Errorf("literature search: %w", searchErr))
		}
		return Recoverable(fmt.Errorf("literature search returned no documents"))
	}

	titles := make([]string, len(st.Documents))
	ids := make([]string, len(st.Documents))
	for i, d := range st.Documents {
		titles[i] = fmt.Sprintf("%s (%s)", d.Title, d.ID)
		ids[i] = d.ID
	}
	em.Result(
		fmt.Sprintf("## Literature search\n\nFound %d publications:\n\n%s\n\n",
			len(st.Documents), bulletList(titles)),
		map[string]any{"document_count": len(st.Documents), "document_ids": ids},
	)
	return nil
}
