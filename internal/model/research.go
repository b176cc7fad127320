package model

// Document is a ranked literature search hit. Identifiers carries whatever
// the search backend knows (pmid, doi, pmcid); RetrievalHint is a URL the
// resolver can try for the full-text artifact.
type Document struct {
	ID            string            `json:"id"`
	Title         string            `json:"title"`
	Abstract      string            `json:"abstract,omitempty"`
	Identifiers   map[string]string `json:"identifiers,omitempty"`
	RetrievalHint string            `json:"retrieval_hint,omitempty"`
}

// Trial is a ranked clinical trial search hit.
type Trial struct {
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// DocumentAnalysis is the per-document summary produced by the analysis step.
type DocumentAnalysis struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	Summary    string `json:"summary"`
	FullText   bool   `json:"full_text"`
}
