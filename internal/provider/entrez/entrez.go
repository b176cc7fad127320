// Package entrez implements the search capability against the NCBI
// E-utilities (PubMed) and the ClinicalTrials.gov v2 API.
package entrez

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/lumenmed/lumen/internal/model"
	"github.com/lumenmed/lumen/internal/provider"
)

const (
	defaultEUtilsBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"
	defaultTrialsBaseURL = "https://clinicaltrials.gov/api/v2"

	requestTimeout = 15 * time.Second
	maxBodySize    = 4 << 20 // 4 MB
)

// Options configure the search client.
type Options struct {
	EUtilsBaseURL string
	TrialsBaseURL string
	HTTPClient    *http.Client
}

// Client queries PubMed for literature and ClinicalTrials.gov for trials.
type Client struct {
	eutils string
	trials string
	http   *http.Client
}

// Compile-time interface satisfaction check.
var _ provider.Search = (*Client)(nil)

// New creates a search client with production endpoints.
func New(optFns ...func(o *Options)) *Client {
	opts := Options{
		EUtilsBaseURL: defaultEUtilsBaseURL,
		TrialsBaseURL: defaultTrialsBaseURL,
		HTTPClient:    &http.Client{Timeout: requestTimeout},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Client{eutils: opts.EUtilsBaseURL, trials: opts.TrialsBaseURL, http: opts.HTTPClient}
}

// esearchResponse is the subset of the E-utilities esearch payload we consume.
type esearchResponse struct {
	ESearchResult struct {
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

// esummaryDoc is one PubMed record in an esummary payload.
type esummaryDoc struct {
	UID        string `json:"uid"`
	Title      string `json:"title"`
	ArticleIDs []struct {
		IDType string `json:"idtype"`
		Value  string `json:"value"`
	} `json:"articleids"`
}

// esummaryResponse carries records keyed by uid plus the uid order.
type esummaryResponse struct {
	Result map[string]json.RawMessage `json:"result"`
}

// SearchDocuments runs an esearch for PMIDs followed by an esummary for
// record metadata, preserving PubMed's relevance order.
func (c *Client) SearchDocuments(ctx context.Context, query string, limit int) ([]model.Document, error) {
	if limit <= 0 {
		limit = 10
	}

	params := url.Values{
		"db":      {"pubmed"},
		"term":    {query},
		"retmax":  {strconv.Itoa(limit)},
		"sort":    {"relevance"},
		"retmode": {"json"},
	}
	var search esearchResponse
	if err := c.getJSON(ctx, c.eutils+"/esearch.fcgi?"+params.Encode(), &search); err != nil {
		return nil, fmt.Errorf("pubmed esearch: %w", err)
	}
	ids := search.ESearchResult.IDList
	if len(ids) == 0 {
		return nil, nil
	}

	sumParams := url.Values{
		"db":      {"pubmed"},
		"id":      {strings.Join(ids, ",")},
		"retmode": {"json"},
	}
	var summary esummaryResponse
	if err := c.getJSON(ctx, c.eutils+"/esummary.fcgi?"+sumParams.Encode(), &summary); err != nil {
		return nil, fmt.Errorf("pubmed esummary: %w", err)
	}

	docs := make([]model.Document, 0, len(ids))
	for _, id := range ids {
		raw, ok := summary.Result[id]
		if !ok {
			continue
		}
		var rec esummaryDoc
		if err := sonic.Unmarshal(raw, &rec); err != nil {
			continue
		}
		docs = append(docs, toDocument(id, rec))
	}
	return docs, nil
}

// toDocument maps a PubMed summary record to a Document, deriving a retrieval
// hint from the PMC id when present, otherwise from the DOI.
func toDocument(pmid string, rec esummaryDoc) model.Document {
	doc := model.Document{
		ID:          "pmid:" + pmid,
		Title:       rec.Title,
		Identifiers: map[string]string{"pmid": pmid},
	}
	for _, aid := range rec.ArticleIDs {
		switch aid.IDType {
		case "doi":
			doc.Identifiers["doi"] = aid.Value
		case "pmc", "pmcid":
			doc.Identifiers["pmcid"] = aid.Value
		}
	}
	if pmcid, ok := doc.Identifiers["pmcid"]; ok {
		doc.RetrievalHint = "https://www.ncbi.nlm.nih.gov/pmc/articles/" + pmcid + "/pdf/"
	} else if doi, ok := doc.Identifiers["doi"]; ok {
		doc.RetrievalHint = "https://doi.org/" + doi
	}
	return doc
}

// ctgovResponse is the subset of the ClinicalTrials.gov v2 studies payload we
// consume.
type ctgovResponse struct {
	Studies []struct {
		ProtocolSection struct {
			IdentificationModule struct {
				NCTID      string `json:"nctId"`
				BriefTitle string `json:"briefTitle"`
			} `json:"identificationModule"`
			StatusModule struct {
				OverallStatus string `json:"overallStatus"`
			} `json:"statusModule"`
			DesignModule struct {
				StudyType string   `json:"studyType"`
				Phases    []string `json:"phases"`
			} `json:"designModule"`
		} `json:"protocolSection"`
	} `json:"studies"`
}

// SearchTrials queries ClinicalTrials.gov for studies matching the keywords.
func (c *Client) SearchTrials(ctx context.Context, keywords string, limit int) ([]model.Trial, error) {
	if limit <= 0 {
		limit = 10
	}
	params := url.Values{
		"query.term": {keywords},
		"pageSize":   {strconv.Itoa(limit)},
	}
	var resp ctgovResponse
	if err := c.getJSON(ctx, c.trials+"/studies?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("clinicaltrials search: %w", err)
	}

	trials := make([]model.Trial, 0, len(resp.Studies))
	for _, s := range resp.Studies {
		ident := s.ProtocolSection.IdentificationModule
		trial := model.Trial{
			ID:       ident.NCTID,
			Title:    ident.BriefTitle,
			Status:   s.ProtocolSection.StatusModule.OverallStatus,
			Metadata: map[string]string{},
		}
		if st := s.ProtocolSection.DesignModule.StudyType; st != "" {
			trial.Metadata["study_type"] = st
		}
		if phases := s.ProtocolSection.DesignModule.Phases; len(phases) > 0 {
			trial.Metadata["phase"] = phases[0]
		}
		trials = append(trials, trial)
	}
	return trials, nil
}

// getJSON performs a GET request and decodes the JSON body into v.
func (c *Client) getJSON(ctx context.Context, rawURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if err := sonic.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}
