package entrez

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newFakeEUtils(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/esearch.fcgi", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("db") != "pubmed" {
			t.Errorf("esearch db = %q, want pubmed", r.URL.Query().Get("db"))
		}
		fmt.Fprint(w, `{"esearchresult":{"idlist":["11111","22222"]}}`)
	})
	mux.HandleFunc("/esummary.fcgi", func(w http.ResponseWriter, r *http.Request) {
		if ids := r.URL.Query().Get("id"); ids != "11111,22222" {
			t.Errorf("esummary id = %q", ids)
		}
		fmt.Fprint(w, `{"result":{
			"uids":["11111","22222"],
			"11111":{"uid":"11111","title":"Metformin and cancer incidence","articleids":[{"idtype":"doi","value":"10.1000/a"},{"idtype":"pmc","value":"PMC123"}]},
			"22222":{"uid":"22222","title":"A cohort study","articleids":[{"idtype":"doi","value":"10.1000/b"}]}
		}}`)
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func TestSearchDocuments(t *testing.T) {
	ts := newFakeEUtils(t)
	c := New(func(o *Options) {
		o.EUtilsBaseURL = ts.URL
	})

	docs, err := c.SearchDocuments(context.Background(), "metformin cancer", 10)
	if err != nil {
		t.Fatalf("SearchDocuments: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d documents, want 2", len(docs))
	}

	first := docs[0]
	if first.ID != "pmid:11111" {
		t.Errorf("ID = %q, want pmid:11111", first.ID)
	}
	if first.Title != "Metformin and cancer incidence" {
		t.Errorf("Title = %q", first.Title)
	}
	if first.Identifiers["pmcid"] != "PMC123" || first.Identifiers["doi"] != "10.1000/a" {
		t.Errorf("Identifiers = %v", first.Identifiers)
	}
	if !strings.Contains(first.RetrievalHint, "PMC123") {
		t.Errorf("RetrievalHint = %q, want PMC link", first.RetrievalHint)
	}

	// No PMC id falls back to the DOI.
	if hint := docs[1].RetrievalHint; hint != "https://doi.org/10.1000/b" {
		t.Errorf("RetrievalHint = %q, want DOI link", hint)
	}
}

func TestSearchDocumentsNoHits(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/esearch.fcgi", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"esearchresult":{"idlist":[]}}`)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	c := New(func(o *Options) { o.EUtilsBaseURL = ts.URL })
	docs, err := c.SearchDocuments(context.Background(), "nonexistentium", 10)
	if err != nil {
		t.Fatalf("SearchDocuments: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("got %d documents, want 0", len(docs))
	}
}

func TestSearchDocumentsServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	c := New(func(o *Options) { o.EUtilsBaseURL = ts.URL })
	if _, err := c.SearchDocuments(context.Background(), "q", 10); err == nil {
		t.Fatal("SearchDocuments succeeded against failing backend")
	}
}

func TestSearchTrials(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/studies" {
			t.Errorf("path = %q, want /studies", r.URL.Path)
		}
		if q := r.URL.Query().Get("query.term"); q != "metformin" {
			t.Errorf("query.term = %q", q)
		}
		fmt.Fprint(w, `{"studies":[
			{"protocolSection":{
				"identificationModule":{"nctId":"NCT001","briefTitle":"Metformin trial"},
				"statusModule":{"overallStatus":"RECRUITING"},
				"designModule":{"studyType":"INTERVENTIONAL","phases":["PHASE3"]}
			}}
		]}`)
	}))
	defer ts.Close()

	c := New(func(o *Options) { o.TrialsBaseURL = ts.URL })
	trials, err := c.SearchTrials(context.Background(), "metformin", 10)
	if err != nil {
		t.Fatalf("SearchTrials: %v", err)
	}
	if len(trials) != 1 {
		t.Fatalf("got %d trials, want 1", len(trials))
	}
	tr := trials[0]
	if tr.ID != "NCT001" || tr.Status != "RECRUITING" {
		t.Errorf("trial = %+v", tr)
	}
	if tr.Metadata["study_type"] != "INTERVENTIONAL" || tr.Metadata["phase"] != "PHASE3" {
		t.Errorf("metadata = %v", tr.Metadata)
	}
}
