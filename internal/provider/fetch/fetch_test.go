package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/lumenmed/lumen/internal/model"
	"github.com/lumenmed/lumen/internal/provider"
)

func TestResolveDownloadsAndCaches(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, "pdf bytes")
	}))
	defer ts.Close()

	r, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	doc := model.Document{ID: "pmid:123", RetrievalHint: ts.URL + "/article.pdf"}
	path, err := r.Resolve(context.Background(), doc)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(body) != "pdf bytes" {
		t.Errorf("artifact body = %q", body)
	}

	// Second resolve reuses the stored artifact.
	again, err := r.Resolve(context.Background(), doc)
	if err != nil {
		t.Fatalf("Resolve again: %v", err)
	}
	if again != path {
		t.Errorf("paths differ: %q vs %q", again, path)
	}
	if hits.Load() != 1 {
		t.Errorf("backend hit %d times, want 1", hits.Load())
	}
}

func TestResolveNoHintIsUnresolvable(t *testing.T) {
	r, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = r.Resolve(context.Background(), model.Document{ID: "pmid:1"})
	if !errors.Is(err, provider.ErrUnresolvable) {
		t.Errorf("Resolve = %v, want ErrUnresolvable", err)
	}
}

func TestResolveUpstreamErrorIsUnresolvable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	r, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = r.Resolve(context.Background(), model.Document{ID: "pmid:1", RetrievalHint: ts.URL})
	if !errors.Is(err, provider.ErrUnresolvable) {
		t.Errorf("Resolve = %v, want ErrUnresolvable", err)
	}
}

func TestArtifactName(t *testing.T) {
	if got := artifactName("pmid:12/34"); got != "pmid_12_34.pdf" {
		t.Errorf("artifactName = %q", got)
	}
}
