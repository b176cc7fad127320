// Package fetch implements the document resolution capability by downloading
// a document's retrieval hint URL into a local data directory.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lumenmed/lumen/internal/model"
	"github.com/lumenmed/lumen/internal/provider"
)

const (
	requestTimeout = 30 * time.Second
	maxArtifactMB  = 32
)

// Options configure the resolver.
type Options struct {
	HTTPClient *http.Client
}

// Resolver downloads full-text artifacts to dataDir. Already-downloaded
// artifacts are reused.
type Resolver struct {
	dataDir string
	http    *http.Client
}

// Compile-time interface satisfaction check.
var _ provider.Resolver = (*Resolver)(nil)

// New creates a resolver writing into dataDir, creating it if needed.
func New(dataDir string, optFns ...func(o *Options)) (*Resolver, error) {
	opts := Options{HTTPClient: &http.Client{Timeout: requestTimeout}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Resolver{dataDir: dataDir, http: opts.HTTPClient}, nil
}

// Resolve fetches the document's artifact and returns its local path. A
// document without a retrieval hint, or whose hint cannot be fetched, yields
// provider.ErrUnresolvable.
func (r *Resolver) Resolve(ctx context.Context, doc model.Document) (string, error) {
	if doc.RetrievalHint == "" {
		return "", fmt.Errorf("%w: no retrieval hint for %s", provider.ErrUnresolvable, doc.ID)
	}

	path := filepath.Join(r.dataDir, artifactName(doc.ID))
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, doc.RetrievalHint, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: fetch %s: %v", provider.ErrUnresolvable, doc.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: fetch %s: status %d", provider.ErrUnresolvable, doc.ID, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(r.dataDir, "artifact-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, io.LimitReader(resp.Body, maxArtifactMB<<20)); err != nil {
		tmp.Close()
		return "", fmt.Errorf("%w: download %s: %v", provider.ErrUnresolvable, doc.ID, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("store artifact: %w", err)
	}
	return path, nil
}

// artifactName maps a document id to a safe filename.
func artifactName(docID string) string {
	name := strings.NewReplacer(":", "_", "/", "_", "\\", "_").Replace(docID)
	return name + ".pdf"
}
