// Package provider defines the capability interfaces consumed by pipeline
// steps: text completion, document/trial search, artifact resolution. The
// engine itself never touches a provider; steps receive them at construction.
package provider

import (
	"context"
	"errors"
	"strings"

	"github.com/lumenmed/lumen/internal/model"
)

// ErrUnresolvable is returned by a Resolver when no full-text artifact can be
// retrieved for a document. Callers treat this as a recoverable condition.
var ErrUnresolvable = errors.New("document artifact unavailable")

// Message is a single turn in a completion request.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Request is the normalized input to a completion provider.
type Request struct {
	System   string    `json:"system,omitempty"`
	Messages []Message `json:"messages"`
	Model    string    `json:"model,omitempty"`
}

// Completion streams text fragments for a chat-style request. The returned
// sequence is lazy, finite and not restartable; callers that need replay must
// buffer. The fragment channel is closed when generation finishes; the error
// channel (buffered size 1) carries at most one terminal error.
type Completion interface {
	Complete(ctx context.Context, req Request) (<-chan string, <-chan error)
}

// Search retrieves ranked literature documents and clinical trials.
type Search interface {
	SearchDocuments(ctx context.Context, query string, limit int) ([]model.Document, error)
	SearchTrials(ctx context.Context, keywords string, limit int) ([]model.Trial, error)
}

// Resolver retrieves the full-text artifact for a document, returning a local
// filesystem path.
type Resolver interface {
	Resolve(ctx context.Context, doc model.Document) (string, error)
}

// CollectText drains a completion stream into a single string. It returns the
// text accumulated so far together with the first error encountered, so a
// caller can still inspect partial output on failure.
func CollectText(ctx context.Context, frags <-chan string, errs <-chan error) (string, error) {
	var b strings.Builder
	for {
		select {
		case <-ctx.Done():
			return b.String(), ctx.Err()
		case f, ok := <-frags:
			if !ok {
				if errs == nil {
					return b.String(), nil
				}
				select {
				case err := <-errs:
					return b.String(), err
				default:
					return b.String(), nil
				}
			}
			b.WriteString(f)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				return b.String(), err
			}
		}
	}
}
