// Package anthropic implements the completion capability using the Anthropic
// Messages API. Responses are emitted as a single text fragment.
package anthropic

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/lumenmed/lumen/internal/provider"
)

// Options configure the Anthropic completion adapter.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Client wraps the Anthropic Messages API behind provider.Completion.
type Client struct {
	client *anthropic.Client
	opts   Options
}

// Compile-time interface satisfaction check.
var _ provider.Completion = (*Client)(nil)

// New creates a new adapter using the official client.
func New(optFns ...func(o *Options)) *Client {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Client{client: &client, opts: opts}
}

// NewFromClient creates a new adapter from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Client {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Client{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.2,
		MaxTokens:   4096,
	}
}

// Complete runs a non-streaming Messages call and emits the concatenated text
// blocks as one fragment. A one-fragment sequence satisfies the lazy-sequence
// contract; the research pipeline buffers completions for every step except
// the final report anyway.
func (c *Client) Complete(ctx context.Context, req provider.Request) (<-chan string, <-chan error) {
	out := make(chan string, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		model := c.opts.Model
		if req.Model != "" {
			model = anthropic.Model(req.Model)
		}

		params := anthropic.MessageNewParams{
			Model:       model,
			MaxTokens:   c.opts.MaxTokens,
			Temperature: anthropic.Float(c.opts.Temperature),
			Messages:    buildMessages(req),
		}
		if req.System != "" {
			params.System = []anthropic.TextBlockParam{{Text: req.System}}
		}

		resp, err := c.client.Messages.New(ctx, params)
		if err != nil {
			errCh <- fmt.Errorf("anthropic api error: %w", err)
			return
		}

		var text string
		for _, block := range resp.Content {
			if block.Type == "text" {
				text += block.AsText().Text
			}
		}
		if text == "" {
			return
		}
		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case out <- text:
		}
	}()

	return out, errCh
}

// buildMessages converts the normalized request into Anthropic messages.
func buildMessages(req provider.Request) []anthropic.MessageParam {
	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case "assistant":
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return messages
}
