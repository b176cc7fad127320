// Package openai implements the completion capability using the OpenAI Chat
// Completions API with streaming.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/lumenmed/lumen/internal/provider"
)

// Options configure the OpenAI completion adapter. Kept intentionally minimal;
// extend via functional options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Client wraps the OpenAI Chat Completions API behind provider.Completion.
type Client struct {
	client *openai.Client
	opts   Options
}

// Compile-time interface satisfaction check.
var _ provider.Completion = (*Client)(nil)

// New creates a new adapter using the default OpenAI client (API key from the
// environment).
func New(optFns ...func(o *Options)) *Client {
	c := openai.NewClient()
	return NewFromClient(&c, optFns...)
}

// NewFromClient creates a new adapter from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Client {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.2,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Client{client: client, opts: opts}
}

// Complete streams text fragments for the request. Each delta chunk from the
// API is forwarded as one fragment.
func (c *Client) Complete(ctx context.Context, req provider.Request) (<-chan string, <-chan error) {
	out := make(chan string, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := openai.ChatCompletionNewParams{
			Model:               c.model(req),
			Messages:            buildMessages(req),
			Temperature:         openai.Float(c.opts.Temperature),
			MaxCompletionTokens: openai.Int(c.opts.MaxCompletionTokens),
		}

		stream := c.client.Chat.Completions.NewStreaming(ctx, params)
		for stream.Next() {
			ck := stream.Current()
			for _, choice := range ck.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case out <- choice.Delta.Content:
				}
			}
		}
		if err := stream.Err(); err != nil {
			errCh <- fmt.Errorf("openai streaming error: %w", err)
		}
	}()

	return out, errCh
}

func (c *Client) model(req provider.Request) string {
	if req.Model != "" {
		return req.Model
	}
	return c.opts.Model
}

// buildMessages converts the normalized request into OpenAI chat messages.
func buildMessages(req provider.Request) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case "assistant":
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}
	return messages
}
