package llmgateway

import (
	"context"
	"fmt"
	"sync"
)

// Client is the per-turn handle an agent calls through `ctx.llm`. It binds
// a resolved Config to a registry of named Provider implementations and
// records the usage of the last call so the pipeline can read it back for
// consumption accounting after the turn completes.
type Client struct {
	cfg       Config
	providers map[string]Provider

	mu        sync.Mutex
	lastUsage TokenUsage
}

// NewClient binds cfg to the given provider registry (keyed by provider
// slug, e.g. "anthropic", "openai").
func NewClient(cfg Config, providers map[string]Provider) *Client {
	return &Client{cfg: cfg, providers: providers}
}

func (c *Client) provider() (Provider, error) {
	p, ok := c.providers[c.cfg.ProviderSlug]
	if !ok {
		return nil, fmt.Errorf("llmgateway: no provider registered for %q", c.cfg.ProviderSlug)
	}
	return p, nil
}

// Chat performs a single non-streaming completion and returns its text,
// satisfying toolregistry.LLMClient and agentctx's llm capability
// structurally.
func (c *Client) Chat(ctx context.Context, prompt, systemPrompt string, temperature float64, maxTokens int) (string, error) {
	p, err := c.provider()
	if err != nil {
		return "", err
	}
	resp, err := p.Complete(ctx, Request{
		Model:        c.cfg.ModelSlug,
		SystemPrompt: systemPrompt,
		Prompt:       prompt,
		Temperature:  temperature,
		MaxTokens:    maxTokens,
	})
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.lastUsage = resp.Usage
	c.mu.Unlock()
	return resp.Text, nil
}

// Stream performs a streaming completion, returning a channel of text
// deltas. The channel is closed when the stream ends; the final usage
// becomes visible via LastUsage once the channel drains.
func (c *Client) Stream(ctx context.Context, prompt, systemPrompt string, temperature float64, maxTokens int) (<-chan string, error) {
	p, err := c.provider()
	if err != nil {
		return nil, err
	}
	chunks, err := p.Stream(ctx, Request{
		Model:        c.cfg.ModelSlug,
		SystemPrompt: systemPrompt,
		Prompt:       prompt,
		Temperature:  temperature,
		MaxTokens:    maxTokens,
	})
	if err != nil {
		return nil, err
	}

	out := make(chan string)
	go func() {
		defer close(out)
		for chunk := range chunks {
			if chunk.IsFinal {
				c.mu.Lock()
				c.lastUsage = chunk.Usage
				c.mu.Unlock()
			}
			if chunk.Text != "" {
				select {
				case out <- chunk.Text:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// LastUsage returns the token usage recorded by the most recent Chat or
// Stream call, so the pipeline can read it post-call for consumption
// accounting (spec.md §4.6).
func (c *Client) LastUsage() TokenUsage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUsage
}
