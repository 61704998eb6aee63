// Package llmgateway implements the LLM gateway (spec C6): per-agent
// provider/model resolution, a provider-agnostic chat/stream contract, and
// structured-output extraction. Concrete providers live in subpackages
// (anthropic, openai); this package never imports either SDK directly.
package llmgateway

import "context"

// TokenUsage records prompt/completion token counts reported by a provider.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
}

// Request is the normalized shape every Provider implementation accepts.
type Request struct {
	Model        string
	SystemPrompt string
	Prompt       string
	Temperature  float64
	MaxTokens    int
}

// Response is a non-streaming completion result.
type Response struct {
	Text  string
	Usage TokenUsage
}

// Chunk is one fragment of a streaming completion.
type Chunk struct {
	Text    string
	IsFinal bool
	Usage   TokenUsage // only populated on the final chunk, if known
}

// Provider is the contract a concrete LLM backend implements. Modeled on
// the teacher's runtime/agent/model.Client, narrowed to the plain-text
// chat/stream contract this platform's agents actually need (no
// tool-calling loop at this layer — tool calls are a registry concern,
// not a model-client concern, per spec.md §4.6).
type Provider interface {
	Complete(ctx context.Context, req Request) (Response, error)
	Stream(ctx context.Context, req Request) (<-chan Chunk, error)
}
