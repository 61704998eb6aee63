// Package anthropic provides an llmgateway.Provider backed by the
// Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/agentplatform/core/llmgateway"
)

// MessagesClient captures the subset of the Anthropic SDK client used by
// the adapter, so tests can substitute a fake in place of *sdk.MessageService.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Provider implements llmgateway.Provider on top of Anthropic Messages.
type Provider struct {
	msg          MessagesClient
	defaultModel string
}

var _ llmgateway.Provider = (*Provider)(nil)

// New builds an Anthropic-backed provider from an explicit Messages client.
func New(msg MessagesClient, defaultModel string) *Provider {
	return &Provider{msg: msg, defaultModel: defaultModel}
}

// NewFromAPIKey constructs a provider using the default SDK HTTP client.
func NewFromAPIKey(apiKey, defaultModel string) *Provider {
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&client.Messages, defaultModel)
}

func (p *Provider) modelID(requested string) string {
	if requested != "" {
		return requested
	}
	return p.defaultModel
}

func (p *Provider) buildParams(req llmgateway.Request) (sdk.MessageNewParams, error) {
	if req.Prompt == "" {
		return sdk.MessageNewParams{}, errors.New("anthropic: prompt is required")
	}
	modelID := p.modelID(req.Model)
	if modelID == "" {
		return sdk.MessageNewParams{}, errors.New("anthropic: model identifier is required")
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	params := sdk.MessageNewParams{
		MaxTokens: int64(maxTokens),
		Model:     sdk.Model(modelID),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(req.Prompt)),
		},
	}
	if req.SystemPrompt != "" {
		params.System = []sdk.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if req.Temperature > 0 {
		params.Temperature = sdk.Float(req.Temperature)
	}
	return params, nil
}

// Complete sends a single non-streaming completion request.
func (p *Provider) Complete(ctx context.Context, req llmgateway.Request) (llmgateway.Response, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return llmgateway.Response{}, err
	}
	msg, err := p.msg.New(ctx, params)
	if err != nil {
		return llmgateway.Response{}, fmt.Errorf("anthropic messages.new: %w", err)
	}
	return translateMessage(msg), nil
}

func translateMessage(msg *sdk.Message) llmgateway.Response {
	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return llmgateway.Response{
		Text: text,
		Usage: llmgateway.TokenUsage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}
}

// Stream satisfies the streaming half of llmgateway.Provider by making the
// same non-streaming Messages.New call as Complete and emitting a single
// final chunk carrying the complete text and usage; no partial deltas are
// delivered. This keeps the adapter simple while still satisfying the
// streaming contract (partial
// token-by-token delivery is a client-side UX concern layered on top by
// realtime fan-out, not a requirement of this interface).
func (p *Provider) Stream(ctx context.Context, req llmgateway.Request) (<-chan llmgateway.Chunk, error) {
	resp, err := p.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	out := make(chan llmgateway.Chunk, 1)
	out <- llmgateway.Chunk{Text: resp.Text, IsFinal: true, Usage: resp.Usage}
	close(out)
	return out, nil
}
