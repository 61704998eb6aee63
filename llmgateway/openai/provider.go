// Package openai provides an llmgateway.Provider backed by the OpenAI
// Chat Completions API.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"

	"github.com/agentplatform/core/llmgateway"
)

// CompletionsClient captures the subset of the OpenAI SDK used by the
// adapter, so tests can substitute a fake for openai.ChatCompletionService.
type CompletionsClient interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
	NewStreaming(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) *ssestream.Stream[openai.ChatCompletionChunk]
}

// sdkCompletions adapts *openai.ChatCompletionService (the real SDK type) to
// CompletionsClient.
type sdkCompletions struct {
	svc *openai.ChatCompletionService
}

func (s *sdkCompletions) New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	return s.svc.New(ctx, body, opts...)
}

func (s *sdkCompletions) NewStreaming(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) *ssestream.Stream[openai.ChatCompletionChunk] {
	return s.svc.NewStreaming(ctx, body, opts...)
}

// Provider implements llmgateway.Provider on top of OpenAI Chat Completions.
type Provider struct {
	completions  CompletionsClient
	defaultModel string
}

var _ llmgateway.Provider = (*Provider)(nil)

// New builds an OpenAI-backed provider from an explicit completions client.
func New(completions CompletionsClient, defaultModel string) *Provider {
	return &Provider{completions: completions, defaultModel: defaultModel}
}

// NewFromAPIKey constructs a provider using the default SDK HTTP client.
func NewFromAPIKey(apiKey, defaultModel string) *Provider {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return New(&sdkCompletions{&client.Chat.Completions}, defaultModel)
}

func (p *Provider) modelID(requested string) string {
	if requested != "" {
		return requested
	}
	return p.defaultModel
}

func (p *Provider) buildParams(req llmgateway.Request) (openai.ChatCompletionNewParams, error) {
	if req.Prompt == "" {
		return openai.ChatCompletionNewParams{}, errors.New("openai: prompt is required")
	}
	modelID := p.modelID(req.Model)
	if modelID == "" {
		return openai.ChatCompletionNewParams{}, errors.New("openai: model identifier is required")
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(modelID),
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	return params, nil
}

// Complete sends a single non-streaming completion request.
func (p *Provider) Complete(ctx context.Context, req llmgateway.Request) (llmgateway.Response, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return llmgateway.Response{}, err
	}
	resp, err := p.completions.New(ctx, params)
	if err != nil {
		return llmgateway.Response{}, fmt.Errorf("openai chat.completions.new: %w", err)
	}
	return translateCompletion(resp), nil
}

func translateCompletion(resp *openai.ChatCompletion) llmgateway.Response {
	var text string
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
	}
	return llmgateway.Response{
		Text: text,
		Usage: llmgateway.TokenUsage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
	}
}

// Stream performs a streaming completion, forwarding each delta as it
// arrives and a final chunk carrying accumulated usage once the SDK's
// server-sent event stream closes.
func (p *Provider) Stream(ctx context.Context, req llmgateway.Request) (<-chan llmgateway.Chunk, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, err
	}
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{IncludeUsage: openai.Bool(true)}

	stream := p.completions.NewStreaming(ctx, params)
	out := make(chan llmgateway.Chunk)
	go func() {
		defer close(out)
		acc := openai.ChatCompletionAccumulator{}
		for stream.Next() {
			chunk := stream.Current()
			acc.AddChunk(chunk)
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			select {
			case out <- llmgateway.Chunk{Text: delta}:
			case <-ctx.Done():
				return
			}
		}
		usage := llmgateway.TokenUsage{
			InputTokens:  int(acc.Usage.PromptTokens),
			OutputTokens: int(acc.Usage.CompletionTokens),
		}
		out <- llmgateway.Chunk{IsFinal: true, Usage: usage}
	}()
	return out, nil
}
