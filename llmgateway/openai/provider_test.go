package openai

import (
	"context"
	"errors"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentplatform/core/llmgateway"
)

type stubCompletionsClient struct {
	lastParams openai.ChatCompletionNewParams
	resp       *openai.ChatCompletion
	err        error
	stream     *ssestream.Stream[openai.ChatCompletionChunk]
}

func (s *stubCompletionsClient) New(_ context.Context, body openai.ChatCompletionNewParams, _ ...option.RequestOption) (*openai.ChatCompletion, error) {
	s.lastParams = body
	return s.resp, s.err
}

func (s *stubCompletionsClient) NewStreaming(_ context.Context, body openai.ChatCompletionNewParams, _ ...option.RequestOption) *ssestream.Stream[openai.ChatCompletionChunk] {
	s.lastParams = body
	if s.stream == nil {
		s.stream = ssestream.NewStream[openai.ChatCompletionChunk](&noopDecoder{}, nil)
	}
	return s.stream
}

type noopDecoder struct{}

func (n *noopDecoder) Event() ssestream.Event { return ssestream.Event{} }
func (n *noopDecoder) Next() bool             { return false }
func (n *noopDecoder) Close() error           { return nil }
func (n *noopDecoder) Err() error             { return nil }

func TestCompleteTranslatesResponseAndUsage(t *testing.T) {
	stub := &stubCompletionsClient{resp: &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: "world"}},
		},
		Usage: openai.CompletionUsage{PromptTokens: 7, CompletionTokens: 4},
	}}
	p := New(stub, "gpt-4o")

	resp, err := p.Complete(context.Background(), llmgateway.Request{
		SystemPrompt: "be terse",
		Prompt:       "hello",
		Temperature:  0.5,
		MaxTokens:    100,
	})
	require.NoError(t, err)
	assert.Equal(t, "world", resp.Text)
	assert.Equal(t, llmgateway.TokenUsage{InputTokens: 7, OutputTokens: 4}, resp.Usage)
	assert.Len(t, stub.lastParams.Messages, 2)
}

func TestCompleteRequiresPrompt(t *testing.T) {
	p := New(&stubCompletionsClient{}, "gpt-4o")
	_, err := p.Complete(context.Background(), llmgateway.Request{})
	assert.Error(t, err)
}

func TestCompletePropagatesSDKError(t *testing.T) {
	stub := &stubCompletionsClient{err: errors.New("rate limited")}
	p := New(stub, "gpt-4o")
	_, err := p.Complete(context.Background(), llmgateway.Request{Prompt: "hi"})
	assert.Error(t, err)
}

func TestStreamDrainsEmptyStreamWithoutError(t *testing.T) {
	stub := &stubCompletionsClient{}
	p := New(stub, "gpt-4o")

	chunks, err := p.Stream(context.Background(), llmgateway.Request{Prompt: "hello"})
	require.NoError(t, err)

	var got []llmgateway.Chunk
	for c := range chunks {
		got = append(got, c)
	}
	require.Len(t, got, 1)
	assert.True(t, got[0].IsFinal)
}
