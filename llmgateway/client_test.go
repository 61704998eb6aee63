package llmgateway

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	resp      Response
	err       error
	chunks    []Chunk
	streamErr error
	lastReq   Request
}

func (s *stubProvider) Complete(_ context.Context, req Request) (Response, error) {
	s.lastReq = req
	return s.resp, s.err
}

func (s *stubProvider) Stream(_ context.Context, req Request) (<-chan Chunk, error) {
	s.lastReq = req
	if s.streamErr != nil {
		return nil, s.streamErr
	}
	out := make(chan Chunk, len(s.chunks))
	for _, c := range s.chunks {
		out <- c
	}
	close(out)
	return out, nil
}

func TestClientChatReturnsTextAndRecordsUsage(t *testing.T) {
	provider := &stubProvider{resp: Response{Text: "hello", Usage: TokenUsage{InputTokens: 3, OutputTokens: 5}}}
	client := NewClient(Config{ProviderSlug: "anthropic", ModelSlug: "claude-3-5"}, map[string]Provider{"anthropic": provider})

	text, err := client.Chat(context.Background(), "hi", "be nice", 0.2, 100)
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.Equal(t, TokenUsage{InputTokens: 3, OutputTokens: 5}, client.LastUsage())
	assert.Equal(t, "claude-3-5", provider.lastReq.Model)
}

func TestClientChatUnknownProviderErrors(t *testing.T) {
	client := NewClient(Config{ProviderSlug: "missing"}, map[string]Provider{})
	_, err := client.Chat(context.Background(), "hi", "", 0, 0)
	assert.Error(t, err)
}

func TestClientStreamForwardsDeltasAndFinalUsage(t *testing.T) {
	provider := &stubProvider{chunks: []Chunk{
		{Text: "he"},
		{Text: "llo"},
		{IsFinal: true, Usage: TokenUsage{InputTokens: 1, OutputTokens: 2}},
	}}
	client := NewClient(Config{ProviderSlug: "openai"}, map[string]Provider{"openai": provider})

	out, err := client.Stream(context.Background(), "hi", "", 0, 0)
	require.NoError(t, err)

	var got string
	for chunk := range out {
		got += chunk
	}
	assert.Equal(t, "hello", got)
	assert.Equal(t, TokenUsage{InputTokens: 1, OutputTokens: 2}, client.LastUsage())
}

func TestClientStreamPropagatesProviderError(t *testing.T) {
	provider := &stubProvider{streamErr: errors.New("boom")}
	client := NewClient(Config{ProviderSlug: "openai"}, map[string]Provider{"openai": provider})
	_, err := client.Stream(context.Background(), "hi", "", 0, 0)
	assert.Error(t, err)
}
