package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agentplatform/core/agentctx"
	"github.com/agentplatform/core/apitypes"
)

// ExecuteStream runs phases 1–3 synchronously (validation, quota, input
// moderation), then invokes the agent's streaming handler and forwards
// chunks on the returned channel as they arrive. Once the source stream
// closes, the accumulated full text is run through output moderation; a
// block at that point supersedes success even though the client already
// received every chunk — the caller MUST treat the Result delivered on
// the second channel, not the presence of chunks, as the turn's outcome
// for persistence purposes (spec: a blocked accumulated response must not
// be written to session history).
func (p *Pipeline) ExecuteStream(ctx context.Context, agent StreamingAgent, tc *agentctx.Context, msg apitypes.UserMessage) (<-chan apitypes.ResponseChunk, <-chan Result) {
	start := p.now()
	chunks := make(chan apitypes.ResponseChunk)
	results := make(chan Result, 1)

	fail := func(code apitypes.ErrorCode, message string) {
		close(chunks)
		results <- failResult(code, message, start)
		close(results)
	}

	if verr := validateInput(msg); verr != nil {
		fail(apitypes.CodeOf(verr), verr.Error())
		return chunks, results
	}

	if decision, err := p.quota.Check(ctx, tc.UserID(), tc.AgentSlug()); err != nil {
		p.log.Warn(ctx, "quota check failed, failing open", "error", err)
	} else if !decision.Allowed {
		fail(apitypes.ErrQuotaExceeded, decision.Reason)
		return chunks, results
	}

	content := msg.Content
	if decision, err := p.moderation.FilterIn(ctx, content, tc.AgentSlug()); err != nil {
		p.log.Warn(ctx, "input moderation failed, failing open", "error", err)
	} else if decision.Blocked {
		fail(apitypes.ErrModerationBlockedInput, "input rejected by moderation")
		return chunks, results
	} else if decision.Replacement != nil {
		content = *decision.Replacement
	}
	msg.Content = content

	source, startErr := p.startAgentStream(ctx, agent, msg, tc)
	if startErr != nil {
		fail(apitypes.CodeOf(startErr), startErr.Error())
		return chunks, results
	}

	go p.drainStream(ctx, tc, start, source, chunks, results)
	return chunks, results
}

func (p *Pipeline) startAgentStream(ctx context.Context, agent StreamingAgent, msg apitypes.UserMessage, tc *agentctx.Context) (src <-chan apitypes.ResponseChunk, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			p.log.Error(ctx, "agent panicked starting stream", "agent", tc.AgentSlug(), "panic", rec)
			err = apitypes.NewError(apitypes.ErrExecution, fmt.Sprintf("%v", rec))
		}
	}()
	src, err = agent.HandleTurnStream(ctx, msg, tc)
	if err != nil {
		return nil, apitypes.Wrap(apitypes.ErrExecution, err.Error(), err)
	}
	return src, nil
}

func (p *Pipeline) drainStream(ctx context.Context, tc *agentctx.Context, start time.Time, source <-chan apitypes.ResponseChunk, out chan<- apitypes.ResponseChunk, results chan<- Result) {
	defer close(out)
	defer close(results)

	var accumulated strings.Builder
	var finalMeta map[string]any
	for chunk := range source {
		accumulated.WriteString(chunk.Content)
		if chunk.IsFinal {
			finalMeta = chunk.Metadata
		}
		select {
		case out <- chunk:
		case <-ctx.Done():
			results <- failResult(apitypes.ErrCanceled, "turn canceled", start)
			return
		}
	}

	fullText := accumulated.String()
	decision, err := p.moderation.FilterOut(ctx, fullText, tc.AgentSlug())
	if err != nil {
		p.log.Warn(ctx, "output moderation failed, failing open", "error", err)
	} else if decision.Blocked {
		results <- failResult(apitypes.ErrModerationBlockedOutput, "output rejected by moderation", start)
		return
	} else if decision.Replacement != nil {
		fullText = *decision.Replacement
	}

	resp := apitypes.AgentResponse{Content: fullText, Metadata: finalMeta}
	tokensIn, tokensOut := resp.TokensIn(), resp.TokensOut()
	if tokensIn > 0 || tokensOut > 0 {
		if err := p.consumption.Record(ctx, tc.UserID(), tc.AgentSlug(), tokensIn, tokensOut); err != nil {
			p.log.Warn(ctx, "consumption recording failed, failing open", "error", err)
		}
	}

	results <- Result{
		Success:    true,
		Response:   resp,
		DurationMs: time.Since(start).Milliseconds(),
		TokensIn:   tokensIn,
		TokensOut:  tokensOut,
	}
}
