// Package pipeline implements the execution pipeline (spec C9): the
// center of the design. Every turn passes through the same ordered,
// non-bypassable phases — input validation, quota check, input
// moderation, agent invocation, output moderation, consumption
// accounting — regardless of which agent runs or whether the call is
// synchronous or streaming.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agentplatform/core/agentctx"
	"github.com/agentplatform/core/apitypes"
	"github.com/agentplatform/core/telemetry"
)

// Agent is the narrow capability the pipeline needs from an agent: just
// enough to invoke a turn. Defined locally (not imported from the agents
// package) so the dependency edge runs agents → pipeline, never back;
// agents.Agent satisfies this structurally.
type Agent interface {
	HandleTurn(ctx context.Context, msg apitypes.UserMessage, tc *agentctx.Context) (apitypes.AgentResponse, error)
}

// StreamingAgent additionally offers a streaming turn. agents.StreamingAgent
// satisfies this structurally.
type StreamingAgent interface {
	Agent
	HandleTurnStream(ctx context.Context, msg apitypes.UserMessage, tc *agentctx.Context) (<-chan apitypes.ResponseChunk, error)
}

// QuotaDecision is the outcome of a quota check.
type QuotaDecision struct {
	Allowed bool
	Reason  string
}

// QuotaService is the collaborator interface behind pipeline phase 2.
type QuotaService interface {
	Check(ctx context.Context, userID, agentSlug string) (QuotaDecision, error)
}

// ModerationDecision is the outcome of a moderation filter call. A nil
// Replacement means no substitution; Blocked and Replacement are
// independent (a call may rewrite without blocking).
type ModerationDecision struct {
	Blocked     bool
	Replacement *string
}

// Moderation is the collaborator interface behind pipeline phases 3 and 5.
type Moderation interface {
	FilterIn(ctx context.Context, content, agentSlug string) (ModerationDecision, error)
	FilterOut(ctx context.Context, content, agentSlug string) (ModerationDecision, error)
}

// ConsumptionService is the collaborator interface behind pipeline phase 6.
type ConsumptionService interface {
	Record(ctx context.Context, userID, agentSlug string, tokensIn, tokensOut int) error
}

// Result is the outcome of one turn, always produced regardless of which
// phase failed.
type Result struct {
	Success      bool
	Response     apitypes.AgentResponse
	ErrorCode    apitypes.ErrorCode
	ErrorMessage string
	DurationMs   int64
	TokensIn     int
	TokensOut    int
}

func failResult(code apitypes.ErrorCode, message string, start time.Time) Result {
	return Result{
		Success:      false,
		ErrorCode:    code,
		ErrorMessage: message,
		DurationMs:   time.Since(start).Milliseconds(),
	}
}

// Pipeline wraps agent invocation with the governance phases. The zero
// value is not useful; construct with New.
type Pipeline struct {
	quota       QuotaService
	moderation  Moderation
	consumption ConsumptionService

	log     telemetry.Logger
	metrics telemetry.Metrics
	now     func() time.Time
}

// Option configures a Pipeline at construction time.
type Option func(*Pipeline)

// WithQuota overrides the quota collaborator. Defaults to always-allow.
func WithQuota(q QuotaService) Option { return func(p *Pipeline) { p.quota = q } }

// WithModeration overrides the moderation collaborator. Defaults to
// never-block, never-rewrite.
func WithModeration(m Moderation) Option { return func(p *Pipeline) { p.moderation = m } }

// WithConsumption overrides the consumption collaborator. Defaults to a
// no-op (discard token usage).
func WithConsumption(c ConsumptionService) Option { return func(p *Pipeline) { p.consumption = c } }

// WithLogger overrides the pipeline's logger. Defaults to a no-op.
func WithLogger(l telemetry.Logger) Option { return func(p *Pipeline) { p.log = l } }

// WithMetrics overrides the pipeline's metrics sink. Defaults to a no-op.
func WithMetrics(m telemetry.Metrics) Option { return func(p *Pipeline) { p.metrics = m } }

// WithClock overrides the pipeline's time source. Tests use this for
// deterministic duration assertions.
func WithClock(now func() time.Time) Option { return func(p *Pipeline) { p.now = now } }

// New builds a Pipeline. Any collaborator left unset defaults to a
// permissive no-op, matching the fail-open posture the pipeline applies
// to collaborator failures at runtime.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		quota:       alwaysAllowQuota{},
		moderation:  neverBlockModeration{},
		consumption: discardConsumption{},
		log:         telemetry.NewNoopLogger(),
		metrics:     telemetry.NewNoopMetrics(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type alwaysAllowQuota struct{}

func (alwaysAllowQuota) Check(context.Context, string, string) (QuotaDecision, error) {
	return QuotaDecision{Allowed: true}, nil
}

type neverBlockModeration struct{}

func (neverBlockModeration) FilterIn(context.Context, string, string) (ModerationDecision, error) {
	return ModerationDecision{}, nil
}

func (neverBlockModeration) FilterOut(context.Context, string, string) (ModerationDecision, error) {
	return ModerationDecision{}, nil
}

type discardConsumption struct{}

func (discardConsumption) Record(context.Context, string, string, int, int) error { return nil }

func validateInput(msg apitypes.UserMessage) error {
	if msg.Content == "" && len(msg.Attachments) == 0 {
		return apitypes.NewError(apitypes.ErrValidation, "content must be non-empty unless an attachment is present")
	}
	if len(msg.Content) > apitypes.MaxContentLength {
		return apitypes.NewError(apitypes.ErrValidation, fmt.Sprintf("content exceeds %d characters", apitypes.MaxContentLength))
	}
	return nil
}

// Execute runs one synchronous turn through all seven phases. It has no
// error return: every agent- or collaborator-level failure is reported in
// the returned Result.
func (p *Pipeline) Execute(ctx context.Context, agent Agent, tc *agentctx.Context, msg apitypes.UserMessage) Result {
	start := p.now()

	if verr := validateInput(msg); verr != nil {
		return failResult(apitypes.CodeOf(verr), verr.Error(), start)
	}

	if decision, err := p.quota.Check(ctx, tc.UserID(), tc.AgentSlug()); err != nil {
		p.log.Warn(ctx, "quota check failed, failing open", "error", err)
	} else if !decision.Allowed {
		return failResult(apitypes.ErrQuotaExceeded, decision.Reason, start)
	}

	content := msg.Content
	if decision, err := p.moderation.FilterIn(ctx, content, tc.AgentSlug()); err != nil {
		p.log.Warn(ctx, "input moderation failed, failing open", "error", err)
	} else if decision.Blocked {
		return failResult(apitypes.ErrModerationBlockedInput, "input rejected by moderation", start)
	} else if decision.Replacement != nil {
		content = *decision.Replacement
	}
	msg.Content = content

	resp, runErr := p.invokeAgent(ctx, agent, msg, tc)
	if runErr != nil {
		return failResult(apitypes.CodeOf(runErr), runErr.Error(), start)
	}

	outContent := resp.Content
	if decision, err := p.moderation.FilterOut(ctx, outContent, tc.AgentSlug()); err != nil {
		p.log.Warn(ctx, "output moderation failed, failing open", "error", err)
	} else if decision.Blocked {
		return failResult(apitypes.ErrModerationBlockedOutput, "output rejected by moderation", start)
	} else if decision.Replacement != nil {
		resp.Content = *decision.Replacement
	}

	tokensIn, tokensOut := resp.TokensIn(), resp.TokensOut()
	if tokensIn > 0 || tokensOut > 0 {
		if err := p.consumption.Record(ctx, tc.UserID(), tc.AgentSlug(), tokensIn, tokensOut); err != nil {
			p.log.Warn(ctx, "consumption recording failed, failing open", "error", err)
		}
	}

	return Result{
		Success:    true,
		Response:   resp,
		DurationMs: time.Since(start).Milliseconds(),
		TokensIn:   tokensIn,
		TokensOut:  tokensOut,
	}
}

// invokeAgent calls HandleTurn, recovering a panic into EXECUTION_ERROR and
// mapping context cancellation/deadlines to CANCELED/TIMEOUT, matching the
// caught-exception contract the rest of the platform applies uniformly. An
// error that already carries a platform code (e.g. CYCLE_DETECTED from a
// sub-agent call) keeps it; any other error becomes EXECUTION_ERROR.
func (p *Pipeline) invokeAgent(ctx context.Context, agent Agent, msg apitypes.UserMessage, tc *agentctx.Context) (resp apitypes.AgentResponse, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			p.log.Error(ctx, "agent panicked", "agent", tc.AgentSlug(), "panic", rec)
			err = apitypes.NewError(apitypes.ErrExecution, fmt.Sprintf("%v", rec))
		}
	}()

	resp, runErr := agent.HandleTurn(ctx, msg, tc)
	if runErr != nil {
		switch {
		case errors.Is(runErr, context.Canceled):
			return apitypes.AgentResponse{}, apitypes.Wrap(apitypes.ErrCanceled, "turn canceled", runErr)
		case errors.Is(runErr, context.DeadlineExceeded):
			return apitypes.AgentResponse{}, apitypes.Wrap(apitypes.ErrTimeout, "turn exceeded its deadline", runErr)
		default:
			p.log.Error(ctx, "agent returned error", "agent", tc.AgentSlug(), "error", runErr)
			if apitypes.CodeOf(runErr) != "" {
				return apitypes.AgentResponse{}, runErr
			}
			return apitypes.AgentResponse{}, apitypes.Wrap(apitypes.ErrExecution, runErr.Error(), runErr)
		}
	}
	return resp, nil
}
