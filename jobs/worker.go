package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/agentplatform/core/agentctx"
	"github.com/agentplatform/core/agents"
	"github.com/agentplatform/core/apitypes"
	"github.com/agentplatform/core/telemetry"
)

var _ agentctx.ProgressPublisher = (*progressPublisher)(nil)

// Worker drains a BrokerQueue and runs each task through an agents.Engine,
// publishing progress and streamed content on Publisher as it goes
// (spec §4.10).
type Worker struct {
	broker    BrokerQueue
	store     Store
	engine    *agents.Engine
	publisher Publisher

	log     telemetry.Logger
	metrics telemetry.Metrics
	now     func() time.Time
}

// WorkerOption configures a Worker at construction time.
type WorkerOption func(*Worker)

// WithWorkerLogger overrides the worker's logger. Defaults to a no-op.
func WithWorkerLogger(l telemetry.Logger) WorkerOption { return func(w *Worker) { w.log = l } }

// WithWorkerMetrics overrides the worker's metrics sink. Defaults to a no-op.
func WithWorkerMetrics(m telemetry.Metrics) WorkerOption { return func(w *Worker) { w.metrics = m } }

// WithWorkerClock overrides the worker's time source. Tests use this for
// deterministic envelope timestamps.
func WithWorkerClock(now func() time.Time) WorkerOption { return func(w *Worker) { w.now = now } }

// NewWorker binds the collaborators a worker needs to drain a queue.
func NewWorker(broker BrokerQueue, store Store, engine *agents.Engine, publisher Publisher, opts ...WorkerOption) *Worker {
	w := &Worker{
		broker:    broker,
		store:     store,
		engine:    engine,
		publisher: publisher,
		log:       telemetry.NewNoopLogger(),
		metrics:   telemetry.NewNoopMetrics(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Submit creates the durable job record in the queued state and enqueues
// the task, returning the record the caller hands back to its client as
// the job id to poll/subscribe on.
func (w *Worker) Submit(ctx context.Context, task Task) (apitypes.Job, error) {
	if task.JobID == "" {
		task.JobID = uuid.NewString()
	}
	job := apitypes.Job{
		JobID:     task.JobID,
		Status:    apitypes.JobQueued,
		UserID:    task.UserID,
		AgentSlug: task.AgentSlug,
		SessionID: task.SessionID,
		CreatedAt: w.now(),
	}
	if err := w.store.Create(ctx, job); err != nil {
		return apitypes.Job{}, err
	}
	if err := w.broker.Enqueue(ctx, QueueName(task.AgentSlug), task); err != nil {
		return apitypes.Job{}, err
	}
	return job, nil
}

// Run drains queue until ctx is canceled, handling one task at a time —
// each job is a cooperative single-threaded execution of one turn (spec
// §5 "Scheduling"); callers that want parallelism run multiple workers.
func (w *Worker) Run(ctx context.Context, queue string) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		res, err := w.broker.Reserve(ctx, queue)
		if errors.Is(err, ErrNoTask) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.log.Error(ctx, "reserve failed", "queue", queue, "error", err)
			continue
		}
		w.handle(ctx, res)
	}
}

func (w *Worker) handle(ctx context.Context, res Reservation) {
	task := res.Task

	// At-least-once delivery: a redelivered task whose terminal record
	// already exists is skipped rather than re-executed (spec §4.10).
	if job, ok, err := w.store.Get(ctx, task.JobID); err == nil && ok && job.Status.Terminal() {
		_ = w.broker.Ack(ctx, res)
		return
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if task.MaxDurationMs > 0 {
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(task.MaxDurationMs)*time.Millisecond)
		defer cancel()
	}

	if err := w.store.SetStatus(runCtx, task.JobID, apitypes.JobRunning); err != nil {
		w.log.Warn(runCtx, "failed to persist running status", "job_id", task.JobID, "error", err)
	}
	w.publish(runCtx, task.JobID, apitypes.JobRunning, nil, "")

	progress := &progressPublisher{pub: w.publisher, jobID: task.JobID, now: w.now}
	opt := agentctx.WithProgress(progress)

	var (
		status   apitypes.JobStatus
		response *apitypes.AgentResponse
		errCode  apitypes.ErrorCode
		errMsg   string
	)

	if task.Stream {
		status, response, errCode, errMsg = w.runStreaming(runCtx, task, opt)
	} else {
		status, response, errCode, errMsg = w.runSynchronous(runCtx, task, opt)
	}

	if runCtx.Err() != nil && status != apitypes.JobCompleted {
		status = apitypes.JobFailed
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			errCode, errMsg = apitypes.ErrTimeout, "job exceeded its max duration"
		} else {
			errCode, errMsg = apitypes.ErrCanceled, "job canceled"
		}
	}

	terminalAt := w.now()
	if err := w.store.SetTerminal(ctx, task.JobID, status, response, errCode, errMsg, terminalAt); err != nil {
		w.log.Warn(ctx, "failed to persist terminal status", "job_id", task.JobID, "error", err)
	}
	w.publish(ctx, task.JobID, status, nil, errMsg)

	if err := w.broker.Ack(ctx, res); err != nil {
		w.log.Warn(ctx, "failed to ack task", "job_id", task.JobID, "error", err)
	}
}

func (w *Worker) runSynchronous(ctx context.Context, task Task, opt agentctx.Option) (apitypes.JobStatus, *apitypes.AgentResponse, apitypes.ErrorCode, string) {
	result, _, err := w.engine.Execute(ctx, task.AgentSlug, task.UserID, task.SessionID, task.WorkspaceID, task.Lang, task.Message, opt)
	if err != nil {
		code := apitypes.CodeOf(err)
		if code == "" {
			code = apitypes.ErrExecution
		}
		return apitypes.JobFailed, nil, code, err.Error()
	}
	if !result.Success {
		return apitypes.JobFailed, nil, result.ErrorCode, result.ErrorMessage
	}
	resp := result.Response
	return apitypes.JobCompleted, &resp, "", ""
}

func (w *Worker) runStreaming(ctx context.Context, task Task, opt agentctx.Option) (apitypes.JobStatus, *apitypes.AgentResponse, apitypes.ErrorCode, string) {
	chunks, results, _, err := w.engine.ExecuteStream(ctx, task.AgentSlug, task.UserID, task.SessionID, task.WorkspaceID, task.Lang, task.Message, opt)
	if err != nil {
		code := apitypes.CodeOf(err)
		if code == "" {
			code = apitypes.ErrExecution
		}
		return apitypes.JobFailed, nil, code, err.Error()
	}

	w.publish(ctx, task.JobID, apitypes.JobStreaming, nil, "")
	for chunk := range chunks {
		env := apitypes.StreamEnvelope{
			JobID:     task.JobID,
			Content:   chunk.Content,
			IsFinal:   chunk.IsFinal,
			Timestamp: w.now(),
		}
		if err := w.publisher.PublishStream(ctx, env); err != nil {
			w.log.Warn(ctx, "failed to publish stream chunk", "job_id", task.JobID, "error", err)
		}
	}

	result := <-results
	if !result.Success {
		return apitypes.JobFailed, nil, result.ErrorCode, result.ErrorMessage
	}
	resp := result.Response
	return apitypes.JobCompleted, &resp, "", ""
}

func (w *Worker) publish(ctx context.Context, jobID string, status apitypes.JobStatus, progress *int, message string) {
	env := apitypes.JobEnvelope{
		JobID:     jobID,
		Status:    status,
		Progress:  progress,
		Message:   message,
		Timestamp: w.now(),
	}
	if err := w.publisher.PublishJob(ctx, env); err != nil {
		w.log.Warn(ctx, "failed to publish job envelope", "job_id", jobID, "status", status, "error", err)
	}
}
