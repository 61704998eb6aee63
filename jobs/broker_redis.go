package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// reserveTimeout bounds BRPOPLPUSH's block; a worker with nothing to do
// polls in this rhythm rather than blocking forever, so it can still
// observe context cancellation between polls.
const reserveTimeout = 5 * time.Second

// ErrNoTask is returned by Reserve when the block window elapsed with
// nothing queued; callers should loop and reserve again.
var ErrNoTask = errors.New("jobs: no task available")

// RedisBroker implements BrokerQueue over a Redis list pair per queue
// name: `{queue}` holds pending tasks, `{queue}:processing` holds tasks
// reserved but not yet acknowledged. BRPOPLPUSH moves a task atomically
// between the two lists, so a worker that crashes mid-processing leaves
// its task recoverable on the processing list rather than losing it —
// the at-least-once delivery spec §4.10 requires. Ack removes the task
// from the processing list; Fail re-queues it at the back of the pending
// list, behind every task already waiting.
type RedisBroker struct {
	rdb *redis.Client
}

var _ BrokerQueue = (*RedisBroker)(nil)

// NewRedisBroker wraps rdb as a BrokerQueue.
func NewRedisBroker(rdb *redis.Client) *RedisBroker {
	return &RedisBroker{rdb: rdb}
}

func processingKey(queue string) string { return queue + ":processing" }

// Enqueue pushes task onto queue's pending list.
func (b *RedisBroker) Enqueue(ctx context.Context, queue string, task Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("jobs: marshal task: %w", err)
	}
	return b.rdb.LPush(ctx, queue, data).Err()
}

// Reserve blocks up to reserveTimeout waiting for a task, atomically
// moving it onto the processing list. Returns ErrNoTask on a timeout.
func (b *RedisBroker) Reserve(ctx context.Context, queue string) (Reservation, error) {
	raw, err := b.rdb.BRPopLPush(ctx, queue, processingKey(queue), reserveTimeout).Result()
	if errors.Is(err, redis.Nil) {
		return Reservation{}, ErrNoTask
	}
	if err != nil {
		return Reservation{}, fmt.Errorf("jobs: reserve: %w", err)
	}

	var task Task
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		// Malformed payload: drop it from the processing list so it does
		// not wedge redelivery forever, and surface the decode error.
		b.rdb.LRem(ctx, processingKey(queue), 1, raw)
		return Reservation{}, fmt.Errorf("jobs: decode reserved task: %w", err)
	}
	return Reservation{Task: task, Opaque: raw}, nil
}

// Ack removes the reservation's raw payload from the processing list.
func (b *RedisBroker) Ack(ctx context.Context, res Reservation) error {
	return b.rdb.LRem(ctx, processingKey(b.queueFromReservation(res)), 1, res.Opaque).Err()
}

// Fail removes the reservation from the processing list and re-queues it
// at the back of the pending list (the end Enqueue pushes onto), so it is
// reserved again after the tasks already waiting.
func (b *RedisBroker) Fail(ctx context.Context, res Reservation) error {
	queue := b.queueFromReservation(res)
	if err := b.rdb.LRem(ctx, processingKey(queue), 1, res.Opaque).Err(); err != nil {
		return err
	}
	return b.rdb.LPush(ctx, queue, res.Opaque).Err()
}

// queueFromReservation recovers the queue name from the task itself;
// RedisBroker always enqueues onto a queue named after the agent slug's
// job class, so the task carries enough information for Ack/Fail to find
// the right processing list without threading the queue name through
// Reservation separately.
func (b *RedisBroker) queueFromReservation(res Reservation) string {
	return QueueName(res.Task.AgentSlug)
}

// QueueName is the single queue-naming convention shared by enqueue and
// worker call sites, so they never drift apart.
func QueueName(agentSlug string) string { return "jobs:" + agentSlug }
