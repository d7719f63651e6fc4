package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/user/resizebot/internal/types"
)

// laneBuffer is the per-conversation backlog. A conversation that is this
// far behind is dropping events, not queueing them.
const laneBuffer = 100

// Queue manages per-conversation lanes with a global concurrency
// semaphore. Each conversation gets its own FIFO channel (lane) so that
// events within a conversation are processed sequentially and in arrival
// order, while the semaphore limits the total number of concurrent
// processors across all conversations.
type Queue struct {
	lanes     map[types.ConversationID]chan types.Event
	semaphore *semaphore.Weighted
	processor func(context.Context, types.Event)
	active    atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewQueue creates a Queue that allows up to maxConcurrent events to be
// processed simultaneously across all conversation lanes.
func NewQueue(maxConcurrent int64) *Queue {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Queue{
		lanes:     make(map[types.ConversationID]chan types.Event),
		semaphore: semaphore.NewWeighted(maxConcurrent),
	}
}

// Start initialises the queue's context. Must be called before Enqueue.
func (q *Queue) Start(ctx context.Context) {
	q.ctx, q.cancel = context.WithCancel(ctx)
}

// Stop cancels the queue context, closes all lanes, and waits for
// in-flight processors to finish.
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
	q.mu.Lock()
	for _, lane := range q.lanes {
		close(lane)
	}
	q.lanes = make(map[types.ConversationID]chan types.Event)
	q.mu.Unlock()
	q.wg.Wait()
}

// Enqueue adds an event to its conversation's lane, creating the lane
// (and its goroutine) on first use. Returns an error if the lane's
// buffer is full.
func (q *Queue) Enqueue(ev types.Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	lane, exists := q.lanes[ev.Conversation]
	if !exists {
		lane = make(chan types.Event, laneBuffer)
		q.lanes[ev.Conversation] = lane
		q.wg.Add(1)
		go q.processLane(ev.Conversation, lane)
	}

	select {
	case lane <- ev:
		return nil
	default:
		return fmt.Errorf("queue full for conversation %s", ev.Conversation)
	}
}

// processLane drains a single conversation lane, acquiring a semaphore
// slot before running the processor synchronously. This keeps strict
// FIFO ordering within a conversation while the semaphore limits
// cross-conversation parallelism.
func (q *Queue) processLane(conv types.ConversationID, lane chan types.Event) {
	defer q.wg.Done()
	for {
		select {
		case ev, ok := <-lane:
			if !ok {
				return
			}
			if err := q.semaphore.Acquire(q.ctx, 1); err != nil {
				return
			}
			if q.processor != nil {
				q.active.Add(1)
				q.processor(q.ctx, ev)
				q.active.Add(-1)
			}
			q.semaphore.Release(1)
		case <-q.ctx.Done():
			return
		}
	}
}

// WaitIdle blocks until no events are actively being processed, or the
// timeout expires. Returns true if idle, false if timed out.
func (q *Queue) WaitIdle(timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if q.active.Load() == 0 {
			return true
		}
		select {
		case <-deadline:
			return false
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// SetProcessor sets the function invoked for each dequeued event.
func (q *Queue) SetProcessor(fn func(context.Context, types.Event)) {
	q.processor = fn
}
