// Package dispatch consumes the inbound event stream, applies each event
// to its conversation's state machine, and executes the resulting
// actions. Transitions commit inside the session store's per-conversation
// critical section; actions — network calls included — run outside it, so
// a slow pipeline on one conversation never blocks another.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/user/resizebot/internal/fsm"
	"github.com/user/resizebot/internal/pipeline"
	"github.com/user/resizebot/internal/session"
	"github.com/user/resizebot/internal/types"
)

// User-facing apologies, chosen by pipeline failure kind.
const (
	msgNoMedia      = "I couldn't find an image in that message."
	msgCantDecode   = "I couldn't read that as an image. Try a PNG or JPEG."
	msgProcessError = "Couldn't process image."
)

// Runner executes one media pipeline invocation.
type Runner interface {
	Run(ctx context.Context, conv types.ConversationID, ref types.FileRef) error
}

// Dispatcher routes events through the state machine, one event per
// conversation at a time. Platform communication failures are logged and
// skipped; they never stop the loop.
type Dispatcher struct {
	sessions *session.Store
	client   types.RemoteClient
	pipe     Runner
	queue    *Queue
	log      *slog.Logger
}

func New(sessions *session.Store, client types.RemoteClient, pipe Runner, maxConcurrent int64, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	d := &Dispatcher{
		sessions: sessions,
		client:   client,
		pipe:     pipe,
		queue:    NewQueue(maxConcurrent),
		log:      log.With("component", "dispatch"),
	}
	d.queue.SetProcessor(d.process)
	return d
}

// Start initialises the lane queue. Must be called before Consume.
func (d *Dispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop drains the queue and waits for in-flight work.
func (d *Dispatcher) Stop() {
	d.queue.Stop()
}

// WaitIdle blocks until no event is being processed or the timeout
// expires. Used at shutdown to give in-flight pipeline runs a bounded
// grace period before they are cut off.
func (d *Dispatcher) WaitIdle(timeout time.Duration) bool {
	return d.queue.WaitIdle(timeout)
}

// Consume pulls events from the source's channel until it closes or ctx
// is cancelled. Events that cannot be enqueued (lane backlog full) are
// dropped with a log entry.
func (d *Dispatcher) Consume(ctx context.Context, events <-chan types.Event) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := d.queue.Enqueue(ev); err != nil {
				d.log.Error("dropping event", "conversation", ev.Conversation, "kind", ev.Kind, "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// process handles one dequeued event: commit the transition under the
// conversation's lock, then execute the actions outside it.
func (d *Dispatcher) process(ctx context.Context, ev types.Event) {
	var actions []fsm.Action
	next := d.sessions.Apply(ev.Conversation, func(cur types.SessionState) types.SessionState {
		state, acts := fsm.Transition(cur, ev)
		actions = acts
		return state
	})
	d.log.Debug("transition applied", "conversation", ev.Conversation, "event", ev.Kind, "next_state", next)

	for _, action := range actions {
		switch action.Kind {
		case fsm.ActionReply:
			if err := d.client.SendText(ctx, ev.Conversation, action.Text); err != nil {
				d.log.Error("send reply failed", "conversation", ev.Conversation, "error", err)
			}
		case fsm.ActionResize:
			d.runPipeline(ctx, ev.Conversation, action.File)
		}
	}
}

// runPipeline executes one media run and reports the outcome to the user.
// Success needs no extra message — the uploaded document is the reply.
// On failure an apology is sent; if sending the apology itself fails,
// that is logged loudly and the turn is abandoned, never retried.
func (d *Dispatcher) runPipeline(ctx context.Context, conv types.ConversationID, ref types.FileRef) {
	err := d.pipe.Run(ctx, conv, ref)
	if err == nil {
		return
	}
	d.log.Warn("pipeline run failed", "conversation", conv, "error", err)

	if serr := d.client.SendText(ctx, conv, apologyFor(err)); serr != nil {
		d.log.Error("apology undeliverable, abandoning turn", "conversation", conv, "error", serr)
	}
}

func apologyFor(err error) string {
	switch {
	case errors.Is(err, pipeline.ErrNoMedia):
		return msgNoMedia
	case errors.Is(err, pipeline.ErrDecode):
		return msgCantDecode
	default:
		return msgProcessError
	}
}
