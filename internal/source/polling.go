package source

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/user/resizebot/internal/types"
)

// Poller pulls updates with repeated long-poll calls, tracking the offset
// cursor itself. Transient failures back off exponentially and retry
// forever; an invalid cursor resets to zero and continues. Only explicit
// cancellation stops the loop.
type Poller struct {
	client types.RemoteClient
	retry  *RetryPolicy
	events chan types.Event
	log    *slog.Logger
}

func NewPoller(client types.RemoteClient, retry *RetryPolicy, log *slog.Logger) *Poller {
	if retry == nil {
		retry = DefaultRetryPolicy()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Poller{
		client: client,
		retry:  retry,
		events: make(chan types.Event, 64),
		log:    log.With("component", "source.polling"),
	}
}

func (p *Poller) Events() <-chan types.Event {
	return p.events
}

// Run drives the poll loop until ctx is cancelled, then closes Events.
func (p *Poller) Run(ctx context.Context) error {
	defer close(p.events)

	offset := 0
	attempt := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		events, next, err := p.client.Poll(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, types.ErrBadCursor) {
				p.log.Warn("poll cursor rejected, resetting", "offset", offset)
				offset = 0
				continue
			}
			attempt++
			delay := p.retry.NextDelay(attempt)
			p.log.Warn("long poll failed, backing off", "attempt", attempt, "delay", delay, "error", err)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		attempt = 0
		offset = next
		for _, ev := range events {
			select {
			case p.events <- ev:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

var _ types.EventSource = (*Poller)(nil)
