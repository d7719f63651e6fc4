package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/user/resizebot/internal/types"
)

// scriptedClient returns one scripted poll result per call, then blocks
// empty. It records the offsets it was asked for.
type scriptedClient struct {
	mu      sync.Mutex
	script  []pollResult
	call    int
	offsets []int
}

type pollResult struct {
	events []types.Event
	next   int
	err    error
}

func (s *scriptedClient) Poll(ctx context.Context, offset int) ([]types.Event, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offsets = append(s.offsets, offset)
	if s.call >= len(s.script) {
		return nil, offset, nil
	}
	r := s.script[s.call]
	s.call++
	return r.events, r.next, r.err
}

func (s *scriptedClient) Offsets() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.offsets...)
}

func (s *scriptedClient) GetFileURL(ctx context.Context, fileID string) (string, error) {
	return "", nil
}
func (s *scriptedClient) Download(ctx context.Context, url string) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}
func (s *scriptedClient) SendText(ctx context.Context, conv types.ConversationID, text string) error {
	return nil
}
func (s *scriptedClient) SendDocument(ctx context.Context, conv types.ConversationID, filename string, data io.Reader) error {
	return nil
}
func (s *scriptedClient) RegisterWebhook(ctx context.Context, publicURL string) error { return nil }
func (s *scriptedClient) DeleteWebhook(ctx context.Context) error                     { return nil }
func (s *scriptedClient) SetCommands(ctx context.Context, commands []types.BotCommand) error {
	return nil
}

var _ types.RemoteClient = (*scriptedClient)(nil)

func fastRetry() *RetryPolicy {
	return &RetryPolicy{InitialDelay: time.Millisecond, Multiplier: 2.0, MaxDelay: 5 * time.Millisecond}
}

func TestPollerDeliversInOrderAndAdvancesOffset(t *testing.T) {
	client := &scriptedClient{script: []pollResult{
		{events: []types.Event{{Conversation: 1, UpdateID: 10}, {Conversation: 1, UpdateID: 11}}, next: 12},
		{events: []types.Event{{Conversation: 2, UpdateID: 12}}, next: 13},
	}}
	p := NewPoller(client, fastRetry(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	var got []int
	for i := 0; i < 3; i++ {
		select {
		case ev := <-p.Events():
			got = append(got, ev.UpdateID)
		case <-time.After(time.Second):
			t.Fatalf("timed out after %d events", len(got))
		}
	}
	cancel()
	<-done

	for i, id := range []int{10, 11, 12} {
		if got[i] != id {
			t.Fatalf("out of order: %v", got)
		}
	}

	offsets := client.Offsets()
	if len(offsets) < 2 || offsets[0] != 0 || offsets[1] != 12 {
		t.Errorf("unexpected offsets: %v", offsets)
	}
}

func TestPollerBacksOffOnTransientFailure(t *testing.T) {
	client := &scriptedClient{script: []pollResult{
		{err: fmt.Errorf("connection refused")},
		{err: fmt.Errorf("connection refused")},
		{events: []types.Event{{Conversation: 1, UpdateID: 1}}, next: 2},
	}}
	p := NewPoller(client, fastRetry(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	select {
	case ev := <-p.Events():
		if ev.UpdateID != 1 {
			t.Errorf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("poller never recovered from transient failures")
	}
}

func TestPollerResetsOnBadCursor(t *testing.T) {
	client := &scriptedClient{script: []pollResult{
		{events: []types.Event{{Conversation: 1, UpdateID: 40}}, next: 41},
		{err: fmt.Errorf("get updates: %w", types.ErrBadCursor)},
		{events: []types.Event{{Conversation: 1, UpdateID: 42}}, next: 43},
	}}
	p := NewPoller(client, fastRetry(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	for i := 0; i < 2; i++ {
		select {
		case <-p.Events():
		case <-time.After(time.Second):
			t.Fatal("missing event after cursor reset")
		}
	}

	offsets := client.Offsets()
	// 0, 41, then reset back to 0
	if len(offsets) < 3 || offsets[2] != 0 {
		t.Errorf("expected cursor reset to 0, got offsets %v", offsets)
	}
}

func TestPollerStopsOnCancel(t *testing.T) {
	client := &scriptedClient{}
	p := NewPoller(client, fastRetry(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean stop, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("poller did not stop on cancel")
	}

	if _, ok := <-p.Events(); ok {
		t.Error("events channel should be closed after stop")
	}
}
