package source

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/user/resizebot/internal/types"
)

// maxBodySize caps webhook POST bodies. Telegram updates are small; a
// larger body is not one of ours.
const maxBodySize = 1 << 20

// shutdownGrace bounds how long Run waits for in-flight HTTP requests
// when the context is cancelled.
const shutdownGrace = 5 * time.Second

// ParseFunc decodes one webhook POST body. ok=false with nil error means
// the body was valid but carried nothing dispatchable.
type ParseFunc func(body []byte) (ev types.Event, ok bool, err error)

// Webhook is the push-mode event source: a bound HTTP listener whose
// handler validates the body, enqueues the event, and acks immediately.
// Parsing failures get a 4xx and never reach the dispatcher; the internal
// queue decouples the HTTP response from downstream processing.
type Webhook struct {
	addr  string
	path  string
	parse ParseFunc

	queue  fifo
	events chan types.Event
	log    *slog.Logger
}

func NewWebhook(addr, path string, parse ParseFunc, log *slog.Logger) *Webhook {
	if log == nil {
		log = slog.Default()
	}
	if path == "" {
		path = "/webhook"
	}
	return &Webhook{
		addr:   addr,
		path:   path,
		parse:  parse,
		events: make(chan types.Event),
		log:    log.With("component", "source.webhook"),
	}
}

func (w *Webhook) Events() <-chan types.Event {
	return w.events
}

// Handler returns the HTTP surface, exposed separately for tests.
func (w *Webhook) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", w.handleHealth)
	mux.HandleFunc("POST "+w.path, w.handleUpdate)
	return mux
}

// Run binds the listener and pumps queued events into Events until ctx is
// cancelled, then shuts the server down and closes Events.
func (w *Webhook) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", w.addr)
	if err != nil {
		close(w.events)
		return err
	}

	srv := &http.Server{Handler: w.Handler()}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()
	w.log.Info("webhook listener started", "addr", ln.Addr().String(), "path", w.path)

	defer close(w.events)
	for {
		ev, ok := w.queue.pop(ctx)
		if !ok {
			break
		}
		select {
		case w.events <- ev:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		srv.Close()
	}
	if err := <-serveErr; err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (w *Webhook) handleHealth(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "application/json")
	json.NewEncoder(rw).Encode(map[string]string{"status": "ok"})
}

func (w *Webhook) handleUpdate(rw http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(rw, r.Body, maxBodySize))
	if err != nil {
		http.Error(rw, `{"error":"body too large or unreadable"}`, http.StatusBadRequest)
		return
	}

	ev, ok, err := w.parse(body)
	if err != nil {
		w.log.Warn("rejected malformed update", "remote", r.RemoteAddr, "error", err)
		http.Error(rw, `{"error":"invalid update"}`, http.StatusBadRequest)
		return
	}
	if ok {
		w.queue.push(ev)
	}
	rw.WriteHeader(http.StatusOK)
}

// fifo is an unbounded in-order queue. The handler must never block on a
// slow dispatcher, so pushes always succeed.
type fifo struct {
	mu     sync.Mutex
	items  []types.Event
	signal chan struct{}
	once   sync.Once
}

func (q *fifo) init() {
	q.once.Do(func() {
		q.signal = make(chan struct{}, 1)
	})
}

func (q *fifo) push(ev types.Event) {
	q.init()
	q.mu.Lock()
	q.items = append(q.items, ev)
	q.mu.Unlock()
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// pop blocks until an item is available or ctx is done.
func (q *fifo) pop(ctx context.Context) (types.Event, bool) {
	q.init()
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			ev := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return ev, true
		}
		q.mu.Unlock()

		select {
		case <-q.signal:
		case <-ctx.Done():
			return types.Event{}, false
		}
	}
}

var _ types.EventSource = (*Webhook)(nil)
