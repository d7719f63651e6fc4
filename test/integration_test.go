//go:build integration

package test

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/user/resizebot/internal/dispatch"
	"github.com/user/resizebot/internal/pipeline"
	"github.com/user/resizebot/internal/session"
	"github.com/user/resizebot/internal/source"
	"github.com/user/resizebot/internal/telegram"
	"github.com/user/resizebot/internal/transform"
	"github.com/user/resizebot/internal/types"
)

// platformStub plays the remote platform for a full in-process run: it
// serves file bytes and records every outbound message and document.
type platformStub struct {
	mu        sync.Mutex
	files     map[string][]byte
	texts     []string
	documents [][]byte
}

func (p *platformStub) GetFileURL(ctx context.Context, fileID string) (string, error) {
	if _, ok := p.files[fileID]; !ok {
		return "", fmt.Errorf("unknown file %s", fileID)
	}
	return "stub://" + fileID, nil
}

func (p *platformStub) Download(ctx context.Context, url string) (io.ReadCloser, error) {
	fileID := strings.TrimPrefix(url, "stub://")
	data, ok := p.files[fileID]
	if !ok {
		return nil, fmt.Errorf("no bytes for %s", fileID)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (p *platformStub) SendText(ctx context.Context, conv types.ConversationID, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.texts = append(p.texts, text)
	return nil
}

func (p *platformStub) SendDocument(ctx context.Context, conv types.ConversationID, filename string, data io.Reader) error {
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.documents = append(p.documents, body)
	return nil
}

func (p *platformStub) Poll(ctx context.Context, offset int) ([]types.Event, int, error) {
	return nil, offset, nil
}

func (p *platformStub) RegisterWebhook(ctx context.Context, publicURL string) error { return nil }
func (p *platformStub) DeleteWebhook(ctx context.Context) error                     { return nil }
func (p *platformStub) SetCommands(ctx context.Context, commands []types.BotCommand) error {
	return nil
}

func (p *platformStub) counts() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.texts), len(p.documents)
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 7, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// TestWebhookToDocument drives the whole chain: webhook POST in,
// dispatcher transition, pipeline run, resized document out.
func TestWebhookToDocument(t *testing.T) {
	tempDir := t.TempDir()
	platform := &platformStub{files: map[string][]byte{
		"photo-big": testPNG(t, 800, 600),
	}}

	wh := source.NewWebhook("127.0.0.1:0", "/webhook", telegram.ParseWebhookBody, nil)

	sessions := session.NewStore()
	pipe := pipeline.New(platform, transform.NewFitter(), tempDir, nil)
	dispatcher := dispatch.New(sessions, platform, pipe, 2, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	whDone := make(chan error, 1)
	go func() { whDone <- wh.Run(ctx) }()
	go dispatcher.Consume(ctx, wh.Events())

	post := func(body string) int {
		req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
		rec := httptest.NewRecorder()
		wh.Handler().ServeHTTP(rec, req)
		return rec.Code
	}

	if code := post(`{"update_id":1,"message":{"message_id":1,"chat":{"id":77},"text":"/resize","entities":[{"type":"bot_command","offset":0,"length":7}]}}`); code != http.StatusOK {
		t.Fatalf("resize command: status %d", code)
	}
	if code := post(`{"update_id":2,"message":{"message_id":2,"chat":{"id":77},"photo":[{"file_id":"photo-small","width":90},{"file_id":"photo-big","width":800}]}}`); code != http.StatusOK {
		t.Fatalf("photo: status %d", code)
	}

	deadline := time.After(5 * time.Second)
	for {
		texts, docs := platform.counts()
		if texts >= 1 && docs >= 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out: %d texts, %d documents", texts, docs)
		case <-time.After(10 * time.Millisecond):
		}
	}

	img, err := png.Decode(bytes.NewReader(platform.documents[0]))
	if err != nil {
		t.Fatalf("uploaded document is not PNG: %v", err)
	}
	if img.Bounds().Dx() != 512 {
		t.Errorf("expected 512 longer edge, got %d", img.Bounds().Dx())
	}

	if got := sessions.Get(77); got != types.StateIdle {
		t.Errorf("expected idle after pipeline, got %s", got)
	}

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("residual temp assets: %d", len(entries))
	}

	cancel()
	if err := <-whDone; err != nil {
		t.Errorf("webhook source error: %v", err)
	}
}

// TestMalformedWebhookDoesNotTouchState posts garbage and checks the
// dispatcher never sees it.
func TestMalformedWebhookDoesNotTouchState(t *testing.T) {
	platform := &platformStub{}
	wh := source.NewWebhook("127.0.0.1:0", "/webhook", telegram.ParseWebhookBody, nil)

	sessions := session.NewStore()
	pipe := pipeline.New(platform, transform.NewFitter(), t.TempDir(), nil)
	dispatcher := dispatch.New(sessions, platform, pipe, 2, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dispatcher.Start(ctx)
	defer dispatcher.Stop()
	go wh.Run(ctx)
	go dispatcher.Consume(ctx, wh.Events())

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`<html>not an update</html>`))
	rec := httptest.NewRecorder()
	wh.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	time.Sleep(100 * time.Millisecond)
	if sessions.Len() != 0 {
		t.Error("malformed payload must not create sessions")
	}
	texts, docs := platform.counts()
	if texts != 0 || docs != 0 {
		t.Errorf("malformed payload caused outbound traffic: %d texts, %d docs", texts, docs)
	}
}
