// Package pipeline executes the fetch, transform, deliver sequence for
// one media reference: resolve the platform URL, stream the bytes into a
// scratch file, fit the image into the bounding square, and upload the
// PNG back to the conversation as a document.
package pipeline

import (
	"bytes"
	"context"
	"io"
	"log/slog"

	"github.com/user/resizebot/internal/types"
)

// outputFilename is the name of the uploaded document.
const outputFilename = "resized.png"

// Pipeline runs media through download, transform, and upload. One
// Pipeline is shared by all conversations; each Run owns its own
// TempAsset and nothing else.
type Pipeline struct {
	client    types.RemoteClient
	transform types.Transformer
	tempDir   string
	log       *slog.Logger
}

func New(client types.RemoteClient, transform types.Transformer, tempDir string, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		client:    client,
		transform: transform,
		tempDir:   tempDir,
		log:       log.With("component", "pipeline"),
	}
}

// Run executes one pipeline invocation for ref and delivers the result to
// conv. On success the uploaded document is the only outbound effect; on
// failure the returned error carries one of the package's failure kinds
// and the caller decides what to tell the user. The run's temp asset is
// removed on every exit path.
func (p *Pipeline) Run(ctx context.Context, conv types.ConversationID, ref types.FileRef) error {
	runID := types.NewRunID()
	log := p.log.With("run_id", string(runID), "conversation", conv)

	if ref.FileID == "" {
		return wrap(ErrNoMedia, "select media", nil)
	}

	url, err := p.client.GetFileURL(ctx, ref.FileID)
	if err != nil {
		return wrap(ErrRemote, "resolve file url", err)
	}

	tmp, err := newTempAsset(p.tempDir)
	if err != nil {
		return wrap(ErrLocal, "acquire temp asset", err)
	}
	defer tmp.Release()

	body, err := p.client.Download(ctx, url)
	if err != nil {
		return wrap(ErrRemote, "download", err)
	}
	written, err := io.Copy(tmp.File(), body)
	body.Close()
	if err != nil {
		return wrap(ErrLocal, "spool download", err)
	}
	if err := tmp.Reset(); err != nil {
		return wrap(ErrLocal, "rewind temp asset", err)
	}

	out, err := p.transform.Transform(tmp.File())
	if err != nil {
		return wrap(ErrDecode, "transform", err)
	}

	if err := p.client.SendDocument(ctx, conv, outputFilename, bytes.NewReader(out)); err != nil {
		return wrap(ErrRemote, "upload document", err)
	}

	log.Info("pipeline run complete", "downloaded_bytes", written, "output_bytes", len(out))
	return nil
}
