// internal/types/interfaces.go
package types

import (
	"context"
	"errors"
	"io"
)

// ErrBadCursor reports that the platform rejected the poll offset. The
// polling loop resets its cursor and continues when it sees this.
var ErrBadCursor = errors.New("invalid poll cursor")

// BotCommand is one entry of the command menu registered with the platform.
type BotCommand struct {
	Name        string
	Description string
}

// RemoteClient is the capability surface of the chat platform. Everything
// the bot needs from Telegram goes through here so the rest of the system
// can run against a fake in tests.
type RemoteClient interface {
	// GetFileURL resolves a file ID to a short-lived download URL.
	GetFileURL(ctx context.Context, fileID string) (string, error)
	// Download streams the bytes behind a previously resolved URL.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
	// SendText delivers a plain text reply to the conversation.
	SendText(ctx context.Context, conv ConversationID, text string) error
	// SendDocument uploads bytes as a document attachment.
	SendDocument(ctx context.Context, conv ConversationID, filename string, data io.Reader) error
	// Poll long-polls for updates after offset and returns normalized
	// events plus the next offset to poll from.
	Poll(ctx context.Context, offset int) ([]Event, int, error)
	// RegisterWebhook tells the platform to push updates to publicURL.
	RegisterWebhook(ctx context.Context, publicURL string) error
	// DeleteWebhook clears any registered webhook; required before polling.
	DeleteWebhook(ctx context.Context) error
	// SetCommands publishes the bot's command menu.
	SetCommands(ctx context.Context, commands []BotCommand) error
}

// Transformer turns a source image into the canonical output encoding.
type Transformer interface {
	Transform(r io.Reader) ([]byte, error)
}

// EventSource produces the ordered inbound event stream. Run blocks until
// ctx is cancelled and closes the Events channel on the way out. A source
// is not restartable.
type EventSource interface {
	Run(ctx context.Context) error
	Events() <-chan Event
}
