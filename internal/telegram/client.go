// Package telegram implements the platform client and update
// normalization on top of the Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/resizebot/internal/types"
)

// pollTimeout is the long-poll window in seconds. The platform holds the
// request open up to this long before returning an empty batch.
const pollTimeout = 30

// Client implements types.RemoteClient against the Telegram Bot API.
type Client struct {
	bot  *tgbotapi.BotAPI
	http *http.Client
}

// New authenticates against the Bot API and returns a Client.
func New(token string) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &Client{
		bot: bot,
		// Download timeout covers the whole body read, not just dialing.
		http: &http.Client{Timeout: 2 * time.Minute},
	}, nil
}

// Username returns the authenticated bot account name.
func (c *Client) Username() string {
	return c.bot.Self.UserName
}

// GetFileURL resolves a file ID to a short-lived download URL.
func (c *Client) GetFileURL(ctx context.Context, fileID string) (string, error) {
	file, err := c.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return "", fmt.Errorf("get file %s: %w", fileID, err)
	}
	return file.Link(c.bot.Token), nil
}

// Download streams the bytes behind a resolved URL. The caller owns the
// returned body.
func (c *Client) Download(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("download: unexpected status %s", resp.Status)
	}
	return resp.Body, nil
}

func (c *Client) SendText(ctx context.Context, conv types.ConversationID, text string) error {
	msg := tgbotapi.NewMessage(int64(conv), text)
	if _, err := c.bot.Send(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (c *Client) SendDocument(ctx context.Context, conv types.ConversationID, filename string, data io.Reader) error {
	doc := tgbotapi.NewDocument(int64(conv), tgbotapi.FileReader{
		Name:   filename,
		Reader: data,
	})
	if _, err := c.bot.Send(doc); err != nil {
		return fmt.Errorf("send document: %w", err)
	}
	return nil
}

// Poll long-polls for updates after offset. Updates that carry no message
// are consumed for offset advancement but produce no event. A 400 from the
// platform is reported as types.ErrBadCursor so the caller can reset.
func (c *Client) Poll(ctx context.Context, offset int) ([]types.Event, int, error) {
	u := tgbotapi.NewUpdate(offset)
	u.Timeout = pollTimeout

	updates, err := c.bot.GetUpdates(u)
	if err != nil {
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusBadRequest {
			return nil, offset, fmt.Errorf("get updates: %w", types.ErrBadCursor)
		}
		return nil, offset, fmt.Errorf("get updates: %w", err)
	}

	next := offset
	events := make([]types.Event, 0, len(updates))
	for _, update := range updates {
		if update.UpdateID >= next {
			next = update.UpdateID + 1
		}
		if ev, ok := ParseUpdate(update); ok {
			events = append(events, ev)
		}
	}
	return events, next, nil
}

func (c *Client) RegisterWebhook(ctx context.Context, publicURL string) error {
	wh, err := tgbotapi.NewWebhook(publicURL)
	if err != nil {
		return fmt.Errorf("build webhook config: %w", err)
	}
	if _, err := c.bot.Request(wh); err != nil {
		return fmt.Errorf("register webhook: %w", err)
	}
	return nil
}

func (c *Client) DeleteWebhook(ctx context.Context) error {
	if _, err := c.bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	return nil
}

func (c *Client) SetCommands(ctx context.Context, commands []types.BotCommand) error {
	cmds := make([]tgbotapi.BotCommand, 0, len(commands))
	for _, cmd := range commands {
		cmds = append(cmds, tgbotapi.BotCommand{
			Command:     cmd.Name,
			Description: cmd.Description,
		})
	}
	if _, err := c.bot.Request(tgbotapi.NewSetMyCommands(cmds...)); err != nil {
		return fmt.Errorf("set commands: %w", err)
	}
	return nil
}

var _ types.RemoteClient = (*Client)(nil)
