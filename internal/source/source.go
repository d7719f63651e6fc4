// Package source produces the ordered inbound event stream. It hides the
// two delivery mechanisms — pull-based long polling and push-based
// webhook — behind the one types.EventSource interface; everything past
// the source is mode-agnostic.
package source

import (
	"fmt"
	"log/slog"

	"github.com/user/resizebot/internal/config"
	"github.com/user/resizebot/internal/telegram"
	"github.com/user/resizebot/internal/types"
)

// New selects the delivery mode once at startup.
func New(cfg *config.Config, client types.RemoteClient, log *slog.Logger) (types.EventSource, error) {
	switch cfg.Mode {
	case config.ModeWebhook:
		return NewWebhook(cfg.Webhook.Listen, cfg.Webhook.Path, telegram.ParseWebhookBody, log), nil
	case config.ModePolling:
		return NewPoller(client, DefaultRetryPolicy(), log), nil
	default:
		return nil, fmt.Errorf("unknown event delivery mode: %q", cfg.Mode)
	}
}
