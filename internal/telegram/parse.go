package telegram

import (
	"encoding/json"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/resizebot/internal/types"
)

// ParseUpdate normalizes one raw update into an Event. Returns false for
// updates that carry nothing dispatchable (edits, channel posts, callback
// queries and the like).
func ParseUpdate(update tgbotapi.Update) (types.Event, bool) {
	msg := update.Message
	if msg == nil {
		return types.Event{}, false
	}

	ev := types.Event{
		Conversation: types.ConversationID(msg.Chat.ID),
		UpdateID:     update.UpdateID,
	}

	switch {
	case msg.IsCommand():
		ev.Kind = types.KindCommand
		ev.Command = msg.Command()
	case len(msg.Photo) > 0:
		ev.Kind = types.KindPhoto
		ev.Photo = make([]types.FileRef, 0, len(msg.Photo))
		for _, ps := range msg.Photo {
			ev.Photo = append(ev.Photo, types.FileRef{
				FileID: ps.FileID,
				Width:  ps.Width,
				Height: ps.Height,
				Size:   ps.FileSize,
			})
		}
	case msg.Document != nil:
		ev.Kind = types.KindDocument
		ev.Document = types.FileRef{
			FileID: msg.Document.FileID,
			Size:   msg.Document.FileSize,
		}
		ev.MimeType = msg.Document.MimeType
	case msg.Text != "":
		ev.Kind = types.KindText
		ev.Text = msg.Text
	default:
		ev.Kind = types.KindUnrecognized
	}
	return ev, true
}

// ParseWebhookBody decodes one webhook POST body into an Event. A body
// that is not valid update JSON is an error; a valid update with nothing
// dispatchable returns ok=false and no error.
func ParseWebhookBody(body []byte) (types.Event, bool, error) {
	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		return types.Event{}, false, fmt.Errorf("decode update: %w", err)
	}
	if update.UpdateID == 0 && update.Message == nil {
		return types.Event{}, false, fmt.Errorf("decode update: missing update_id")
	}
	ev, ok := ParseUpdate(update)
	return ev, ok, nil
}
