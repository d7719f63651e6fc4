// internal/types/ids.go
package types

import (
	"strconv"

	"github.com/google/uuid"
)

// ConversationID identifies one ongoing exchange with a remote counterpart.
// For Telegram this is the chat ID. It is the session store key and stays
// stable for the lifetime of the conversation.
type ConversationID int64

func (c ConversationID) String() string {
	return strconv.FormatInt(int64(c), 10)
}

// RunID identifies a single media pipeline execution.
type RunID string

func NewRunID() RunID {
	return RunID(uuid.New().String())
}
