// internal/types/models.go
package types

// EventKind discriminates the normalized inbound event variants.
type EventKind int

const (
	KindUnrecognized EventKind = iota
	KindCommand
	KindText
	KindPhoto
	KindDocument
)

func (k EventKind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindText:
		return "text"
	case KindPhoto:
		return "photo"
	case KindDocument:
		return "document"
	default:
		return "unrecognized"
	}
}

// FileRef points at a file held by the platform. The download URL is
// resolved only at pipeline execution time; platform URLs are short-lived
// and must not be cached on the ref.
type FileRef struct {
	FileID string
	Width  int
	Height int
	Size   int
}

// Event is one normalized inbound notification derived from a raw platform
// update. Exactly the fields for the event's Kind are populated.
type Event struct {
	Conversation ConversationID
	Kind         EventKind
	Command      string    // KindCommand: name without the leading slash
	Text         string    // KindText
	Photo        []FileRef // KindPhoto: size variants of the same picture
	Document     FileRef   // KindDocument
	MimeType     string    // KindDocument: declared by the sender, untrusted
	UpdateID     int       // platform cursor, for logs and offset tracking
}

// BestPhoto picks the size variant with the largest reported width.
// Returns false when the event carries no variants.
func (e Event) BestPhoto() (FileRef, bool) {
	if len(e.Photo) == 0 {
		return FileRef{}, false
	}
	best := e.Photo[0]
	for _, v := range e.Photo[1:] {
		if v.Width > best.Width {
			best = v
		}
	}
	return best, true
}

// SessionState is the per-conversation dialogue state. The zero value is
// Idle, so lazily created conversations start in the right state.
type SessionState int

const (
	// StateIdle accepts commands and rejects unsolicited media.
	StateIdle SessionState = iota
	// StateAwaitingImage expects exactly one media event next.
	StateAwaitingImage
)

func (s SessionState) String() string {
	switch s {
	case StateAwaitingImage:
		return "awaiting_image"
	default:
		return "idle"
	}
}
