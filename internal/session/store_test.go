package session

import (
	"sync"
	"testing"

	"github.com/user/resizebot/internal/types"
)

func TestNewConversationStartsIdle(t *testing.T) {
	store := NewStore()
	if got := store.Get(42); got != types.StateIdle {
		t.Fatalf("expected idle, got %s", got)
	}
	if store.Len() != 1 {
		t.Errorf("expected lazily created entry, len=%d", store.Len())
	}
}

func TestApplyCommitsResult(t *testing.T) {
	store := NewStore()

	got := store.Apply(1, func(cur types.SessionState) types.SessionState {
		if cur != types.StateIdle {
			t.Errorf("expected idle inside fn, got %s", cur)
		}
		return types.StateAwaitingImage
	})
	if got != types.StateAwaitingImage {
		t.Fatalf("expected awaiting_image returned, got %s", got)
	}
	if store.Get(1) != types.StateAwaitingImage {
		t.Fatalf("expected committed state")
	}
}

// TestApplySerializedPerConversation hammers one entry from many
// goroutines; with the per-conversation lock the read-modify-write toggle
// must never lose an update.
func TestApplySerializedPerConversation(t *testing.T) {
	store := NewStore()
	const workers = 8
	const perWorker = 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				store.Apply(7, func(cur types.SessionState) types.SessionState {
					// Toggle; an even total number of applies returns to start.
					if cur == types.StateIdle {
						return types.StateAwaitingImage
					}
					return types.StateIdle
				})
			}
		}()
	}
	wg.Wait()

	if got := store.Get(7); got != types.StateIdle {
		t.Fatalf("lost updates: expected idle after even toggles, got %s", got)
	}
}

func TestIndependentConversations(t *testing.T) {
	store := NewStore()
	store.Apply(1, func(types.SessionState) types.SessionState { return types.StateAwaitingImage })

	if store.Get(2) != types.StateIdle {
		t.Error("conversation 2 should be untouched")
	}
	if store.Get(1) != types.StateAwaitingImage {
		t.Error("conversation 1 lost its state")
	}
}
