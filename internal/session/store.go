// Package session holds per-conversation dialogue state in memory.
// State is process-lifetime only; losing it on restart just drops any
// half-finished dialogue back to idle.
package session

import (
	"sync"

	"github.com/user/resizebot/internal/types"
)

// conversation is one tracked counterpart. Its mutex serializes
// transitions for that conversation only.
type conversation struct {
	mu    sync.Mutex
	state types.SessionState
}

// Store maps ConversationID to current state. Apply calls on the same ID
// are serialized; independent IDs proceed fully in parallel. Entries are
// created lazily and never removed — conversations are long-lived and few.
type Store struct {
	mu    sync.Mutex
	convs map[types.ConversationID]*conversation
}

func NewStore() *Store {
	return &Store{convs: make(map[types.ConversationID]*conversation)}
}

// getOrCreate is O(map lookup); the store lock is never held across fn.
func (s *Store) getOrCreate(id types.ConversationID) *conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[id]
	if !ok {
		c = &conversation{}
		s.convs[id] = c
	}
	return c
}

// Apply runs fn against the conversation's current state and commits the
// result, atomically with respect to other Apply calls on the same ID.
// fn must be a pure state decision — no I/O under the lock.
func (s *Store) Apply(id types.ConversationID, fn func(types.SessionState) types.SessionState) types.SessionState {
	c := s.getOrCreate(id)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = fn(c.state)
	return c.state
}

// Get returns the conversation's current state, creating it in Idle if new.
func (s *Store) Get(id types.ConversationID) types.SessionState {
	c := s.getOrCreate(id)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Len reports how many conversations have been seen.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.convs)
}
