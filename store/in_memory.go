package store

import (
	"context"
	"sync"

	"github.com/arkadian-io/taskmesh/core"
)

// InMemoryStore is a volatile ConversationStore keeping state in a process
// local map. It is safe for concurrent access and best suited for tests or
// ephemeral demo setups. Each returned state is cloned to prevent external
// mutation of internal data.
type InMemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*core.ConversationState
}

var _ core.ConversationStore = (*InMemoryStore)(nil)

// NewInMemoryStore constructs an empty in-memory conversation store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{conversations: make(map[string]*core.ConversationState)}
}

// Load returns a clone of the stored state or core.ErrConversationNotFound.
func (s *InMemoryStore) Load(_ context.Context, conversationID string) (*core.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.conversations[conversationID]
	if !ok {
		return nil, core.ErrConversationNotFound
	}
	return state.Clone(), nil
}

// Save stores a clone of the provided state, overwriting any previous value.
func (s *InMemoryStore) Save(_ context.Context, conversationID string, state *core.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[conversationID] = state.Clone()
	return nil
}

// Delete removes the stored state for the conversation, if any.
func (s *InMemoryStore) Delete(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, conversationID)
	return nil
}
