package core

import (
	"context"
	"errors"
)

// ErrConversationNotFound is returned by ConversationStore.Load when no state
// exists for the requested conversation.
var ErrConversationNotFound = errors.New("conversation not found")

// ConversationStore persists per-conversation state between requests.
//
// Save performs a full overwrite: partial-merge responsibility lives with the
// caller (the router), not the store. Implementations own durability, caching
// and concurrency control; callers may assume the latest successful Save is
// visible to the next Load.
type ConversationStore interface {
	Load(ctx context.Context, conversationID string) (*ConversationState, error)
	Save(ctx context.Context, conversationID string, state *ConversationState) error
	Delete(ctx context.Context, conversationID string) error
}
