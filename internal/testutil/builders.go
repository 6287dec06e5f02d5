package testutil

import (
	"time"

	"github.com/arkadian-io/taskmesh/core"
)

// TurnBuilder helps construct conversation turns with fluent chaining.
// Example:
//
//	turn := NewTurnBuilder("check stock").Agent("inventory").Build()
type TurnBuilder struct {
	turn core.ConversationTurn
}

// NewTurnBuilder creates a builder for a turn with the given user input.
func NewTurnBuilder(userInput string) *TurnBuilder {
	return &TurnBuilder{turn: core.ConversationTurn{
		TurnID:    core.NewID(),
		UserInput: userInput,
		Timestamp: time.Now().UTC(),
	}}
}

// Agent sets both the handling agent id and the routed intent (chainable).
func (b *TurnBuilder) Agent(agentType string) *TurnBuilder {
	b.turn.AgentID = agentType
	b.turn.Intent = agentType
	return b
}

// Response sets the recorded response text (chainable).
func (b *TurnBuilder) Response(text string) *TurnBuilder {
	b.turn.Response = text
	return b
}

// Entity adds one extracted entity (chainable).
func (b *TurnBuilder) Entity(key string, value any) *TurnBuilder {
	if b.turn.Entities == nil {
		b.turn.Entities = map[string]any{}
	}
	b.turn.Entities[key] = value
	return b
}

// Build returns the assembled turn.
func (b *TurnBuilder) Build() core.ConversationTurn { return b.turn }

// ContextBuilder assembles a RoutingContext for router tests.
type ContextBuilder struct {
	rc core.RoutingContext
}

// NewContextBuilder creates a builder for the given conversation and user.
func NewContextBuilder(conversationID, userID string) *ContextBuilder {
	return &ContextBuilder{rc: core.EmptyRoutingContext(conversationID, userID)}
}

// Turn appends a turn to the session history (chainable).
func (b *ContextBuilder) Turn(turn core.ConversationTurn) *ContextBuilder {
	b.rc.SessionHistory = append(b.rc.SessionHistory, turn)
	return b
}

// Context sets a non-input context pair (chainable).
func (b *ContextBuilder) Context(key string, value any) *ContextBuilder {
	b.rc.CurrentContext[key] = value
	return b
}

// Preference sets a user preference pair (chainable).
func (b *ContextBuilder) Preference(key, value string) *ContextBuilder {
	b.rc.UserPreferences[key] = value
	return b
}

// Build returns the assembled routing context.
func (b *ContextBuilder) Build() core.RoutingContext { return b.rc }
