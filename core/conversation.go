package core

import (
	"sync"
	"time"
)

// ConversationTurn records one completed exchange: the user input, the
// response produced for it, the routed intent and extracted entities.
// Turns are append-only; once created they are never mutated.
type ConversationTurn struct {
	TurnID    string         `json:"turn_id"`
	UserInput string         `json:"user_input"`
	Response  string         `json:"response"`
	Intent    string         `json:"intent"`
	Entities  map[string]any `json:"entities,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	AgentID   string         `json:"agent_id"`
}

// AgentContext is the strongly-typed replacement for the open context bag:
// routing history and user preferences get named fields, and Extra remains
// as an explicit catch-all for genuinely unstructured data.
type AgentContext struct {
	RoutingHistory  []RoutingSnapshot `json:"routing_history,omitempty"`
	UserPreferences map[string]string `json:"user_preferences,omitempty"`
	Extra           map[string]any    `json:"extra,omitempty"`
}

// ConversationState is the durable per-conversation record persisted between
// requests. It is owned exclusively by the store while at rest; the router
// loads, mutates and saves it once per routed turn.
//
// Contract:
//   - History is bounded: AppendTurn drops the oldest turns beyond the window
//   - Mutations update LastActivity
//   - Clone performs deep copies for safe divergence
type ConversationState struct {
	ConversationID string             `json:"conversation_id"`
	UserID         string             `json:"user_id"`
	CurrentIntent  string             `json:"current_intent,omitempty"`
	Entities       map[string]any     `json:"entities,omitempty"`
	History        []ConversationTurn `json:"history"`
	LastActivity   time.Time          `json:"last_activity"`
	AgentContext   AgentContext       `json:"agent_context"`

	mu sync.RWMutex
}

// NewConversationState creates an empty state for the given conversation.
func NewConversationState(conversationID, userID string) *ConversationState {
	return &ConversationState{
		ConversationID: conversationID,
		UserID:         userID,
		Entities:       map[string]any{},
		History:        []ConversationTurn{},
		LastActivity:   time.Now().UTC(),
		AgentContext:   AgentContext{UserPreferences: map[string]string{}, Extra: map[string]any{}},
	}
}

// AppendTurn appends a turn and truncates History to the most recent
// maxHistory entries, oldest dropped first. A non-positive maxHistory leaves
// the history unbounded.
func (s *ConversationState) AppendTurn(turn ConversationTurn, maxHistory int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.History = append(s.History, turn)
	if maxHistory > 0 && len(s.History) > maxHistory {
		s.History = s.History[len(s.History)-maxHistory:]
	}
	s.LastActivity = time.Now().UTC()
}

// RecentTurns returns a copy of the most recent n turns in chronological order.
func (s *ConversationState) RecentTurns(n int) []ConversationTurn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 || len(s.History) == 0 {
		return nil
	}
	if n > len(s.History) {
		n = len(s.History)
	}
	out := make([]ConversationTurn, n)
	copy(out, s.History[len(s.History)-n:])
	return out
}

// SetIntent records the latest routed intent and merges its entities.
func (s *ConversationState) SetIntent(intent string, entities map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CurrentIntent = intent
	if s.Entities == nil {
		s.Entities = map[string]any{}
	}
	for k, v := range entities {
		s.Entities[k] = v
	}
	s.LastActivity = time.Now().UTC()
}

// RecordRouting appends a routing snapshot to the agent context, bounded to
// the same window as the turn history.
func (s *ConversationState) RecordRouting(snap RoutingSnapshot, maxHistory int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AgentContext.RoutingHistory = append(s.AgentContext.RoutingHistory, snap)
	if maxHistory > 0 && len(s.AgentContext.RoutingHistory) > maxHistory {
		s.AgentContext.RoutingHistory = s.AgentContext.RoutingHistory[len(s.AgentContext.RoutingHistory)-maxHistory:]
	}
	s.LastActivity = time.Now().UTC()
}

// Clone returns a deep copy of the state safe for independent mutation.
func (s *ConversationState) Clone() *ConversationState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &ConversationState{
		ConversationID: s.ConversationID,
		UserID:         s.UserID,
		CurrentIntent:  s.CurrentIntent,
		Entities:       make(map[string]any, len(s.Entities)),
		History:        make([]ConversationTurn, len(s.History)),
		LastActivity:   s.LastActivity,
		AgentContext: AgentContext{
			RoutingHistory:  make([]RoutingSnapshot, len(s.AgentContext.RoutingHistory)),
			UserPreferences: make(map[string]string, len(s.AgentContext.UserPreferences)),
			Extra:           make(map[string]any, len(s.AgentContext.Extra)),
		},
	}
	for k, v := range s.Entities {
		clone.Entities[k] = v
	}
	copy(clone.History, s.History)
	copy(clone.AgentContext.RoutingHistory, s.AgentContext.RoutingHistory)
	for k, v := range s.AgentContext.UserPreferences {
		clone.AgentContext.UserPreferences[k] = v
	}
	for k, v := range s.AgentContext.Extra {
		clone.AgentContext.Extra[k] = v
	}
	return clone
}

// RoutingContext is the router-facing projection of a ConversationState,
// rebuilt on every GetContext call. SessionHistory holds the retained turns
// in chronological order; CurrentContext carries non-input key/value pairs
// merged from routing metadata.
type RoutingContext struct {
	ConversationID  string
	UserID          string
	SessionHistory  []ConversationTurn
	CurrentContext  map[string]any
	UserPreferences map[string]string
}

// EmptyRoutingContext returns a usable context for a conversation with no
// persisted state (or whose load failed).
func EmptyRoutingContext(conversationID, userID string) RoutingContext {
	return RoutingContext{
		ConversationID:  conversationID,
		UserID:          userID,
		CurrentContext:  map[string]any{},
		UserPreferences: map[string]string{},
	}
}
