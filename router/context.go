package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arkadian-io/taskmesh/core"
)

// GetContext loads the persisted conversation state and projects it into a
// RoutingContext. A missing conversation or a load error yields an empty
// context; load errors are logged but never fatal.
func (r *Router) GetContext(ctx context.Context, conversationID, userID string) core.RoutingContext {
	state, err := r.store.Load(ctx, conversationID)
	if err != nil {
		if !errors.Is(err, core.ErrConversationNotFound) {
			r.logger.Warn("failed to load conversation %s: %v", conversationID, err)
		}
		return core.EmptyRoutingContext(conversationID, userID)
	}

	rc := core.RoutingContext{
		ConversationID:  conversationID,
		UserID:          userID,
		SessionHistory:  state.RecentTurns(r.cfg.MaxContextHistory),
		CurrentContext:  map[string]any{},
		UserPreferences: map[string]string{},
	}
	if state.CurrentIntent != "" {
		rc.CurrentContext["current_intent"] = state.CurrentIntent
	}
	for k, v := range state.Entities {
		rc.CurrentContext[k] = v
	}
	for k, v := range state.AgentContext.Extra {
		rc.CurrentContext[k] = v
	}
	for k, v := range state.AgentContext.UserPreferences {
		rc.UserPreferences[k] = v
	}
	return rc
}

// UpdateContext appends a turn built from the latest decision, truncates the
// history to the configured window, merges routing metadata into the state
// and persists it wholesale. The store overwrites the full document, so the
// partial-merge responsibility lives entirely here.
func (r *Router) UpdateContext(ctx context.Context, rc core.RoutingContext, decision core.RoutingDecision, userInput, response string) error {
	state, err := r.store.Load(ctx, rc.ConversationID)
	if err != nil {
		if !errors.Is(err, core.ErrConversationNotFound) {
			r.logger.Warn("failed to load conversation %s for update: %v", rc.ConversationID, err)
		}
		state = core.NewConversationState(rc.ConversationID, rc.UserID)
	}

	now := time.Now().UTC()
	state.AppendTurn(core.ConversationTurn{
		TurnID:    core.NewID(),
		UserInput: userInput,
		Response:  response,
		Intent:    decision.TargetAgentType,
		Entities:  decision.Entities,
		Timestamp: now,
		AgentID:   decision.TargetAgentType,
	}, r.cfg.MaxContextHistory)

	state.SetIntent(decision.TargetAgentType, decision.Entities)
	state.RecordRouting(core.RoutingSnapshot{
		TargetAgentType: decision.TargetAgentType,
		Confidence:      decision.Confidence,
		Timestamp:       now,
	}, r.cfg.MaxContextHistory)

	if err := r.store.Save(ctx, rc.ConversationID, state); err != nil {
		return fmt.Errorf("failed to persist conversation %s: %w", rc.ConversationID, err)
	}
	return nil
}
