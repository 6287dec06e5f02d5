package core

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationState_AppendTurnBoundsHistory(t *testing.T) {
	state := NewConversationState("conv-1", "user-1")

	for i := 0; i < 10; i++ {
		state.AppendTurn(ConversationTurn{
			TurnID:    NewID(),
			UserInput: fmt.Sprintf("input-%d", i),
			Timestamp: time.Now().UTC(),
		}, 4)
	}

	require.Len(t, state.History, 4)
	// Retained turns must be the most recent ones in original order.
	for i, turn := range state.History {
		assert.Equal(t, fmt.Sprintf("input-%d", 6+i), turn.UserInput)
	}
}

func TestConversationState_AppendTurnUnboundedWhenZero(t *testing.T) {
	state := NewConversationState("conv-1", "user-1")
	for i := 0; i < 7; i++ {
		state.AppendTurn(ConversationTurn{TurnID: NewID()}, 0)
	}
	assert.Len(t, state.History, 7)
}

func TestConversationState_RecentTurns(t *testing.T) {
	state := NewConversationState("conv-1", "user-1")
	for i := 0; i < 5; i++ {
		state.AppendTurn(ConversationTurn{UserInput: fmt.Sprintf("t%d", i)}, 10)
	}

	recent := state.RecentTurns(3)
	require.Len(t, recent, 3)
	assert.Equal(t, "t2", recent[0].UserInput)
	assert.Equal(t, "t4", recent[2].UserInput)

	assert.Nil(t, state.RecentTurns(0))
	assert.Len(t, state.RecentTurns(100), 5)
}

func TestConversationState_CloneIsIndependent(t *testing.T) {
	state := NewConversationState("conv-1", "user-1")
	state.AppendTurn(ConversationTurn{UserInput: "hello"}, 10)
	state.SetIntent("inventory", map[string]any{"itemName": "tissues"})
	state.AgentContext.UserPreferences["lang"] = "zh"
	state.RecordRouting(RoutingSnapshot{TargetAgentType: "inventory", Confidence: 0.8}, 10)

	clone := state.Clone()
	clone.AppendTurn(ConversationTurn{UserInput: "mutated"}, 10)
	clone.Entities["itemName"] = "changed"
	clone.AgentContext.UserPreferences["lang"] = "en"

	assert.Len(t, state.History, 1)
	assert.Equal(t, "tissues", state.Entities["itemName"])
	assert.Equal(t, "zh", state.AgentContext.UserPreferences["lang"])
	assert.Len(t, state.AgentContext.RoutingHistory, 1)
}

func TestClampConfidence(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.42, 0.42},
		{1, 1},
		{1.7, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampConfidence(tt.in))
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Has("inventory"))

	r.Register("inventory", StaticHandler("ok"))
	r.Register("finance", StaticHandler("ok"))

	h, ok := r.Get("inventory")
	require.True(t, ok)
	require.NotNil(t, h)
	assert.ElementsMatch(t, []string{"inventory", "finance"}, r.Types())
}
