package router

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkadian-io/taskmesh/config"
	"github.com/arkadian-io/taskmesh/core"
	"github.com/arkadian-io/taskmesh/model"
	"github.com/arkadian-io/taskmesh/store"
)

type failingStore struct{}

func (failingStore) Load(context.Context, string) (*core.ConversationState, error) {
	return nil, errors.New("store unavailable")
}

func (failingStore) Save(context.Context, string, *core.ConversationState) error {
	return errors.New("store unavailable")
}

func (failingStore) Delete(context.Context, string) error { return errors.New("store unavailable") }

func TestGetContext_MissingConversationIsEmpty(t *testing.T) {
	rt := New(model.NewMockGenerator(), newTestRegistry(core.AgentTypeAssistant), store.NewInMemoryStore())

	rc := rt.GetContext(context.Background(), "nope", "u1")

	assert.Equal(t, "nope", rc.ConversationID)
	assert.Equal(t, "u1", rc.UserID)
	assert.Empty(t, rc.SessionHistory)
	assert.Empty(t, rc.CurrentContext)
	assert.Empty(t, rc.UserPreferences)
}

func TestGetContext_StoreErrorIsEmpty(t *testing.T) {
	rt := New(model.NewMockGenerator(), newTestRegistry(core.AgentTypeAssistant), failingStore{})

	rc := rt.GetContext(context.Background(), "c1", "u1")

	assert.Empty(t, rc.SessionHistory)
	assert.Empty(t, rc.CurrentContext)
}

func TestUpdateContext_RoundTrip(t *testing.T) {
	st := store.NewInMemoryStore()
	rt := New(model.NewMockGenerator(), newTestRegistry(core.AgentTypeInventory, core.AgentTypeAssistant), st)

	rc := core.EmptyRoutingContext("c1", "u1")
	decision := core.RoutingDecision{
		TargetAgentType: core.AgentTypeInventory,
		Confidence:      0.85,
		Entities:        map[string]any{core.EntityQuantity: float64(1), core.EntityUnit: "包"},
	}

	require.NoError(t, rt.UpdateContext(context.Background(), rc, decision, "抽纸消耗1包", "recorded"))

	got := rt.GetContext(context.Background(), "c1", "u1")
	require.Len(t, got.SessionHistory, 1)
	assert.Equal(t, "抽纸消耗1包", got.SessionHistory[0].UserInput)
	assert.Equal(t, "recorded", got.SessionHistory[0].Response)
	assert.Equal(t, core.AgentTypeInventory, got.SessionHistory[0].Intent)
	assert.Equal(t, core.AgentTypeInventory, got.CurrentContext["current_intent"])
	assert.Equal(t, "包", got.CurrentContext[core.EntityUnit])

	state, err := st.Load(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, state.AgentContext.RoutingHistory, 1)
	assert.Equal(t, core.AgentTypeInventory, state.AgentContext.RoutingHistory[0].TargetAgentType)
	assert.Equal(t, 0.85, state.AgentContext.RoutingHistory[0].Confidence)
}

func TestUpdateContext_HistoryStaysBounded(t *testing.T) {
	st := store.NewInMemoryStore()
	rt := New(model.NewMockGenerator(), newTestRegistry(core.AgentTypeAssistant), st, func(o *Options) {
		o.Config = config.RouterConfig{
			ConfidenceThreshold: 0.6,
			FallbackAgentType:   core.AgentTypeAssistant,
			MaxContextHistory:   3,
			MaxPromptTurns:      2,
		}
	})

	rc := core.EmptyRoutingContext("c1", "u1")
	decision := core.RoutingDecision{TargetAgentType: core.AgentTypeAssistant, Confidence: 0.7}
	for i := 0; i < 7; i++ {
		require.NoError(t, rt.UpdateContext(context.Background(), rc, decision, fmt.Sprintf("turn %d", i), "ok"))
	}

	state, err := st.Load(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, state.History, 3)
	assert.Equal(t, "turn 4", state.History[0].UserInput)
	assert.Equal(t, "turn 6", state.History[2].UserInput)
}

func TestUpdateContext_SaveFailureSurfaces(t *testing.T) {
	rt := New(model.NewMockGenerator(), newTestRegistry(core.AgentTypeAssistant), failingStore{})

	err := rt.UpdateContext(context.Background(), core.EmptyRoutingContext("c1", "u1"),
		core.RoutingDecision{TargetAgentType: core.AgentTypeAssistant}, "hi", "hello")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "c1")
}
