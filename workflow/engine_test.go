package workflow

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkadian-io/taskmesh/config"
	"github.com/arkadian-io/taskmesh/core"
	"github.com/arkadian-io/taskmesh/model"
	"github.com/arkadian-io/taskmesh/router"
	"github.com/arkadian-io/taskmesh/store"
)

func newTestEngine(t *testing.T, reg *core.Registry, optFns ...func(o *Options)) *Engine {
	t.Helper()
	rt := router.New(model.NewMockGenerator(), reg, store.NewInMemoryStore())
	return New(rt, reg, optFns...)
}

func TestExecute_RoutesAndInvokesHandler(t *testing.T) {
	reg := core.NewRegistry()
	reg.Register(core.AgentTypeInventory, core.StaticHandler("stock recorded"))
	reg.Register(core.AgentTypeAssistant, core.StaticHandler("how can I help?"))
	engine := newTestEngine(t, reg)

	res := engine.Execute(context.Background(), "抽纸消耗1包", "c1", "u1")

	assert.True(t, res.Success)
	assert.Equal(t, "stock recorded", res.Response)
	assert.Equal(t, "c1", res.ConversationID)
	assert.Equal(t, core.AgentTypeInventory, res.Metadata["target_agent_type"])
	assert.Equal(t, 4, res.Metadata["step_count"])
	assert.Empty(t, res.Error)
}

func TestExecute_NoHandlersProducesApology(t *testing.T) {
	engine := newTestEngine(t, core.NewRegistry())

	res := engine.Execute(context.Background(), "帮我订个会议室", "c1", "u1")

	assert.False(t, res.Success)
	assert.Equal(t, apologyText, res.Response)
	assert.Equal(t, ErrNoRegisteredTarget.Error(), res.Error)
}

func TestExecute_GeneratesConversationID(t *testing.T) {
	reg := core.NewRegistry()
	reg.Register(core.AgentTypeAssistant, core.StaticHandler("ok"))
	engine := newTestEngine(t, reg)

	res := engine.Execute(context.Background(), "hello", "", "u1")

	assert.NotEmpty(t, res.ConversationID)
}

func TestExecute_RetriesUntilSuccess(t *testing.T) {
	var calls int32
	reg := core.NewRegistry()
	reg.Register(core.AgentTypeInventory, core.HandlerFunc(func(ctx context.Context, input, conversationID string) (core.InvocationResult, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return core.InvocationResult{}, errors.New("transient failure")
		}
		return core.InvocationResult{Success: true, Response: "third time lucky"}, nil
	}))
	reg.Register(core.AgentTypeAssistant, core.StaticHandler("ok"))

	engine := newTestEngine(t, reg, func(o *Options) {
		o.Config = config.Default().Workflow
		o.Config.Retry.Backoff = time.Millisecond
	})

	res := engine.Execute(context.Background(), "抽纸消耗1包", "c1", "u1")

	assert.True(t, res.Success)
	assert.Equal(t, "third time lucky", res.Response)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestExecute_ExhaustedRetriesSurfaceInText(t *testing.T) {
	var calls int32
	reg := core.NewRegistry()
	reg.Register(core.AgentTypeInventory, core.HandlerFunc(func(ctx context.Context, input, conversationID string) (core.InvocationResult, error) {
		atomic.AddInt32(&calls, 1)
		return core.InvocationResult{}, errors.New("database offline")
	}))
	reg.Register(core.AgentTypeAssistant, core.StaticHandler("ok"))

	engine := newTestEngine(t, reg, func(o *Options) {
		o.Config = config.Default().Workflow
		o.Config.Retry.Backoff = time.Millisecond
	})

	res := engine.Execute(context.Background(), "抽纸消耗1包", "c1", "u1")

	// The pipeline itself completed; the failure lives in the formatted text.
	assert.True(t, res.Success)
	assert.Contains(t, res.Response, "database offline")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Contains(t, res.Metadata["errors"], "database offline")
}

func TestExecute_HandlerPanicBecomesFailedResult(t *testing.T) {
	reg := core.NewRegistry()
	reg.Register(core.AgentTypeInventory, core.HandlerFunc(func(ctx context.Context, input, conversationID string) (core.InvocationResult, error) {
		panic("index out of range")
	}))
	reg.Register(core.AgentTypeAssistant, core.StaticHandler("ok"))

	engine := newTestEngine(t, reg, func(o *Options) {
		o.Config = config.Default().Workflow
		o.Config.Retry.Backoff = time.Millisecond
	})

	var res Result
	require.NotPanics(t, func() {
		res = engine.Execute(context.Background(), "抽纸消耗1包", "c1", "u1")
	})

	assert.True(t, res.Success)
	assert.Contains(t, res.Response, "handler panic")
}

func TestExecute_StepLimitAborts(t *testing.T) {
	reg := core.NewRegistry()
	reg.Register(core.AgentTypeInventory, core.StaticHandler("stock recorded"))
	reg.Register(core.AgentTypeAssistant, core.StaticHandler("ok"))

	engine := newTestEngine(t, reg, func(o *Options) {
		o.Config = config.Default().Workflow
		o.Config.MaxSteps = 2
	})

	res := engine.Execute(context.Background(), "抽纸消耗1包", "c1", "u1")

	assert.False(t, res.Success)
	assert.Equal(t, apologyText, res.Response)
	assert.Equal(t, ErrStepLimitExceeded.Error(), res.Error)
}

func TestExecute_TimeoutAborts(t *testing.T) {
	reg := core.NewRegistry()
	reg.Register(core.AgentTypeInventory, core.HandlerFunc(func(ctx context.Context, input, conversationID string) (core.InvocationResult, error) {
		time.Sleep(300 * time.Millisecond)
		return core.InvocationResult{Success: true, Response: "late"}, nil
	}))
	reg.Register(core.AgentTypeAssistant, core.StaticHandler("ok"))

	engine := newTestEngine(t, reg, func(o *Options) {
		o.Config = config.Default().Workflow
		o.Config.ExecutionTimeout = 30 * time.Millisecond
	})

	start := time.Now()
	res := engine.Execute(context.Background(), "抽纸消耗1包", "c1", "u1")

	assert.False(t, res.Success)
	assert.Equal(t, ErrExecutionTimeout.Error(), res.Error)
	assert.Equal(t, apologyText, res.Response)
	assert.Less(t, time.Since(start), 250*time.Millisecond)
}

func TestExecute_CancelledContextAborts(t *testing.T) {
	reg := core.NewRegistry()
	reg.Register(core.AgentTypeInventory, core.HandlerFunc(func(ctx context.Context, input, conversationID string) (core.InvocationResult, error) {
		time.Sleep(300 * time.Millisecond)
		return core.InvocationResult{Success: true, Response: "late"}, nil
	}))
	reg.Register(core.AgentTypeAssistant, core.StaticHandler("ok"))
	engine := newTestEngine(t, reg)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	res := engine.Execute(ctx, "抽纸消耗1包", "c1", "u1")

	assert.False(t, res.Success)
	assert.Equal(t, context.Canceled.Error(), res.Error)
}

func TestExecuteStream_YieldsTransitionSequence(t *testing.T) {
	reg := core.NewRegistry()
	reg.Register(core.AgentTypeInventory, core.StaticHandler("stock recorded"))
	reg.Register(core.AgentTypeAssistant, core.StaticHandler("ok"))
	engine := newTestEngine(t, reg)

	updates, results := engine.ExecuteStream(context.Background(), "抽纸消耗1包", "c1", "u1")

	var states []State
	for u := range updates {
		states = append(states, u.State)
		assert.Equal(t, len(states), u.StepCount)
	}
	res := <-results

	assert.Equal(t, []State{StateRouting, State(core.AgentTypeInventory), StateFormatting, StateEnd}, states)
	assert.True(t, res.Success)
	assert.Equal(t, "stock recorded", res.Response)

	_, open := <-results
	assert.False(t, open)
}

func TestExecute_SameConversationRunsSerialize(t *testing.T) {
	var active, maxActive int32
	reg := core.NewRegistry()
	reg.Register(core.AgentTypeInventory, core.HandlerFunc(func(ctx context.Context, input, conversationID string) (core.InvocationResult, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			m := atomic.LoadInt32(&maxActive)
			if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return core.InvocationResult{Success: true, Response: "done"}, nil
	}))
	reg.Register(core.AgentTypeAssistant, core.StaticHandler("ok"))
	engine := newTestEngine(t, reg)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := engine.Execute(context.Background(), "抽纸消耗1包", "same-conv", "u1")
			assert.True(t, res.Success)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxActive))
}

func TestExecute_PersistsConversationTurn(t *testing.T) {
	st := store.NewInMemoryStore()
	reg := core.NewRegistry()
	reg.Register(core.AgentTypeInventory, core.StaticHandler("stock recorded"))
	reg.Register(core.AgentTypeAssistant, core.StaticHandler("ok"))
	rt := router.New(model.NewMockGenerator(), reg, st)
	engine := New(rt, reg)

	engine.Execute(context.Background(), "抽纸消耗1包", "c1", "u1")

	state, err := st.Load(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, state.History, 1)
	assert.Equal(t, "抽纸消耗1包", state.History[0].UserInput)
	assert.Equal(t, "stock recorded", state.History[0].Response)
	assert.Equal(t, core.AgentTypeInventory, state.CurrentIntent)
}
