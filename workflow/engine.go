package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/arkadian-io/taskmesh/config"
	"github.com/arkadian-io/taskmesh/core"
	"github.com/arkadian-io/taskmesh/logging"
	"github.com/arkadian-io/taskmesh/router"
)

// Options configures an Engine instance.
type Options struct {
	// Config tunes step budget, timeout, retry policy and stream buffering.
	// Defaults to config.Default().Workflow.
	Config config.WorkflowConfig
	// Logger defaults to a NoOpLogger.
	Logger logging.Logger
}

// Engine drives the routing → handler → formatting pipeline.
//
// Contract:
//   - Execute always returns a Result; handler errors, routing failures,
//     step-limit and timeout conditions are all folded into it
//   - Exactly one handler (or none, on routing failure) is invoked per run
//   - Runs on the same conversationID are serialized; distinct conversations
//     proceed fully independently
type Engine struct {
	router   *router.Router
	registry *core.Registry
	cfg      config.WorkflowConfig
	logger   logging.Logger

	mu        sync.Mutex
	convLocks map[string]*sync.Mutex
}

// New constructs an Engine over the given router and handler registry.
func New(rt *router.Router, registry *core.Registry, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config: config.Default().Workflow,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Engine{
		router:    rt,
		registry:  registry,
		cfg:       opts.Config,
		logger:    opts.Logger,
		convLocks: make(map[string]*sync.Mutex),
	}
}

// conversationLock returns the mutex serializing runs for one conversation.
func (e *Engine) conversationLock(conversationID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.convLocks[conversationID]
	if !ok {
		lock = &sync.Mutex{}
		e.convLocks[conversationID] = lock
	}
	return lock
}

// Execute runs the full pipeline for one user input and blocks until the run
// completes or the execution timeout elapses. A generated conversationID is
// used when none is supplied. On timeout the caller receives a failure
// result immediately; the in-flight transition is not interrupted and any
// context already persisted by completed transitions is not rolled back.
func (e *Engine) Execute(ctx context.Context, userInput, conversationID, userID string) Result {
	if conversationID == "" {
		conversationID = core.NewID()
	}

	done := make(chan Result, 1)
	go func() {
		// The run itself is never cancelled mid-transition; the timeout only
		// abandons the wait below.
		done <- e.run(context.WithoutCancel(ctx), userInput, conversationID, userID, nil)
	}()

	timer := time.NewTimer(e.cfg.ExecutionTimeout)
	defer timer.Stop()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		return e.abortResult(conversationID, ctx.Err())
	case <-timer.C:
		return e.abortResult(conversationID, ErrExecutionTimeout)
	}
}

// ExecuteStream runs the same pipeline but yields a StateUpdate after every
// completed transition. Both channels are closed when the run terminates;
// the result channel carries exactly one value.
func (e *Engine) ExecuteStream(ctx context.Context, userInput, conversationID, userID string) (<-chan StateUpdate, <-chan Result) {
	if conversationID == "" {
		conversationID = core.NewID()
	}

	updates := make(chan StateUpdate, e.cfg.StreamBufferSize)
	results := make(chan Result, 1)

	go func() {
		defer close(updates)
		defer close(results)
		results <- e.run(context.WithoutCancel(ctx), userInput, conversationID, userID, updates)
	}()

	return updates, results
}

// run drives the state machine loop, enforcing the step budget and emitting
// updates when a sink is provided.
func (e *Engine) run(ctx context.Context, userInput, conversationID, userID string, updates chan<- StateUpdate) Result {
	lock := e.conversationLock(conversationID)
	lock.Lock()
	defer lock.Unlock()

	ws := newWorkflowState(userInput, conversationID, userID)
	logger := e.logger

	state := StateStart
	for state != StateEnd {
		if ws.Metadata.StepCount+1 > e.cfg.MaxSteps {
			logger.Error("step limit reached conversation=%s steps=%d", conversationID, ws.Metadata.StepCount)
			return e.abortResult(conversationID, ErrStepLimitExceeded)
		}

		next := e.step(ctx, ws, state)
		ws.Metadata.StepCount++

		if updates != nil {
			updates <- StateUpdate{
				State:     next,
				StepCount: ws.Metadata.StepCount,
				Decision:  ws.Decision,
				Response:  ws.FinalResponse,
				Error:     lastError(ws),
			}
		}
		state = next
	}

	return e.finalResult(ws)
}

// step is the transition function: given the current state and the run's
// transient state it applies one transition and returns the next state.
func (e *Engine) step(ctx context.Context, ws *workflowState, state State) State {
	switch state {
	case StateStart:
		return StateRouting

	case StateRouting:
		return e.routingTransition(ctx, ws)

	case StateFormatting:
		e.formattingTransition(ctx, ws)
		return StateEnd

	case StateError:
		// Error is terminal for routing purposes; formatting produces the
		// apology text.
		return StateFormatting

	default:
		return e.agentTransition(ctx, ws, string(state))
	}
}

// routingTransition loads context, asks the router for a decision, and
// resolves the next state: the decision's target if a handler is registered,
// else the error state.
func (e *Engine) routingTransition(ctx context.Context, ws *workflowState) State {
	ws.RoutingContext = e.router.GetContext(ctx, ws.ConversationID, ws.UserID)

	decision := e.router.Decide(ctx, ws.UserInput, ws.RoutingContext)
	ws.Decision = &decision

	if !e.registry.Has(decision.TargetAgentType) {
		ws.errored = true
		ws.Metadata.Errors = append(ws.Metadata.Errors, fmt.Sprintf("%v: %s", ErrNoRegisteredTarget, decision.TargetAgentType))
		e.logger.Warn("no handler for routed target %q conversation=%s", decision.TargetAgentType, ws.ConversationID)
		return StateError
	}

	ws.CurrentAgentType = decision.TargetAgentType
	return agentState(decision.TargetAgentType)
}

// agentTransition invokes the handler for the current agent state with
// retries and records the final result. Handler failures never propagate;
// the transition always advances to formatting.
func (e *Engine) agentTransition(ctx context.Context, ws *workflowState, agentType string) State {
	handler, ok := e.registry.Get(agentType)
	if !ok {
		// Registry mutated between routing and dispatch; treat as a failed
		// invocation rather than crashing the run.
		ws.AgentResults[agentType] = core.InvocationResult{
			Success: false,
			Error:   fmt.Sprintf("handler for %q disappeared before dispatch", agentType),
		}
		return StateFormatting
	}

	ws.AgentResults[agentType] = e.invokeWithRetry(ctx, handler, agentType, ws.UserInput, ws.ConversationID)
	return StateFormatting
}

// invokeWithRetry calls the handler up to MaxRetries times total, sleeping
// Backoff × attemptNumber between failed attempts (linear backoff).
func (e *Engine) invokeWithRetry(ctx context.Context, handler core.Handler, agentType, input, conversationID string) core.InvocationResult {
	var result core.InvocationResult
	attempts := 0

	for attempt := 1; attempt <= e.cfg.Retry.MaxRetries; attempt++ {
		attempts++
		result = e.invokeOnce(ctx, handler, agentType, attempt, input, conversationID)
		if result.Success {
			break
		}
		if attempt < e.cfg.Retry.MaxRetries {
			time.Sleep(e.cfg.Retry.Backoff * time.Duration(attempt))
		}
	}

	if result.Metadata == nil {
		result.Metadata = map[string]any{}
	}
	result.Metadata["attempts"] = attempts
	return result
}

// invokeOnce performs a single panic-safe handler call. An escaping error or
// panic is a handler bug: it is logged and converted into a failed result.
func (e *Engine) invokeOnce(ctx context.Context, handler core.Handler, agentType string, attempt int, input, conversationID string) (result core.InvocationResult) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Error("handler %q panicked: %v", agentType, rec)
			result = core.InvocationResult{
				Success:  false,
				Duration: time.Since(start),
				Error:    fmt.Sprintf("handler panic: %v", rec),
			}
		}
	}()

	result, err := handler.Invoke(ctx, input, conversationID)
	if result.Duration == 0 {
		result.Duration = time.Since(start)
	}
	if err != nil {
		e.logger.Warn("handler %q attempt %d returned error: %v", agentType, attempt, err)
		result.Success = false
		if result.Error == "" {
			result.Error = err.Error()
		}
	}
	return result
}

// formattingTransition produces the final user-facing text and persists the
// completed turn back to the conversation store.
func (e *Engine) formattingTransition(ctx context.Context, ws *workflowState) {
	switch {
	case ws.errored:
		ws.FinalResponse = apologyText

	default:
		result, ok := ws.AgentResults[ws.CurrentAgentType]
		switch {
		case ok && result.Success && result.Response != "":
			ws.FinalResponse = result.Response
		case ok && result.Success:
			ws.FinalResponse = defaultCompletionText
		case ok && result.Error != "":
			ws.FinalResponse = fmt.Sprintf("Sorry, the %s task could not be completed: %s", ws.CurrentAgentType, result.Error)
			ws.Metadata.Errors = append(ws.Metadata.Errors, result.Error)
		default:
			ws.FinalResponse = emptyResultText
		}
	}

	if ws.Decision != nil {
		if err := e.router.UpdateContext(ctx, ws.RoutingContext, *ws.Decision, ws.UserInput, ws.FinalResponse); err != nil {
			e.logger.Warn("failed to persist conversation context %s: %v", ws.ConversationID, err)
			ws.Metadata.Errors = append(ws.Metadata.Errors, err.Error())
		}
	}
}

// finalResult assembles the terminal Result for a run that reached the end
// state. Handler failures are surfaced only through the formatted text; the
// success flag reflects whether the pipeline itself completed.
func (e *Engine) finalResult(ws *workflowState) Result {
	duration := time.Since(ws.Metadata.StartTime)
	metadata := map[string]any{
		"step_count":  ws.Metadata.StepCount,
		"duration_ms": duration.Milliseconds(),
	}
	if ws.Decision != nil {
		metadata["target_agent_type"] = ws.Decision.TargetAgentType
		metadata["confidence"] = ws.Decision.Confidence
	}
	if len(ws.Metadata.Errors) > 0 {
		metadata["errors"] = ws.Metadata.Errors
	}

	res := Result{
		Success:        !ws.errored,
		Response:       ws.FinalResponse,
		ConversationID: ws.ConversationID,
		Metadata:       metadata,
	}
	if ws.errored {
		res.Error = ErrNoRegisteredTarget.Error()
	}

	e.logger.Info("workflow run finished conversation=%s steps=%d success=%t", ws.ConversationID, ws.Metadata.StepCount, res.Success)
	return res
}

// abortResult builds the failure result for engine-level bound violations
// (step limit, timeout, cancelled wait). The raw error rides in metadata.
func (e *Engine) abortResult(conversationID string, cause error) Result {
	return Result{
		Success:        false,
		Response:       apologyText,
		ConversationID: conversationID,
		Metadata:       map[string]any{"error": cause.Error()},
		Error:          cause.Error(),
	}
}

func lastError(ws *workflowState) string {
	if len(ws.Metadata.Errors) == 0 {
		return ""
	}
	return ws.Metadata.Errors[len(ws.Metadata.Errors)-1]
}
