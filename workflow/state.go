package workflow

import (
	"errors"
	"time"

	"github.com/arkadian-io/taskmesh/core"
)

// State identifies a node of the execution state machine. Beyond the fixed
// roles below, every registered agent type contributes one state whose name
// is the agent type itself.
type State string

// Fixed state machine roles. Agent states are derived from the registry at
// runtime, not hardcoded.
const (
	StateStart      State = "start"
	StateRouting    State = "routing"
	StateFormatting State = "formatting"
	StateError      State = "error"
	StateEnd        State = "end"
)

// agentState converts an agent type into its state machine node.
func agentState(agentType string) State { return State(agentType) }

// Engine-level failure sentinels surfaced in Result.Error and metadata.
var (
	ErrStepLimitExceeded  = errors.New("workflow step limit exceeded")
	ErrExecutionTimeout   = errors.New("workflow execution timed out")
	ErrNoRegisteredTarget = errors.New("no registered handler for routed target")
)

// runMetadata tracks per-run accounting.
type runMetadata struct {
	StartTime time.Time
	StepCount int
	Errors    []string
}

// workflowState is the transient state of one Execute call. It is created
// when the run starts and discarded when it ends; only derived conversation
// context is ever persisted.
type workflowState struct {
	UserInput        string
	ConversationID   string
	UserID           string
	CurrentAgentType string
	RoutingContext   core.RoutingContext
	Decision         *core.RoutingDecision
	AgentResults     map[string]core.InvocationResult
	FinalResponse    string
	Metadata         runMetadata
	errored          bool // routing could not resolve a registered target
}

func newWorkflowState(input, conversationID, userID string) *workflowState {
	return &workflowState{
		UserInput:      input,
		ConversationID: conversationID,
		UserID:         userID,
		AgentResults:   map[string]core.InvocationResult{},
		Metadata:       runMetadata{StartTime: time.Now().UTC()},
	}
}

// Result is the structured outcome returned to the caller. The caller always
// receives one, never an unhandled error, even on total internal failure.
type Result struct {
	Success        bool           `json:"success"`
	Response       string         `json:"response"`
	ConversationID string         `json:"conversation_id"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Error          string         `json:"error,omitempty"`
}

// StateUpdate is one partial-state notification yielded by ExecuteStream
// after each completed transition.
type StateUpdate struct {
	State     State                 `json:"state"`
	StepCount int                   `json:"step_count"`
	Decision  *core.RoutingDecision `json:"decision,omitempty"`
	Response  string                `json:"response,omitempty"`
	Error     string                `json:"error,omitempty"`
}

// User-facing texts produced by the formatting transition.
const (
	apologyText           = "I'm sorry, I couldn't work out how to handle that request. Please try rephrasing it."
	defaultCompletionText = "Your request has been handled."
	emptyResultText       = "Your request completed, but produced no content."
)
