package core

import (
	"time"

	"github.com/google/uuid"
)

// Well-known agent types. The set is open: any string registered with a
// Registry is a valid target. These constants only name the canonical
// handlers shipped with the default rule set.
const (
	AgentTypeInventory    = "inventory"
	AgentTypeProcurement  = "procurement"
	AgentTypeFinance      = "finance"
	AgentTypeNotification = "notification"
	AgentTypeAssistant    = "assistant"
)

// Entity map keys produced by the router's extractors. A key is present only
// when the corresponding detector fired; absent fields are omitted entirely,
// never set to nil or an empty string.
const (
	EntityQuantity = "quantity"
	EntityUnit     = "unit"
	EntityAction   = "action"
	EntityItemName = "itemName"
	EntityTimeRef  = "timeRef"
	EntityAmount   = "amount"
)

// RoutingDecision is the router's per-input verdict: which agent type should
// handle the request, how confident the router is, and what it extracted
// along the way.
//
// Contract:
//   - Confidence is always within [0,1] (see ClampConfidence)
//   - Entities contains only detected keys
//   - A decision is immutable once returned by the router
type RoutingDecision struct {
	TargetAgentType  string         `json:"target_agent_type"`
	Confidence       float64        `json:"confidence"`
	Reasoning        string         `json:"reasoning"`
	Entities         map[string]any `json:"entities,omitempty"`
	SuggestedActions []string       `json:"suggested_actions,omitempty"`
	ContextualInfo   string         `json:"contextual_info,omitempty"`
}

// EntityCount returns the number of detected entity keys.
func (d RoutingDecision) EntityCount() int { return len(d.Entities) }

// RoutingSnapshot is a compact record of a past decision kept inside
// AgentContext for auditability and the router's recency-based confidence
// boost.
type RoutingSnapshot struct {
	TargetAgentType string    `json:"target_agent_type"`
	Confidence      float64   `json:"confidence"`
	Timestamp       time.Time `json:"timestamp"`
}

// ClampConfidence forces a confidence value into [0,1].
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// NewID generates a unique identifier for turns and workflow runs.
func NewID() string { return uuid.NewString() }
