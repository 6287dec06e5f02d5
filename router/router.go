package router

import (
	"context"
	"fmt"

	"github.com/arkadian-io/taskmesh/config"
	"github.com/arkadian-io/taskmesh/core"
	"github.com/arkadian-io/taskmesh/logging"
	"github.com/arkadian-io/taskmesh/model"
)

// Options configures a Router instance.
type Options struct {
	// Config tunes thresholds, fallback type and history windows. Defaults to
	// config.Default().Router.
	Config config.RouterConfig
	// Rules replaces the deterministic fallback decision table. Defaults to
	// DefaultRules().
	Rules []Rule
	// Logger defaults to a NoOpLogger.
	Logger logging.Logger
}

// Router produces routing decisions for free-text user requests and maintains
// the per-conversation context they depend on.
//
// Contract:
//   - Decide never returns an error and never panics out to the caller; every
//     failure mode degrades to a fallback decision
//   - Returned confidences are always within [0,1]
//   - One Load/mutate/Save cycle per routed turn (UpdateContext)
type Router struct {
	generator  model.Generator
	registry   *core.Registry
	store      core.ConversationStore
	classifier *RuleClassifier
	cache      *decisionCache
	cfg        config.RouterConfig
	logger     logging.Logger
}

// New constructs a Router over the given generator, handler registry and
// conversation store.
func New(generator model.Generator, registry *core.Registry, store core.ConversationStore, optFns ...func(o *Options)) *Router {
	opts := Options{
		Config: config.Default().Router,
		Rules:  DefaultRules(),
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Router{
		generator:  generator,
		registry:   registry,
		store:      store,
		classifier: NewRuleClassifier(opts.Config.FallbackAgentType, opts.Rules),
		cache:      newDecisionCache(opts.Config.MaxPromptTurns),
		cfg:        opts.Config,
		logger:     opts.Logger,
	}
}

// Decide classifies the input against the registered agent types. The LLM
// path is tried first; parse failures fall back to the rule classifier, and
// any error or panic escaping the pipeline is converted into a terminal
// low-confidence fallback decision. Decide never raises to its caller.
func (r *Router) Decide(ctx context.Context, input string, rc core.RoutingContext) (decision core.RoutingDecision) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("routing panic recovered: %v", rec)
			decision = r.terminalDecision(fmt.Sprintf("panic: %v", rec))
		}
		decision.Confidence = core.ClampConfidence(decision.Confidence)
		r.cache.record(rc.ConversationID, decision)
	}()

	entities := ExtractEntities(input)

	raw, err := r.generator.Generate(ctx, buildInstruction(r.registry.Types(), r.cfg.FallbackAgentType), buildPrompt(input, rc, r.cfg.MaxPromptTurns))
	if err != nil {
		r.logger.Warn("classification call failed: %v", err)
		return r.terminalDecision(err.Error())
	}

	d, ok := parseDecision(raw)
	if ok {
		d.Entities = mergeEntities(entities, d.Entities)
	} else {
		r.logger.Debug("no structured payload in model reply; using rule classifier")
		d = r.classifier.Classify(input, rc, entities)
	}

	d = r.resolveTarget(d)
	d = r.applyThreshold(d, rc)

	r.logger.Debug("routing decision target=%s confidence=%.2f entities=%d", d.TargetAgentType, d.Confidence, d.EntityCount())
	return d
}

// Classify exposes the deterministic fallback classifier standalone. It runs
// the entity extractors and evaluates the rule table without any model call.
func (r *Router) Classify(input string, rc core.RoutingContext) core.RoutingDecision {
	return r.classifier.Classify(input, rc, ExtractEntities(input))
}

// resolveTarget substitutes the configured fallback type when the decision
// names an unregistered agent, reducing confidence by 0.2 (floored at 0.3)
// and appending an explanatory note.
func (r *Router) resolveTarget(d core.RoutingDecision) core.RoutingDecision {
	if r.registry.Has(d.TargetAgentType) {
		return d
	}
	reduced := d.Confidence - 0.2
	if reduced < 0.3 {
		reduced = 0.3
	}
	d.Reasoning = fmt.Sprintf("%s (no handler registered for %q; falling back to %q)", d.Reasoning, d.TargetAgentType, r.cfg.FallbackAgentType)
	d.TargetAgentType = r.cfg.FallbackAgentType
	d.Confidence = reduced
	return d
}

// applyThreshold boosts borderline decisions using conversation context and
// substitutes the fallback type when confidence remains below the threshold.
// The boost is bounded: +0.1 for a recent same-target turn, +0.1 for rich
// entity extraction (>2 keys), 0.3 total cap.
func (r *Router) applyThreshold(d core.RoutingDecision, rc core.RoutingContext) core.RoutingDecision {
	if d.Confidence >= r.cfg.ConfidenceThreshold {
		return d
	}

	boost := 0.0
	if r.recentSameTarget(rc, d.TargetAgentType) {
		boost += 0.1
	}
	if d.EntityCount() > 2 {
		boost += 0.1
	}
	if boost > 0.3 {
		boost = 0.3
	}
	d.Confidence = core.ClampConfidence(d.Confidence + boost)

	if d.Confidence < r.cfg.ConfidenceThreshold && d.TargetAgentType != r.cfg.FallbackAgentType {
		d.Reasoning = fmt.Sprintf("%s (confidence %.2f below threshold %.2f; falling back to %q)", d.Reasoning, d.Confidence, r.cfg.ConfidenceThreshold, r.cfg.FallbackAgentType)
		d.TargetAgentType = r.cfg.FallbackAgentType
	}
	return d
}

// recentSameTarget checks the last prompt-window turns and the decision cache
// for a prior routing to the same target type.
func (r *Router) recentSameTarget(rc core.RoutingContext, target string) bool {
	history := rc.SessionHistory
	n := r.cfg.MaxPromptTurns
	if n > 0 && len(history) > n {
		history = history[len(history)-n:]
	}
	for _, turn := range history {
		if turn.AgentID == target || turn.Intent == target {
			return true
		}
	}
	return r.cache.hasRecentTarget(rc.ConversationID, target)
}

// terminalDecision converts an unrecoverable routing failure into a decision
// the engine can still act on.
func (r *Router) terminalDecision(errText string) core.RoutingDecision {
	return core.RoutingDecision{
		TargetAgentType: r.cfg.FallbackAgentType,
		Confidence:      0.2,
		Reasoning:       fmt.Sprintf("routing failed: %s", errText),
	}
}

// mergeEntities overlays locally extracted entities on top of model-provided
// ones; the local pattern detectors win on conflicting keys.
func mergeEntities(local, fromModel map[string]any) map[string]any {
	if len(fromModel) == 0 {
		if len(local) == 0 {
			return nil
		}
		return local
	}
	merged := make(map[string]any, len(fromModel)+len(local))
	for k, v := range fromModel {
		merged[k] = v
	}
	for k, v := range local {
		merged[k] = v
	}
	return merged
}
