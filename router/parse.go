package router

import (
	"github.com/tidwall/gjson"

	"github.com/arkadian-io/taskmesh/core"
)

// parseDecision extracts the first well-formed JSON object found anywhere in
// the model's free-text reply and maps it onto a RoutingDecision. Surrounding
// prose is tolerated. The second return value is false when no usable payload
// (an object naming a non-empty target type) exists.
func parseDecision(raw string) (core.RoutingDecision, bool) {
	payload, ok := firstJSONObject(raw)
	if !ok {
		return core.RoutingDecision{}, false
	}

	doc := gjson.Parse(payload)
	target := firstString(doc, "target_agent_type", "targetAgentType", "agent_type", "agent")
	if target == "" {
		return core.RoutingDecision{}, false
	}

	decision := core.RoutingDecision{
		TargetAgentType: target,
		Confidence:      core.ClampConfidence(doc.Get("confidence").Float()),
		Reasoning:       firstString(doc, "reasoning", "reason"),
		ContextualInfo:  firstString(doc, "contextual_info", "contextualInfo"),
	}

	if ents := doc.Get("entities"); ents.IsObject() {
		entities := map[string]any{}
		ents.ForEach(func(key, value gjson.Result) bool {
			entities[key.String()] = value.Value()
			return true
		})
		if len(entities) > 0 {
			decision.Entities = entities
		}
	}

	if actions := doc.Get("suggested_actions"); actions.IsArray() {
		for _, a := range actions.Array() {
			if s := a.String(); s != "" {
				decision.SuggestedActions = append(decision.SuggestedActions, s)
			}
		}
	}

	return decision, true
}

// firstJSONObject scans the text for the first balanced, valid JSON object.
// Brace tracking is string-aware so literals containing braces do not break
// the balance count.
func firstJSONObject(s string) (string, bool) {
	for start := 0; start < len(s); start++ {
		if s[start] != '{' {
			continue
		}
		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(s); i++ {
			ch := s[i]
			if inString {
				switch {
				case escaped:
					escaped = false
				case ch == '\\':
					escaped = true
				case ch == '"':
					inString = false
				}
				continue
			}
			switch ch {
			case '"':
				inString = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					candidate := s[start : i+1]
					if gjson.Valid(candidate) {
						return candidate, true
					}
					// Malformed candidate; resume scanning after this brace.
					i = len(s)
				}
			}
		}
	}
	return "", false
}

func firstString(doc gjson.Result, keys ...string) string {
	for _, key := range keys {
		if v := doc.Get(key); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}
