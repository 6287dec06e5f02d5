package router

import (
	"fmt"
	"sort"
	"strings"

	"github.com/arkadian-io/taskmesh/core"
)

const instructionTemplate = `You are the intent classifier of a task assistant.
Classify the user request into exactly one agent type from: %s.
If no agent clearly applies, use "%s".

Respond with a single JSON object of this exact shape (no other JSON in the reply):
{"target_agent_type": "<agent type>", "confidence": <0.0-1.0>, "reasoning": "<why>", "entities": {"<key>": <value>}, "suggested_actions": ["<action>"], "contextual_info": "<notes>"}`

// buildInstruction produces the fixed system instruction enumerating the
// currently registered agent types and the required output shape.
func buildInstruction(agentTypes []string, fallback string) string {
	types := make([]string, len(agentTypes))
	copy(types, agentTypes)
	sort.Strings(types)
	if len(types) == 0 {
		types = []string{fallback}
	}
	return fmt.Sprintf(instructionTemplate, strings.Join(types, ", "), fallback)
}

// buildPrompt assembles the classification prompt: the raw input, up to
// maxTurns recent conversation turns, non-input context pairs and user
// preference pairs when present.
func buildPrompt(input string, rc core.RoutingContext, maxTurns int) string {
	var sb strings.Builder

	sb.WriteString("User request: ")
	sb.WriteString(input)
	sb.WriteString("\n")

	history := rc.SessionHistory
	if maxTurns > 0 && len(history) > maxTurns {
		history = history[len(history)-maxTurns:]
	}
	if len(history) > 0 {
		sb.WriteString("\nRecent conversation:\n")
		for _, turn := range history {
			fmt.Fprintf(&sb, "- user: %s | response: %s | handled by: %s\n", turn.UserInput, turn.Response, turn.AgentID)
		}
	}

	if len(rc.CurrentContext) > 0 {
		sb.WriteString("\nContext:\n")
		for _, k := range sortedKeys(rc.CurrentContext) {
			fmt.Fprintf(&sb, "- %s: %v\n", k, rc.CurrentContext[k])
		}
	}

	if len(rc.UserPreferences) > 0 {
		sb.WriteString("\nUser preferences:\n")
		keys := make([]string, 0, len(rc.UserPreferences))
		for k := range rc.UserPreferences {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "- %s: %s\n", k, rc.UserPreferences[k])
		}
	}

	return sb.String()
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
