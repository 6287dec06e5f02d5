package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecision_PlainObject(t *testing.T) {
	raw := `{"target_agent_type":"inventory","confidence":0.92,"reasoning":"stock change","entities":{"quantity":1,"unit":"包"},"suggested_actions":["record stock change"]}`

	d, ok := parseDecision(raw)
	require.True(t, ok)
	assert.Equal(t, "inventory", d.TargetAgentType)
	assert.Equal(t, 0.92, d.Confidence)
	assert.Equal(t, "stock change", d.Reasoning)
	assert.Equal(t, float64(1), d.Entities["quantity"])
	assert.Equal(t, "包", d.Entities["unit"])
	assert.Equal(t, []string{"record stock change"}, d.SuggestedActions)
}

func TestParseDecision_ObjectAmidProse(t *testing.T) {
	raw := "Sure, here is my routing call:\n```json\n" +
		`{"target_agent_type": "finance", "confidence": 0.8, "reasoning": "it says {spent} money"}` +
		"\n```\nLet me know if you need anything else."

	d, ok := parseDecision(raw)
	require.True(t, ok)
	assert.Equal(t, "finance", d.TargetAgentType)
	assert.Equal(t, 0.8, d.Confidence)
	assert.Contains(t, d.Reasoning, "{spent}")
}

func TestParseDecision_KeyTolerance(t *testing.T) {
	for _, raw := range []string{
		`{"targetAgentType":"notification","confidence":0.7}`,
		`{"agent_type":"notification","confidence":0.7}`,
		`{"agent":"notification","confidence":0.7}`,
	} {
		d, ok := parseDecision(raw)
		require.True(t, ok, raw)
		assert.Equal(t, "notification", d.TargetAgentType)
	}
}

func TestParseDecision_Rejects(t *testing.T) {
	for name, raw := range map[string]string{
		"no json":        "I think this should go to the inventory agent.",
		"truncated":      `{"target_agent_type":"inventory","confidence":`,
		"missing target": `{"confidence":0.9,"reasoning":"no target named"}`,
		"empty target":   `{"target_agent_type":"","confidence":0.9}`,
	} {
		_, ok := parseDecision(raw)
		assert.False(t, ok, name)
	}
}

func TestParseDecision_ConfidenceClamped(t *testing.T) {
	d, ok := parseDecision(`{"target_agent_type":"inventory","confidence":1.7}`)
	require.True(t, ok)
	assert.Equal(t, 1.0, d.Confidence)

	d, ok = parseDecision(`{"target_agent_type":"inventory","confidence":-0.4}`)
	require.True(t, ok)
	assert.Equal(t, 0.0, d.Confidence)
}

func TestFirstJSONObject_SkipsMalformedCandidate(t *testing.T) {
	raw := `prefix {not json} then {"target_agent_type":"assistant","confidence":0.5} tail`
	payload, ok := firstJSONObject(raw)
	require.True(t, ok)
	assert.Equal(t, `{"target_agent_type":"assistant","confidence":0.5}`, payload)
}
