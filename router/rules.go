package router

import (
	"regexp"
	"sort"
	"strings"

	"github.com/arkadian-io/taskmesh/core"
)

// Rule is one entry of the deterministic fallback classifier's decision
// table: a pattern predicate over the normalized input, an optional context
// predicate, a target agent type and a priority. Rules are evaluated by
// short-circuit iteration; the first full match wins.
type Rule struct {
	Name string
	// Pattern matches against the lowercased input. When nil, the rule
	// matches if at least one keyword occurs.
	Pattern *regexp.Regexp
	// Keywords contribute to the matched rule's confidence; each occurrence
	// in the input counts as one hit.
	Keywords []string
	// ContextPredicate optionally restricts the rule to matching contexts.
	ContextPredicate func(core.RoutingContext) bool
	Target           string
	Priority         int
}

func (r Rule) matches(lower string, rc core.RoutingContext) bool {
	if r.Pattern != nil {
		if !r.Pattern.MatchString(lower) {
			return false
		}
	} else if countKeywordHits(lower, r.Keywords) == 0 {
		return false
	}
	if r.ContextPredicate != nil && !r.ContextPredicate(rc) {
		return false
	}
	return true
}

// RuleClassifier evaluates an ordered, priority-sorted rule list. It is the
// deterministic fallback used when the model's structured output cannot be
// parsed, and is idempotent: identical input and context always yield the
// same target.
type RuleClassifier struct {
	rules    []Rule
	fallback string
}

// NewRuleClassifier sorts the rules by descending priority (stable, so
// declaration order breaks ties) and returns a classifier falling back to the
// given agent type when nothing matches.
func NewRuleClassifier(fallback string, rules []Rule) *RuleClassifier {
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority > sorted[j].Priority })
	return &RuleClassifier{rules: sorted, fallback: fallback}
}

// Classify picks the first matching rule and scores it: 0.5 base plus up to
// 0.3 for detected entities (0.1 each) plus up to 0.2 for keyword hits (0.05
// each), capped at 1.0. No match yields the fallback type at 0.3.
func (c *RuleClassifier) Classify(input string, rc core.RoutingContext, entities map[string]any) core.RoutingDecision {
	lower := strings.ToLower(input)

	for _, rule := range c.rules {
		if !rule.matches(lower, rc) {
			continue
		}
		entityBonus := 0.1 * float64(len(entities))
		if entityBonus > 0.3 {
			entityBonus = 0.3
		}
		keywordBonus := 0.05 * float64(countKeywordHits(lower, rule.Keywords))
		if keywordBonus > 0.2 {
			keywordBonus = 0.2
		}
		return core.RoutingDecision{
			TargetAgentType:  rule.Target,
			Confidence:       core.ClampConfidence(0.5 + entityBonus + keywordBonus),
			Reasoning:        "matched rule: " + rule.Name,
			Entities:         entities,
			SuggestedActions: suggestedActionsFor(rule.Target),
			ContextualInfo:   "rule-based classification",
		}
	}

	return core.RoutingDecision{
		TargetAgentType: c.fallback,
		Confidence:      0.3,
		Reasoning:       "no clear intent detected; using fallback agent",
		Entities:        entities,
		ContextualInfo:  "rule-based classification",
	}
}

func suggestedActionsFor(target string) []string {
	switch target {
	case core.AgentTypeInventory:
		return []string{"record stock change", "check remaining quantity"}
	case core.AgentTypeProcurement:
		return []string{"create purchase order", "compare suppliers"}
	case core.AgentTypeFinance:
		return []string{"record expense", "show spending summary"}
	case core.AgentTypeNotification:
		return []string{"schedule reminder"}
	default:
		return nil
	}
}

// DefaultRules returns the built-in decision table covering the canonical
// agent types in Chinese and English. Callers may extend or replace it.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:     "inventory-stock",
			Pattern:  regexp.MustCompile(`消耗|用完|用掉|库存|剩余|补货|入库|consume|used up|stock|inventory|remaining|left`),
			Keywords: []string{"消耗", "库存", "剩余", "用完", "补货", "consume", "stock", "inventory", "remaining"},
			Target:   core.AgentTypeInventory,
			Priority: 10,
		},
		{
			Name:     "procurement-purchase",
			Pattern:  regexp.MustCompile(`购买|采购|下单|买|purchase|buy|order`),
			Keywords: []string{"购买", "采购", "下单", "买", "purchase", "buy", "order"},
			Target:   core.AgentTypeProcurement,
			Priority: 8,
		},
		{
			Name:     "finance-expense",
			Pattern:  regexp.MustCompile(`花了|花费|支出|预算|报销|记账|账单|[¥￥$]|元|spent|cost|budget|expense|bill`),
			Keywords: []string{"花费", "支出", "预算", "报销", "记账", "spent", "cost", "budget", "expense"},
			Target:   core.AgentTypeFinance,
			Priority: 8,
		},
		{
			Name:     "notification-reminder",
			Pattern:  regexp.MustCompile(`提醒|通知|notify|remind|alert`),
			Keywords: []string{"提醒", "通知", "notify", "remind", "alert"},
			Target:   core.AgentTypeNotification,
			Priority: 6,
		},
		{
			Name:     "inventory-query",
			Pattern:  regexp.MustCompile(`查询|查看|还有多少|how many|how much|check`),
			Keywords: []string{"查询", "查看", "check"},
			Target:   core.AgentTypeInventory,
			Priority: 4,
		},
	}
}
