package router

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/arkadian-io/taskmesh/core"
)

// actionVocabulary maps each canonical action verb to the surface keywords
// that trigger it, Chinese and English. Evaluation order is fixed so repeated
// extraction over identical input is deterministic.
var actionVocabulary = []struct {
	action   string
	keywords []string
}{
	{"consume", []string{"消耗", "用完", "用掉", "用了", "consume", "used up", "ran out"}},
	{"add", []string{"添加", "新增", "加入", "入库", "add", "restock"}},
	{"query", []string{"查询", "查看", "剩余", "还有多少", "query", "check", "how many", "how much"}},
	{"update", []string{"更新", "修改", "update", "modify", "change"}},
	{"purchase", []string{"购买", "采购", "下单", "买", "purchase", "buy", "order"}},
	{"analyze", []string{"分析", "analyze", "analyse"}},
	{"report", []string{"报告", "汇总", "统计", "report", "summary"}},
	{"notify", []string{"提醒", "通知", "notify", "remind", "alert"}},
}

// timeVocabulary maps surface forms to normalized coarse time references.
var timeVocabulary = []struct {
	ref      string
	keywords []string
}{
	{"today", []string{"今天", "今日", "today"}},
	{"yesterday", []string{"昨天", "yesterday"}},
	{"tomorrow", []string{"明天", "tomorrow"}},
	{"this-week", []string{"本周", "这周", "this week"}},
	{"last-week", []string{"上周", "last week"}},
	{"this-month", []string{"本月", "这个月", "this month"}},
	{"last-month", []string{"上个月", "上月", "last month"}},
}

var (
	quantityUnitRe = regexp.MustCompile(`(?i)([0-9]+(?:\.[0-9]+)?)\s*(包|个|瓶|盒|件|箱|卷|袋|只|条|支|张|斤|公斤|kg|ml|packs?|rolls?|bottles?|boxes?|bags?|pieces?|items?|units?)`)
	amountPrefixRe = regexp.MustCompile(`[¥￥$]\s*([0-9]+(?:\.[0-9]+)?)`)
	amountSuffixRe = regexp.MustCompile(`(?i)([0-9]+(?:\.[0-9]+)?)\s*(?:元|块钱|块|yuan|rmb|dollars?|usd)`)
	numericTokenRe = regexp.MustCompile(`^[0-9.]+$`)
)

// ExtractEntities runs the independent, non-exclusive entity detectors over
// the raw input. A field an extractor does not detect is simply absent from
// the returned map, never nil or an empty string.
func ExtractEntities(input string) map[string]any {
	entities := map[string]any{}
	lower := strings.ToLower(input)

	if m := quantityUnitRe.FindStringSubmatch(input); m != nil {
		if qty, err := strconv.ParseFloat(m[1], 64); err == nil {
			entities[core.EntityQuantity] = qty
			entities[core.EntityUnit] = m[2]
		}
	}

	action, actionIdx := detectAction(lower)
	if action != "" {
		entities[core.EntityAction] = action
	}

	if item := detectItemName(input, actionIdx); item != "" {
		entities[core.EntityItemName] = item
	}

	for _, tv := range timeVocabulary {
		if containsAny(lower, tv.keywords) {
			entities[core.EntityTimeRef] = tv.ref
			break
		}
	}

	if amount, ok := detectAmount(input); ok {
		entities[core.EntityAmount] = amount
	}

	return entities
}

// detectAction returns the canonical action and the byte offset of the
// matched keyword in the lowercased input, or ("", -1).
func detectAction(lower string) (string, int) {
	for _, av := range actionVocabulary {
		for _, kw := range av.keywords {
			if idx := strings.Index(lower, kw); idx >= 0 {
				return av.action, idx
			}
		}
	}
	return "", -1
}

// detectItemName implements the item heuristic: the text preceding the
// detected action verb, else the longest token that is neither an action
// keyword nor numeric.
func detectItemName(input string, actionIdx int) string {
	if actionIdx > 0 {
		prefix := strings.TrimFunc(input[:actionIdx], func(r rune) bool {
			return unicode.IsSpace(r) || unicode.IsDigit(r) || unicode.IsPunct(r)
		})
		if prefix != "" {
			return prefix
		}
	}

	var best string
	for _, tok := range tokenize(input) {
		if numericTokenRe.MatchString(tok) || isActionKeyword(tok) {
			continue
		}
		if len([]rune(tok)) > len([]rune(best)) {
			best = tok
		}
	}
	return best
}

func detectAmount(input string) (float64, bool) {
	m := amountPrefixRe.FindStringSubmatch(input)
	if m == nil {
		m = amountSuffixRe.FindStringSubmatch(input)
	}
	if m == nil {
		return 0, false
	}
	amount, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return amount, true
}

func tokenize(input string) []string {
	return strings.FieldsFunc(input, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
}

func isActionKeyword(tok string) bool {
	lower := strings.ToLower(tok)
	for _, av := range actionVocabulary {
		for _, kw := range av.keywords {
			if lower == kw {
				return true
			}
		}
	}
	return false
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// countKeywordHits counts how many of the given keywords occur in the input.
func countKeywordHits(lower string, keywords []string) int {
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			hits++
		}
	}
	return hits
}
