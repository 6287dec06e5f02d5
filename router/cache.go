package router

import (
	"sync"
	"time"

	"github.com/arkadian-io/taskmesh/core"
)

// decisionCache keeps a best-effort, in-memory window of recent decisions per
// conversation. It exists solely to feed the recency-based confidence boost;
// the persisted store remains the source of truth and the cache requires no
// cross-conversation coordination.
type decisionCache struct {
	mu     sync.Mutex
	recent map[string][]core.RoutingSnapshot
	window int
}

func newDecisionCache(window int) *decisionCache {
	if window <= 0 {
		window = 3
	}
	return &decisionCache{recent: make(map[string][]core.RoutingSnapshot), window: window}
}

func (c *decisionCache) record(conversationID string, d core.RoutingDecision) {
	if conversationID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	snaps := append(c.recent[conversationID], core.RoutingSnapshot{
		TargetAgentType: d.TargetAgentType,
		Confidence:      d.Confidence,
		Timestamp:       time.Now().UTC(),
	})
	if len(snaps) > c.window {
		snaps = snaps[len(snaps)-c.window:]
	}
	c.recent[conversationID] = snaps
}

// hasRecentTarget reports whether any cached decision for the conversation
// named the given target type.
func (c *decisionCache) hasRecentTarget(conversationID, target string) bool {
	if conversationID == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, snap := range c.recent[conversationID] {
		if snap.TargetAgentType == target {
			return true
		}
	}
	return false
}
