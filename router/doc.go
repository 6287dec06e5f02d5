// Package router implements confidence-gated intent routing: an LLM-backed
// primary classifier with a deterministic rule-based fallback, shallow
// pattern-based entity extraction, and conversation context maintenance over
// a bounded history window.
//
// The central guarantee is that Decide never fails: malformed model output
// falls back to the rule classifier, unknown targets and low-confidence
// verdicts are substituted with the configured fallback agent type, and any
// error or panic escaping the pipeline is converted into a terminal
// low-confidence fallback decision.
package router
