// Package store provides ConversationStore implementations: a process-local
// in-memory store for tests and demos, and a Redis-backed store for
// deployments where conversation state must survive the process. Both
// implement the full-overwrite contract of core.ConversationStore.
package store
