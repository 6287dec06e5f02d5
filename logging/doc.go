// Package logging provides a tiny abstraction over slog so downstream code
// can depend on a minimal interface (Logger) while allowing users to plug any
// structured logger. It also offers a richer TaskMeshLogger with contextual
// helpers (conversation, run, component) and domain specific helpers for
// routing decisions, handler invocations and workflow runs.
package logging
