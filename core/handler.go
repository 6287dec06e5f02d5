package core

import (
	"context"
	"time"
)

// InvocationResult is the structured outcome of a single handler call.
// Error carries the failure description when Success is false; Metadata is a
// free-form bag for handler-specific details (counts, ids, hints).
type InvocationResult struct {
	Success  bool           `json:"success"`
	Response string         `json:"response"`
	Duration time.Duration  `json:"duration"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Handler performs the domain work for one agent type.
//
// Implementations must report ordinary domain failures through the returned
// InvocationResult rather than an error; a returned error (or a panic) is
// treated as a bug by the caller, logged, and converted into a failed result.
// The conversationID identifies the logical thread the input belongs to.
type Handler interface {
	Invoke(ctx context.Context, input, conversationID string) (InvocationResult, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, input, conversationID string) (InvocationResult, error)

// Invoke implements Handler.
func (f HandlerFunc) Invoke(ctx context.Context, input, conversationID string) (InvocationResult, error) {
	return f(ctx, input, conversationID)
}

// StaticHandler returns a Handler that always succeeds with a fixed response.
// Useful for tests and wiring demos.
func StaticHandler(response string) Handler {
	return HandlerFunc(func(ctx context.Context, input, conversationID string) (InvocationResult, error) {
		return InvocationResult{Success: true, Response: response}, nil
	})
}
