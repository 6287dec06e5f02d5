// Package workflow implements the bounded-step orchestration pipeline that
// turns one user request into one user-facing response: route the input,
// invoke the chosen handler with retry, format the outcome.
//
// The pipeline is an explicit enumerated state machine (start → routing →
// <agent type> → formatting → end, with an error state reachable from
// routing) driven by a transition step function. Budgets are enforced by the
// loop driver: a step counter aborts runaway runs and a whole-call timeout
// bounds Execute. A run that has started a transition always finishes it;
// the timeout only abandons the wait.
package workflow
