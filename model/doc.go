// Package model defines the text-generation boundary consumed by the intent
// router. A Generator takes a fixed system instruction plus a user prompt and
// returns free text expected (but not guaranteed) to contain one structured
// JSON object; the router owns all tolerance for malformed output.
//
// Subpackages provide adapters for hosted providers (openai, anthropic). The
// MockGenerator in this package supports deterministic tests and demos.
package model
