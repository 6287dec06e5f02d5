// Package testutil contains shared helpers for constructing conversation
// fixtures in tests. Not part of the public API.
package testutil
