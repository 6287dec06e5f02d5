// Package config holds the typed configuration for TaskMesh components:
// router thresholds, workflow budgets, retry policy, store settings and
// logging. Values follow the precedence defaults → YAML file, with
// constructor functional options layered on top by the consuming packages.
package config
