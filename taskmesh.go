// Package taskmesh provides a high-level façade over the intent router and
// workflow engine, enabling quick construction of a routed task assistant.
// Most applications interact with this package by:
//  1. Creating a TaskMesh via New() with a text generator (optionally
//     overriding the default in-memory store, rules, config and logger)
//  2. Registering a handler per agent type
//  3. Executing user requests synchronously (Execute) or with streamed
//     partial-state updates (ExecuteStream)
//
// All defaults are safe for local development and testing; production
// deployments typically supply a durable conversation store (see the store
// package's Redis implementation) and a structured logger.
package taskmesh

import (
	"context"

	"github.com/arkadian-io/taskmesh/config"
	"github.com/arkadian-io/taskmesh/core"
	"github.com/arkadian-io/taskmesh/logging"
	"github.com/arkadian-io/taskmesh/model"
	"github.com/arkadian-io/taskmesh/router"
	"github.com/arkadian-io/taskmesh/store"
	"github.com/arkadian-io/taskmesh/workflow"
)

// Options configures the TaskMesh instance.
type Options struct {
	// Config for router and workflow tuning. Defaults to config.Default().
	Config *config.Config
	// Store persists conversation state. Defaults to an in-memory store.
	Store core.ConversationStore
	// Rules replaces the deterministic fallback decision table.
	Rules []router.Rule
	// Logger defaults to a NoOpLogger.
	Logger logging.Logger
}

// TaskMesh aggregates the handler registry, intent router and workflow engine.
type TaskMesh struct {
	registry *core.Registry
	router   *router.Router
	engine   *workflow.Engine
}

// New creates a TaskMesh around the given text generator with optional
// overrides. Any unset service is initialized with an in-memory default.
func New(generator model.Generator, optFns ...func(o *Options)) *TaskMesh {
	opts := Options{
		Config: config.Default(),
		Store:  store.NewInMemoryStore(),
		Rules:  router.DefaultRules(),
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	registry := core.NewRegistry()

	rt := router.New(generator, registry, opts.Store, func(o *router.Options) {
		o.Config = opts.Config.Router
		o.Rules = opts.Rules
		o.Logger = opts.Logger
	})

	engine := workflow.New(rt, registry, func(o *workflow.Options) {
		o.Config = opts.Config.Workflow
		o.Logger = opts.Logger
	})

	return &TaskMesh{registry: registry, router: rt, engine: engine}
}

// Register makes a handler available under the given agent type.
func (t *TaskMesh) Register(agentType string, h core.Handler) {
	t.registry.Register(agentType, h)
}

// Execute runs one user request through the pipeline and returns the
// structured result.
func (t *TaskMesh) Execute(ctx context.Context, userInput, conversationID, userID string) workflow.Result {
	return t.engine.Execute(ctx, userInput, conversationID, userID)
}

// ExecuteStream runs one user request and yields a state update after each
// pipeline transition alongside the terminal result.
func (t *TaskMesh) ExecuteStream(ctx context.Context, userInput, conversationID, userID string) (<-chan workflow.StateUpdate, <-chan workflow.Result) {
	return t.engine.ExecuteStream(ctx, userInput, conversationID, userID)
}

// Router exposes the underlying intent router for direct decisions and
// context access.
func (t *TaskMesh) Router() *router.Router { return t.router }

// Registry exposes the handler registry.
func (t *TaskMesh) Registry() *core.Registry { return t.registry }
