// Package core defines the shared data model and collaborator interfaces of
// TaskMesh: routing decisions, conversation state, handler and store
// contracts, and the registry mapping agent types to handlers.
//
// Types in this package are deliberately free of orchestration logic; the
// router and workflow packages build on them. Decision and turn values are
// treated as immutable once produced, while ConversationState carries its own
// synchronization so stores can hand out safe clones.
package core
