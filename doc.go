// Package dagather schedules a fixed set of named asynchronous tasks.
//
// A caller registers callbacks with Register, naming the other registered
// tasks each one depends on. A single call to Invoke runs every registered
// task at most once, in an order that respects those dependencies, with as
// much concurrency as the dependency graph allows, and returns a Result
// mapping every launched TaskTemplate to its outcome.
//
// The hard part, and the whole of this package, is the orchestration core:
// dependency graph construction, the topological scheduler, the per-task
// exception-handling policy machine, sibling introspection/cancellation, and
// the Result type's distinction between completed, failed, and discarded
// tasks.
//
// dagather does not run callbacks in subprocesses, does not persist state
// between invocations, and does not support mutating the graph mid-run.
package dagather
