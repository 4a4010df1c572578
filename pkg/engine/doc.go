// Package engine implements the declarative deployment core: value
// directive materialization, entity tree walking into an ordered plan,
// reference resolution against a run-scoped registry, and idempotent
// upsert/delete orchestration against the remote entity service.
//
// Execution is strictly sequential. Ordering is the correctness
// guarantee: a child entity's identifier must exist before the parent
// that references it is persisted, and teardown runs the same plan in
// reverse.
package engine
