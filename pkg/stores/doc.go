// Package stores persists local run history: one row per deploy or
// undeploy invocation plus the per-entity outcomes it recorded. The
// history is an audit trail only; reference resolution always consults
// the remote service, never this database.
package stores
