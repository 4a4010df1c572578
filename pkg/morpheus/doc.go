// Package morpheus is the HTTP client for the remote entity service. It
// exposes the fixed contract the deployment engine consumes: lookup by
// name, collection listing, create, update and delete. Bodies crossing
// this boundary are fully materialized; no directive syntax reaches it.
package morpheus
