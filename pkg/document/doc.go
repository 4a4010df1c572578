// Package document provides the configuration tree model for deployment
// documents. A tree is parsed from YAML with mapping key order preserved,
// since directive evaluation and entity plan ordering depend on document
// order. The same tree serializes to canonical JSON (insertion order) so
// repeated runs of unchanged input produce byte-identical payloads.
package document
