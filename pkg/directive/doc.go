// Package directive defines the configuration vocabulary of deployment
// documents: the `$<entityKind>` entity directives, the value directives
// ($json, $dataset, $datasetCsv, $fileContent, $id), the $deleteIds sweep
// key, the control keys recognized inside entity bodies, the mapping from
// entity kinds to API collection paths, and the ${id:path:name} reference
// expression syntax.
//
// The directive spelling is a public configuration surface consumed by
// existing documents and must not change.
package directive
