// Package index provides a repo-scoped, read-only project-context bridge
// for reviewer models. It serves memories from the repository's .serena/
// directory and offers safe directory, file, and search tools, without
// starting or depending on any external indexing process.
//
// Tool output is structured JSON. Callers remain responsible for result
// redaction and size capping; the bridge only bounds entry and match counts.
package index
