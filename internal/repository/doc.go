// Package repository holds a project's in-memory document table and
// inverted term index.
//
// Repository is the source of truth DocumentIndexer writes to and
// HybridQueryEngine's keyword path reads from when a vector backend has no
// native full-text search. Reads never block writers for longer than it
// takes to copy a handful of slice headers: GetPostingsSnapshot copies the
// posting lists a caller asked for under the read lock, then releases it,
// so ranking math runs lock-free.
//
// ReplaceIndex swaps both the document table and the term index by
// reference under a single write-lock acquisition — the same
// atomic-snapshot-swap idiom used for the persistent vector store's
// collection handles, generalized here to an in-memory index rebuilt by
// DocumentIndexer.
package repository
