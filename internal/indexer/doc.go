// Package indexer discovers documents under a project's configured
// knowledge directories, converts and tokenizes them with a bounded worker
// pool, and swaps the result into a repository.Repository atomically.
//
// A JSON snapshot of the built index is written to the configured cache
// file so a later process restart can skip a full rebuild when nothing
// changed.
package indexer
