// Package query implements the hybrid search engine that sits on top of a
// project's vector backend and document repository.
//
// Engine exposes four modes: pure vector similarity, tokenized keyword
// search over the repository's posting lists, reciprocal-rank fusion of
// the two, and MMR diversification layered on top of any of them. None of
// the modes touch more than one project's collection or repository, so
// isolation between projects is a property of what an Engine is
// constructed with, not of anything inside this package.
package query
