// Package knowledgebase wires one project's embedder, vector backend,
// document repository, query engine, and query cache together behind a
// small ingest/query/stats surface.
//
// A KnowledgeBase is constructed per project by ProjectManager's caller;
// it borrows its collaborators rather than owning them and has no Close
// method, so it never closes the pooled vector-backend client other
// projects share.
package knowledgebase
