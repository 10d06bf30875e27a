// Package project implements multi-project isolation for kbase.
//
// Each project is a tenant boundary: one SQLite metadata row, one
// dedicated backend vector collection (kb_project_<project_id>), and one
// per-project LRU query cache. There is no shared collection and no
// metadata-filter-based tenant isolation — a project's documents live
// physically apart from every other project's.
//
// Manager provides project CRUD plus lifecycle-coupled collection and
// cache management:
//   - Create: generates a UUID, provisions the backend collection, attaches
//     a fresh cache, and inserts the metadata row.
//   - Get / GetByName / List: read project metadata.
//   - Update: partial update of description, embedding model, and metadata.
//   - Delete: cascades — clears the cache, invalidates the collection
//     cache, deletes the backend collection, removes the metadata row.
//   - Export / Import: ZIP-bundle project metadata and documents for backup
//     or migration between kbase instances.
package project
