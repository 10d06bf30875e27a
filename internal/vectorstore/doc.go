// Package vectorstore provides vector storage abstraction for kbase.
//
// The package offers a unified Store interface for vector storage operations
// with two provider implementations: ChromemStore (embedded, default) and
// QdrantStore (external service over gRPC). Each project in kbase owns a
// single dedicated collection, so isolation is structural — there is no
// cross-project metadata filter to get wrong, unlike a shared-collection
// design.
//
// # Usage
//
//	config := vectorstore.ChromemConfig{
//	    Path:              "/data/vectorstore",
//	    DefaultCollection: "kb_default",
//	    VectorSize:        384,
//	}
//	store, err := vectorstore.NewChromemStore(config, embedder, logger)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	ids, err := store.AddDocuments(ctx, "kb_default", []vectorstore.Document{
//	    {ID: "doc-1", Content: "Python programming language"},
//	})
//	results, err := store.QueryVector(ctx, "kb_default", "python", 10, nil)
//
// # Provider selection
//
// ChromemStore (default): embedded chromem-go storage, no external
// dependencies, good for local development and single-node deployments.
//
// QdrantStore (optional): external Qdrant service over gRPC, for
// deployments that need a managed, independently-scaled vector database.
//
// # Collection naming
//
// Collection names must match ^[a-z0-9_]{1,64}$; ProjectManager derives
// them as kb_project_<project_id> via internal/sanitize.
package vectorstore
