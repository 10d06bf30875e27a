// Package vectorstore defines the interface for vector storage operations.
package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors for vector store operations.
var (
	// ErrCollectionNotFound is returned when a collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrCollectionExists is returned when attempting to create an existing collection.
	ErrCollectionExists = errors.New("collection already exists")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyDocuments indicates empty or nil documents.
	ErrEmptyDocuments = errors.New("empty or nil documents")

	// ErrConnectionFailed indicates a backend connectivity failure.
	ErrConnectionFailed = errors.New("failed to connect to vector backend")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrNotInitialized is returned when an operation is attempted before
	// the store (or a specific collection) has been initialized.
	ErrNotInitialized = errors.New("vector store not initialized")

	// ErrNotImplemented is returned by query_keyword on backends that have
	// no native full-text scoring; callers fall back to the repository's
	// tokenized posting-list search (see internal/query).
	ErrNotImplemented = errors.New("operation not implemented by this backend")
)

// CollectionInfo contains metadata about a vector collection.
type CollectionInfo struct {
	// Name is the collection name.
	Name string `json:"name"`

	// PointCount is the number of vectors in the collection.
	PointCount int `json:"point_count"`

	// VectorSize is the dimensionality of vectors in this collection.
	VectorSize int `json:"vector_size"`
}

// Embedder generates vector embeddings from text.
//
// Embeddings are dense numerical representations that capture semantic
// meaning, enabling similarity search. Implementations can use local models
// (FastEmbed/ONNX) or remote APIs.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query.
	// Some models optimize differently for queries vs documents.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// HealthStatus is the result of a Store.Health check.
type HealthStatus struct {
	Status  string `json:"status"` // "healthy" or "unhealthy"
	Details map[string]interface{} `json:"details,omitempty"`
}

// Store is the interface for vector storage operations.
//
// Every project in kbase owns exactly one collection (§4.7); Store's
// collection-scoped methods are what let ProjectManager keep that
// isolation structural instead of relying on a shared-collection,
// metadata-filtered design.
//
// Implementations:
//   - ChromemStore: embedded chromem-go (default)
//   - QdrantStore: external Qdrant gRPC client
type Store interface {
	// AddDocuments upserts documents by ID into a collection. Documents
	// are embedded (via the configured Embedder) and stored with their
	// metadata.
	AddDocuments(ctx context.Context, collection string, docs []Document) ([]string, error)

	// QueryVector performs similarity search in a collection, returning
	// up to k results ordered by similarity score descending. where, if
	// non-nil, is an equality/contains predicate over stored metadata.
	QueryVector(ctx context.Context, collection string, query string, k int, where map[string]interface{}) ([]SearchResult, error)

	// QueryKeyword performs backend-native full-text search in a
	// collection. Returns ErrNotImplemented if the backend has no native
	// FTS; callers should fall back to the repository's posting-list
	// search in that case.
	QueryKeyword(ctx context.Context, collection string, text string, k int, where map[string]interface{}) ([]SearchResult, error)

	// DeleteDocuments deletes documents from a collection by id list
	// and/or metadata predicate. When both ids and where are empty,
	// nothing is deleted and nil is returned.
	DeleteDocuments(ctx context.Context, collection string, ids []string, where map[string]interface{}) error

	// Count returns the exact number of documents in a collection.
	Count(ctx context.Context, collection string) (int, error)

	// CreateCollection creates a new collection with the given vector
	// dimensionality. Returns ErrCollectionExists if it already exists.
	CreateCollection(ctx context.Context, collection string, vectorSize int) error

	// DeleteCollection deletes a collection and all its documents. This
	// is destructive and cannot be undone.
	DeleteCollection(ctx context.Context, collection string) error

	// CollectionExists checks if a collection exists.
	CollectionExists(ctx context.Context, collection string) (bool, error)

	// ListCollections returns all collection names known to this store.
	ListCollections(ctx context.Context) ([]string, error)

	// GetCollectionInfo returns metadata about a collection. Returns
	// ErrCollectionNotFound if it doesn't exist.
	GetCollectionInfo(ctx context.Context, collection string) (*CollectionInfo, error)

	// ExactSearch performs brute-force cosine-similarity search without
	// relying on an ANN index. Used as a fallback for small collections
	// where an HNSW-style index may not have been built yet.
	ExactSearch(ctx context.Context, collection string, query string, k int) ([]SearchResult, error)

	// Health reports backend connectivity status.
	Health(ctx context.Context) HealthStatus

	// Close releases resources. Idempotent.
	Close() error
}
