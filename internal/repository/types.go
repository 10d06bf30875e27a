package repository

import "time"

// Document is one entry in the repository's document table: the text and
// metadata an indexer produced from a source path or caller-supplied
// content, keyed by its vector-store document ID.
type Document struct {
	ID        string                 `json:"id"`
	Content   string                 `json:"content"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	IndexedAt time.Time              `json:"indexed_at"`
}

// snapshot is the JSON shape written by SaveToCache and read by
// LoadFromCache.
type snapshot struct {
	Documents map[string]*Document `json:"documents"`
	Index     map[string][]string  `json:"index"`
}
