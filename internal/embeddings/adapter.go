package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync/atomic"

	"github.com/parchment-dev/kbase/internal/lru"
	"github.com/parchment-dev/kbase/internal/vectorstore"
)

// MemoizedStats is a point-in-time snapshot of a MemoizedEmbedder's
// counters.
type MemoizedStats struct {
	EmbeddingsGenerated uint64
	CacheHits           uint64
	CacheMisses         uint64
	TotalQueries        uint64
}

// MemoizedEmbedder wraps a vectorstore.Embedder with an LRU cache keyed by
// the hash of the normalized input text, so repeated queries and
// re-ingested document chunks skip the underlying model call entirely.
type MemoizedEmbedder struct {
	underlying vectorstore.Embedder
	cache      *lru.Cache[string, []float32]

	generated atomic.Uint64
	hits      atomic.Uint64
	misses    atomic.Uint64
	queries   atomic.Uint64
}

// NewMemoizedEmbedder wraps underlying with a cache of the given capacity.
func NewMemoizedEmbedder(underlying vectorstore.Embedder, cacheCapacity int) *MemoizedEmbedder {
	return &MemoizedEmbedder{
		underlying: underlying,
		cache:      lru.New[string, []float32](cacheCapacity),
	}
}

func normalizeText(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(normalizeText(text)))
	return hex.EncodeToString(sum[:])
}

// EmbedQuery returns the cached embedding for text if present; otherwise it
// invokes the underlying embedder, caches, and returns the result.
func (e *MemoizedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	e.queries.Add(1)
	key := cacheKey(text)

	if v, ok := e.cache.Get(key); ok {
		e.hits.Add(1)
		return v, nil
	}
	e.misses.Add(1)

	v, err := e.underlying.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	e.generated.Add(1)
	e.cache.Put(key, v)
	return v, nil
}

// EmbedDocuments partitions texts into cached and uncached, issues a single
// batched call to the underlying embedder for the uncached subset, caches
// each new result, and reassembles the output in the original order.
func (e *MemoizedEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	e.queries.Add(uint64(len(texts)))

	results := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, text := range texts {
		key := cacheKey(text)
		if v, ok := e.cache.Get(key); ok {
			e.hits.Add(1)
			results[i] = v
			continue
		}
		e.misses.Add(1)
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return results, nil
	}

	embedded, err := e.underlying.EmbedDocuments(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	e.generated.Add(uint64(len(embedded)))

	for j, idx := range missIdx {
		results[idx] = embedded[j]
		e.cache.Put(cacheKey(texts[idx]), embedded[j])
	}

	return results, nil
}

// Stats returns a snapshot of the embedder's counters.
func (e *MemoizedEmbedder) Stats() MemoizedStats {
	return MemoizedStats{
		EmbeddingsGenerated: e.generated.Load(),
		CacheHits:           e.hits.Load(),
		CacheMisses:         e.misses.Load(),
		TotalQueries:        e.queries.Load(),
	}
}

var _ vectorstore.Embedder = (*MemoizedEmbedder)(nil)
