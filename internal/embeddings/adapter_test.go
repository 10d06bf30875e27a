package embeddings

import (
	"context"
	"sync/atomic"
	"testing"
)

type countingEmbedder struct {
	calls atomic.Int32
	size  int
}

func (e *countingEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls.Add(1)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, e.size)
		if len(t) > 0 {
			v[0] = float32(len(t))
		}
		out[i] = v
	}
	return out, nil
}

func (e *countingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	v := make([]float32, e.size)
	v[0] = float32(len(text))
	return v, nil
}

func TestMemoizedEmbedder_EmbedQuery_CachesByNormalizedText(t *testing.T) {
	inner := &countingEmbedder{size: 4}
	m := NewMemoizedEmbedder(inner, 10)
	ctx := context.Background()

	first, err := m.EmbedQuery(ctx, "  Hello World  ")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	second, err := m.EmbedQuery(ctx, "hello world")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}

	if inner.calls.Load() != 1 {
		t.Errorf("underlying calls = %d, want 1 (second call should hit cache)", inner.calls.Load())
	}
	if first[0] != second[0] {
		t.Errorf("cached result mismatch: %v vs %v", first, second)
	}

	stats := m.Stats()
	if stats.CacheHits != 1 || stats.CacheMisses != 1 {
		t.Errorf("stats = %+v, want 1 hit and 1 miss", stats)
	}
}

func TestMemoizedEmbedder_EmbedDocuments_PartitionsAndReassembles(t *testing.T) {
	inner := &countingEmbedder{size: 4}
	m := NewMemoizedEmbedder(inner, 10)
	ctx := context.Background()

	if _, err := m.EmbedQuery(ctx, "alpha"); err != nil {
		t.Fatalf("priming EmbedQuery() error = %v", err)
	}

	results, err := m.EmbedDocuments(ctx, []string{"alpha", "beta", "gamma"})
	if err != nil {
		t.Fatalf("EmbedDocuments() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}

	// alpha was primed via EmbedQuery, so only beta+gamma should trigger the
	// underlying batched call — one call, not three.
	if inner.calls.Load() != 2 {
		t.Errorf("underlying calls = %d, want 2 (1 priming + 1 batched)", inner.calls.Load())
	}

	// Counters are cumulative: the priming call contributed one miss and one
	// generated embedding, the batch one hit and two more of each.
	stats := m.Stats()
	if stats.CacheHits != 1 {
		t.Errorf("CacheHits = %d, want 1", stats.CacheHits)
	}
	if stats.CacheMisses != 3 {
		t.Errorf("CacheMisses = %d, want 3", stats.CacheMisses)
	}
	if stats.EmbeddingsGenerated != 3 {
		t.Errorf("EmbeddingsGenerated = %d, want 3", stats.EmbeddingsGenerated)
	}

	// A second identical batch call should now be fully cached.
	if _, err := m.EmbedDocuments(ctx, []string{"alpha", "beta", "gamma"}); err != nil {
		t.Fatalf("second EmbedDocuments() error = %v", err)
	}
	if inner.calls.Load() != 2 {
		t.Errorf("underlying calls after full cache hit = %d, want 2", inner.calls.Load())
	}
}

func TestMemoizedEmbedder_EmbedDocuments_AllCached(t *testing.T) {
	inner := &countingEmbedder{size: 4}
	m := NewMemoizedEmbedder(inner, 10)
	ctx := context.Background()

	if _, err := m.EmbedDocuments(ctx, []string{"x", "y"}); err != nil {
		t.Fatalf("EmbedDocuments() error = %v", err)
	}
	if _, err := m.EmbedDocuments(ctx, []string{"x", "y"}); err != nil {
		t.Fatalf("second EmbedDocuments() error = %v", err)
	}

	if inner.calls.Load() != 1 {
		t.Errorf("underlying calls = %d, want 1", inner.calls.Load())
	}
}
