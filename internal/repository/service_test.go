package repository

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"go.uber.org/zap"
)

func TestRepository_AddAndGetDocument(t *testing.T) {
	r := New(zap.NewNop())

	r.AddDocument("doc1", &Document{ID: "doc1", Content: "hello world"})

	doc, err := r.GetDocument("doc1")
	if err != nil {
		t.Fatalf("GetDocument() error = %v", err)
	}
	if doc.Content != "hello world" {
		t.Errorf("doc.Content = %q, want %q", doc.Content, "hello world")
	}
	if doc.IndexedAt.IsZero() {
		t.Error("doc.IndexedAt should be set by AddDocument")
	}

	if _, err := r.GetDocument("missing"); err == nil {
		t.Error("expected error for missing document")
	}
}

func TestRepository_IndexTerm(t *testing.T) {
	r := New(zap.NewNop())

	r.IndexTerm("hello", "doc2")
	r.IndexTerm("hello", "doc1")
	r.IndexTerm("hello", "doc1") // duplicate insert should be a no-op
	r.IndexTerm("world", "doc1")

	snap := r.GetPostingsSnapshot([]string{"hello", "world", "missing"})

	if got := snap["hello"]; len(got) != 2 || got[0] != "doc1" || got[1] != "doc2" {
		t.Errorf("postings[hello] = %v, want sorted [doc1 doc2]", got)
	}
	if got := snap["world"]; len(got) != 1 || got[0] != "doc1" {
		t.Errorf("postings[world] = %v, want [doc1]", got)
	}
	if _, ok := snap["missing"]; ok {
		t.Error("snapshot should omit terms with no postings")
	}
	if r.TermCount() != 2 {
		t.Errorf("TermCount() = %d, want 2", r.TermCount())
	}
}

func TestRepository_GetPostingsSnapshot_IsIndependentCopy(t *testing.T) {
	r := New(zap.NewNop())
	r.IndexTerm("alpha", "doc1")

	snap := r.GetPostingsSnapshot([]string{"alpha"})
	snap["alpha"][0] = "mutated"

	fresh := r.GetPostingsSnapshot([]string{"alpha"})
	if fresh["alpha"][0] != "doc1" {
		t.Error("mutating a snapshot slice should not affect the repository's internal index")
	}
}

func TestRepository_ReplaceIndex(t *testing.T) {
	r := New(zap.NewNop())
	r.AddDocument("old", &Document{ID: "old", Content: "stale"})
	r.IndexTerm("stale", "old")

	newDocs := map[string]*Document{
		"new": {ID: "new", Content: "fresh"},
	}
	newIndex := map[string][]string{
		"fresh": {"new"},
	}
	r.ReplaceIndex(newDocs, newIndex)

	if r.DocumentCount() != 1 {
		t.Errorf("DocumentCount() = %d, want 1", r.DocumentCount())
	}
	if _, err := r.GetDocument("old"); err == nil {
		t.Error("old document should be gone after ReplaceIndex")
	}
	if _, err := r.GetDocument("new"); err != nil {
		t.Errorf("GetDocument(new) error = %v", err)
	}
}

func TestRepository_SaveAndLoadCache(t *testing.T) {
	r := New(zap.NewNop())
	r.AddDocument("doc1", &Document{ID: "doc1", Content: "hello", Metadata: map[string]interface{}{"source": "a.md"}})
	r.IndexTerm("hello", "doc1")

	path := filepath.Join(t.TempDir(), "cache.json")
	if err := r.SaveToCache(path); err != nil {
		t.Fatalf("SaveToCache() error = %v", err)
	}

	r2 := New(zap.NewNop())
	if err := r2.LoadFromCache(path); err != nil {
		t.Fatalf("LoadFromCache() error = %v", err)
	}
	if r2.DocumentCount() != 1 {
		t.Errorf("DocumentCount() = %d, want 1", r2.DocumentCount())
	}
	doc, err := r2.GetDocument("doc1")
	if err != nil {
		t.Fatalf("GetDocument() error = %v", err)
	}
	if doc.Content != "hello" {
		t.Errorf("doc.Content = %q, want hello", doc.Content)
	}
}

func TestRepository_LoadFromCache_RejectsNonJSON(t *testing.T) {
	r := New(zap.NewNop())

	path := filepath.Join(t.TempDir(), "cache.bin")
	if err := os.WriteFile(path, []byte{0x80, 0x04, 0x95, 0x01}, 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	err := r.LoadFromCache(path)
	if err == nil {
		t.Fatal("expected LoadFromCache to reject a non-JSON file")
	}
	if err != ErrCacheInvalid {
		t.Errorf("error = %v, want ErrCacheInvalid", err)
	}
}

func TestRepository_LoadFromCache_RejectsTruncatedJSON(t *testing.T) {
	r := New(zap.NewNop())

	path := filepath.Join(t.TempDir(), "cache.json")
	if err := os.WriteFile(path, []byte(`{"documents": {`), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	if err := r.LoadFromCache(path); err != ErrCacheInvalid {
		t.Errorf("error = %v, want ErrCacheInvalid", err)
	}
}

func TestRepository_ConcurrentReadsAndWrites(t *testing.T) {
	r := New(zap.NewNop())
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := "doc"
			r.AddDocument(id, &Document{ID: id, Content: "x"})
			r.IndexTerm("term", id)
			r.GetPostingsSnapshot([]string{"term"})
			r.DocumentCount()
		}(i)
	}
	wg.Wait()

	if r.DocumentCount() != 1 {
		t.Errorf("DocumentCount() = %d, want 1", r.DocumentCount())
	}
}
