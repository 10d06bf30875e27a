package repository

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/parchment-dev/kbase/internal/kberrors"
)

// ErrDocumentNotFound is returned by GetDocument when id is unknown. It
// wraps kberrors.ErrNotFound so callers can match on either sentinel.
var ErrDocumentNotFound = fmt.Errorf("%w: document not found", kberrors.ErrNotFound)

// ErrCacheInvalid is returned by LoadFromCache when the file at path is not
// valid JSON. Any other format — including the gob encoding chromem-go
// uses for its own persistence — is refused rather than deserialized, since
// an attacker-controlled cache file is never trusted to pick its own
// decoder. Wraps kberrors.ErrCacheInvalid.
var ErrCacheInvalid = fmt.Errorf("%w: repository cache file is not valid JSON", kberrors.ErrCacheInvalid)

// Repository holds a project's document table and inverted term index in
// memory. All three operate under a single sync.RWMutex: reads (GetDocument,
// GetPostingsSnapshot, counts) take the read lock; AddDocument, IndexTerm,
// and ReplaceIndex take the write lock.
type Repository struct {
	mu        sync.RWMutex
	documents map[string]*Document
	index     map[string][]string // term -> sorted, deduped document IDs

	logger *zap.Logger
}

// New creates an empty Repository.
func New(logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{
		documents: make(map[string]*Document),
		index:     make(map[string][]string),
		logger:    logger,
	}
}

// AddDocument inserts or replaces a document in the table.
func (r *Repository) AddDocument(id string, doc *Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if doc.IndexedAt.IsZero() {
		doc.IndexedAt = time.Now()
	}
	r.documents[id] = doc
}

// IndexTerm appends id to term's posting list if not already present.
// Posting lists are kept sorted so GetPostingsSnapshot's callers (and
// deterministic tests) see a stable order.
func (r *Repository) IndexTerm(term, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	postings := r.index[term]
	pos := sortedSearch(postings, id)
	if pos < len(postings) && postings[pos] == id {
		return
	}
	postings = append(postings, "")
	copy(postings[pos+1:], postings[pos:])
	postings[pos] = id
	r.index[term] = postings
}

func sortedSearch(postings []string, id string) int {
	lo, hi := 0, len(postings)
	for lo < hi {
		mid := (lo + hi) / 2
		if postings[mid] < id {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// ReplaceIndex atomically swaps both the document table and the term
// index, in a single write-lock acquisition, to the maps DocumentIndexer
// just built from a fresh pass over the corpus.
func (r *Repository) ReplaceIndex(newDocuments map[string]*Document, newIndex map[string][]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.documents = newDocuments
	r.index = newIndex
	r.logger.Info("replaced repository index",
		zap.Int("documents", len(newDocuments)),
		zap.Int("terms", len(newIndex)),
	)
}

// DocumentCount returns the number of documents in the table.
func (r *Repository) DocumentCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.documents)
}

// TermCount returns the number of distinct terms in the index.
func (r *Repository) TermCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.index)
}

// GetDocument returns the document for id.
func (r *Repository) GetDocument(id string) (*Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.documents[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}
	return doc, nil
}

// GetPostingsSnapshot copies the posting lists for terms under the read
// lock and returns them in a fresh map, so the caller can compute
// intersections, unions, and ranking without holding the repository lock.
func (r *Repository) GetPostingsSnapshot(terms []string) map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string][]string, len(terms))
	for _, term := range terms {
		postings := r.index[term]
		if len(postings) == 0 {
			continue
		}
		cp := make([]string, len(postings))
		copy(cp, postings)
		out[term] = cp
	}
	return out
}

// SaveToCache writes the repository's current state as a single JSON
// document, atomically: encode to a temp file in the same directory,
// fsync, then rename over path.
func (r *Repository) SaveToCache(path string) error {
	r.mu.RLock()
	snap := snapshot{Documents: r.documents, Index: r.index}
	r.mu.RUnlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("repository: encoding cache: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("repository: creating temp cache file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("repository: writing temp cache file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("repository: syncing temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("repository: closing temp cache file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("repository: renaming cache file into place: %w", err)
	}
	return nil
}

// LoadFromCache reads a JSON snapshot written by SaveToCache and replaces
// the repository's state with it. Any file whose content is not valid JSON
// — including a gob-encoded or otherwise binary file — returns
// ErrCacheInvalid without attempting to interpret it as anything else.
func (r *Repository) LoadFromCache(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("repository: reading cache file: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return ErrCacheInvalid
	}

	var snap snapshot
	if err := json.Unmarshal(trimmed, &snap); err != nil {
		return ErrCacheInvalid
	}
	if snap.Documents == nil {
		snap.Documents = make(map[string]*Document)
	}
	if snap.Index == nil {
		snap.Index = make(map[string][]string)
	}

	r.ReplaceIndex(snap.Documents, snap.Index)
	return nil
}
