package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/parchment-dev/kbase/internal/ignore"
	"github.com/parchment-dev/kbase/internal/repository"
	"github.com/parchment-dev/kbase/internal/vectorstore"
)

// Config controls one Indexer's discovery, concurrency, and cache
// behavior.
type Config struct {
	// KnowledgeDirs are the root directories walked for source documents.
	KnowledgeDirs []string

	// FileExtensions restricts discovery to these extensions, e.g. [".md"].
	FileExtensions []string

	// IgnoreFiles lists ignore-file names parsed from each knowledge
	// directory's root (e.g. ".kbignore"); patterns found there replace
	// FallbackExcludes.
	IgnoreFiles []string

	// FallbackExcludes are glob patterns used when a knowledge directory
	// has none of IgnoreFiles present.
	FallbackExcludes []string

	// MaxWorkers bounds ingestion parallelism. Defaults to host CPU count.
	MaxWorkers int

	// CacheFile is the path to the repository's JSON snapshot. Empty
	// disables snapshotting.
	CacheFile string

	// ChunkSize and ChunkOverlap control optional document chunking.
	// ChunkSize <= 0 disables chunking: each file becomes one document.
	ChunkSize    int
	ChunkOverlap int

	// Store and Collection, when both set, make Build also push every
	// converted document into the vector backend (which embeds it using
	// its own configured Embedder) as part of the same worker pass —
	// Converter -> Embedder -> VectorBackend.add happening per file,
	// concurrently with the lexical index build.
	Store      vectorstore.Store
	Collection string
}

func (c *Config) applyDefaults() {
	if len(c.FileExtensions) == 0 {
		c.FileExtensions = []string{".md"}
	}
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = runtime.NumCPU()
	}
}

// Indexer discovers files, converts them with a bounded worker pool, and
// swaps the result into a repository.Repository in one atomic step.
type Indexer struct {
	cfg       Config
	converter Converter
	logger    *zap.Logger
}

// New constructs an Indexer. A nil converter defaults to FileConverter.
func New(cfg Config, converter Converter, logger *zap.Logger) *Indexer {
	cfg.applyDefaults()
	if converter == nil {
		converter = NewFileConverter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{cfg: cfg, converter: converter, logger: logger}
}

// workerResult is one file's successful conversion, ready to merge into
// the combined document table and term index.
type workerResult struct {
	doc   *repository.Document
	terms map[string][]string // term -> []doc id (always a single-element slice here)
}

// Build runs discovery, converts every discovered file with up to
// cfg.MaxWorkers concurrent workers (each making up to 3 attempts on I/O
// errors with exponential backoff), and atomically replaces repo's state.
// Per-file conversion failures are logged and skipped; they do not fail
// the build.
func (idx *Indexer) Build(ctx context.Context, repo *repository.Repository) error {
	excludes, err := idx.collectExcludePatterns()
	if err != nil {
		return err
	}

	files, err := Discover(idx.cfg.KnowledgeDirs, idx.cfg.FileExtensions, excludes)
	if err != nil {
		return err
	}

	results := idx.convertAll(ctx, files)

	newDocuments := make(map[string]*repository.Document, len(results))
	newIndex := make(map[string][]string)
	for _, r := range results {
		newDocuments[r.doc.ID] = r.doc
		for term, ids := range r.terms {
			newIndex[term] = appendSorted(newIndex[term], ids[0])
		}
	}

	repo.ReplaceIndex(newDocuments, newIndex)

	if idx.cfg.CacheFile != "" {
		if err := repo.SaveToCache(idx.cfg.CacheFile); err != nil {
			idx.logger.Warn("writing index snapshot failed", zap.Error(err))
		}
	}
	return nil
}

func (idx *Indexer) collectExcludePatterns() ([]string, error) {
	parser := ignore.NewParser(idx.cfg.IgnoreFiles, idx.cfg.FallbackExcludes)
	var all []string
	for _, dir := range idx.cfg.KnowledgeDirs {
		if _, err := os.Stat(dir); err != nil {
			idx.logger.Info("knowledge directory does not exist, skipping", zap.String("dir", dir))
			continue
		}
		patterns, err := parser.ParseProject(dir)
		if err != nil {
			return nil, err
		}
		all = append(all, patterns...)
	}
	return all, nil
}

func (idx *Indexer) convertAll(ctx context.Context, files []SourceFile) []workerResult {
	jobs := make(chan SourceFile, len(files))
	out := make(chan []workerResult, len(files))

	var wg sync.WaitGroup
	for w := 0; w < idx.cfg.MaxWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range jobs {
				rs, err := idx.convertOne(ctx, f)
				if err != nil {
					idx.logger.Warn("skipping file", zap.String("path", f.Path), zap.Error(err))
					continue
				}
				out <- rs
			}
		}()
	}

	for _, f := range files {
		jobs <- f
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(out)
	}()

	results := make([]workerResult, 0, len(files))
	for rs := range out {
		results = append(results, rs...)
	}
	return results
}

// convertOne retries I/O errors up to 3 attempts with exponential backoff
// from 1s to 10s; parse errors (anything the converter returns that isn't
// an os.PathError-style I/O failure) are not retried. When chunking is
// enabled the converted text is split into one document per chunk, each
// keyed `<relative-path>#<index>`; otherwise the whole file is one
// document.
func (idx *Indexer) convertOne(ctx context.Context, f SourceFile) ([]workerResult, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second
	policy.MaxInterval = 10 * time.Second

	converted, err := backoff.Retry(ctx, func() (Converted, error) {
		c, err := idx.converter.Convert(ctx, f.Path)
		if err != nil && !isRetryableIOError(err) {
			return Converted{}, backoff.Permanent(err)
		}
		return c, err
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(3))
	if err != nil {
		return nil, err
	}

	baseID, err := documentID(f)
	if err != nil {
		return nil, err
	}

	chunks := splitText(converted.MarkdownText, idx.cfg.ChunkSize, idx.cfg.ChunkOverlap)
	results := make([]workerResult, 0, len(chunks))
	for i, text := range chunks {
		id := baseID
		if len(chunks) > 1 {
			id = fmt.Sprintf("%s#%d", baseID, i)
		}

		doc := &repository.Document{
			ID:      id,
			Content: text,
			Metadata: map[string]interface{}{
				"name":          converted.Name,
				"path":          f.Path,
				"knowledge_dir": f.KnowledgeDir,
				"chunk_index":   i,
			},
			IndexedAt: time.Now(),
		}

		terms := make(map[string][]string)
		for _, term := range tokenize(text) {
			terms[term] = []string{id}
		}

		results = append(results, workerResult{doc: doc, terms: terms})
	}

	if idx.cfg.Store != nil && idx.cfg.Collection != "" && len(results) > 0 {
		vecDocs := make([]vectorstore.Document, len(results))
		for i, r := range results {
			vecDocs[i] = vectorstore.Document{ID: r.doc.ID, Content: r.doc.Content, Metadata: r.doc.Metadata}
		}
		if _, err := idx.cfg.Store.AddDocuments(ctx, idx.cfg.Collection, vecDocs); err != nil {
			idx.logger.Warn("embedding documents into vector backend failed",
				zap.String("path", f.Path), zap.Error(err))
		}
	}

	return results, nil
}

func isRetryableIOError(err error) bool {
	var pathErr *os.PathError
	return errors.As(err, &pathErr) || errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, os.ErrClosed)
}

func documentID(f SourceFile) (string, error) {
	rel, err := filepath.Rel(f.KnowledgeDir, f.Path)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	seen := make(map[string]bool, len(fields))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			terms = append(terms, f)
		}
	}
	return terms
}

func appendSorted(postings []string, id string) []string {
	lo, hi := 0, len(postings)
	for lo < hi {
		mid := (lo + hi) / 2
		if postings[mid] < id {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(postings) && postings[lo] == id {
		return postings
	}
	postings = append(postings, "")
	copy(postings[lo+1:], postings[lo:])
	postings[lo] = id
	return postings
}
