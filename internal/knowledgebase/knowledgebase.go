package knowledgebase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/parchment-dev/kbase/internal/health"
	"github.com/parchment-dev/kbase/internal/indexer"
	"github.com/parchment-dev/kbase/internal/kberrors"
	"github.com/parchment-dev/kbase/internal/lru"
	"github.com/parchment-dev/kbase/internal/query"
	"github.com/parchment-dev/kbase/internal/repository"
	"github.com/parchment-dev/kbase/internal/vectorstore"
)

// Stats is a point-in-time snapshot of a project's knowledge base.
type Stats struct {
	ProjectID     string      `json:"project_id"`
	DocumentCount int         `json:"document_count"`
	TermCount     int         `json:"term_count"`
	Cache         lru.Stats   `json:"cache"`
	Health        *health.Status `json:"health,omitempty"`
}

// KnowledgeBase wires together one project's Embedder, vector backend,
// document repository, query engine, and query cache.
type KnowledgeBase struct {
	projectID  string
	collection string

	store  vectorstore.Store
	repo   *repository.Repository
	query  *query.Engine
	cache  *lru.Cache[string, any]
	idx    *indexer.Indexer
	mon    *health.Monitor
	notify *Notifier

	logger *zap.Logger
}

// Option configures optional KnowledgeBase behavior.
type Option func(*KnowledgeBase)

// WithNotifier attaches a Notifier that publishes lifecycle events as this
// KnowledgeBase's index is rebuilt. Omit to run without NATS.
func WithNotifier(n *Notifier) Option {
	return func(kb *KnowledgeBase) { kb.notify = n }
}

// New constructs a KnowledgeBase for one project. idx may be nil if the
// project has no configured knowledge directories (Ingest still works;
// RebuildIndex becomes a no-op). mon may be nil to disable health
// recording.
func New(projectID, collection string, store vectorstore.Store, embedder vectorstore.Embedder, repo *repository.Repository, cache *lru.Cache[string, any], idx *indexer.Indexer, mon *health.Monitor, logger *zap.Logger, opts ...Option) *KnowledgeBase {
	if logger == nil {
		logger = zap.NewNop()
	}
	kb := &KnowledgeBase{
		projectID:  projectID,
		collection: collection,
		store:      store,
		repo:       repo,
		query:      query.New(store, embedder, repo, collection, logger),
		cache:      cache,
		idx:        idx,
		mon:        mon,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(kb)
	}
	return kb
}

// Ingest adds documents directly: embeds and upserts them into the vector
// backend, adds them to the repository's document table, tokenizes their
// content into the inverted index, and invalidates the query cache (a
// re-ingest can change what any cached result should have returned).
func (kb *KnowledgeBase) Ingest(ctx context.Context, docs []vectorstore.Document) error {
	if len(docs) == 0 {
		return fmt.Errorf("%w: no documents to ingest", kberrors.ErrInvalidInput)
	}

	if _, err := kb.store.AddDocuments(ctx, kb.collection, docs); err != nil {
		return fmt.Errorf("knowledgebase: adding documents to vector backend: %w", err)
	}

	for _, d := range docs {
		kb.repo.AddDocument(d.ID, &repository.Document{
			ID:        d.ID,
			Content:   d.Content,
			Metadata:  d.Metadata,
			IndexedAt: time.Now(),
		})
		for _, term := range tokenize(d.Content) {
			kb.repo.IndexTerm(term, d.ID)
		}
	}

	kb.cache.Clear()
	return nil
}

// RebuildIndex re-runs file discovery and conversion from scratch via the
// wired Indexer, atomically replacing the repository's document table and
// inverted index, and invalidates the query cache. A no-op if this
// KnowledgeBase has no Indexer (the project has no knowledge directories
// configured).
func (kb *KnowledgeBase) RebuildIndex(ctx context.Context) error {
	if kb.idx == nil {
		return nil
	}
	if err := kb.idx.Build(ctx, kb.repo); err != nil {
		return fmt.Errorf("knowledgebase: rebuilding index: %w", err)
	}
	kb.cache.Clear()
	kb.notify.IngestCompleted(kb.projectID, kb.repo.DocumentCount())
	return nil
}

// Query runs mode (vector, keyword, or hybrid) against text, consulting
// the per-project cache first when useCache is set, and always recording
// the outcome with the health monitor.
func (kb *KnowledgeBase) Query(ctx context.Context, text string, mode query.Mode, topK int, alpha float64, filter map[string]interface{}, useCache bool) ([]query.Result, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: query text must not be empty", kberrors.ErrInvalidInput)
	}

	start := time.Now()
	key := cacheKey(text, mode, topK, alpha, filter)

	if useCache {
		if v, ok := kb.cache.Get(key); ok {
			results, _ := v.([]query.Result)
			kb.record(start, true, true)
			return results, nil
		}
	}

	results, err := kb.runMode(ctx, text, mode, topK, alpha)
	kb.record(start, err == nil, false)
	if err != nil {
		return nil, err
	}

	if useCache {
		kb.cache.Put(key, results)
	}
	return results, nil
}

func (kb *KnowledgeBase) runMode(ctx context.Context, text string, mode query.Mode, topK int, alpha float64) ([]query.Result, error) {
	switch mode {
	case query.ModeVector:
		return kb.query.SearchVector(ctx, text, topK)
	case query.ModeKeyword:
		return kb.query.SearchKeyword(ctx, text, topK)
	case query.ModeHybrid, "":
		return kb.query.SearchHybrid(ctx, text, topK, alpha)
	default:
		return nil, fmt.Errorf("%w: unknown search mode %q", kberrors.ErrInvalidInput, mode)
	}
}

func (kb *KnowledgeBase) record(start time.Time, success, cacheHit bool) {
	if kb.mon == nil {
		return
	}
	latencyMS := float64(time.Since(start)) / float64(time.Millisecond)
	kb.mon.RecordQuery(kb.projectID, latencyMS, success, cacheHit)
}

// ClearCache discards every cached query result for this project.
func (kb *KnowledgeBase) ClearCache() {
	kb.cache.Clear()
}

// GetStats returns a snapshot of document/term counts, cache utilization,
// and (if a health monitor is wired) this project's current health.
func (kb *KnowledgeBase) GetStats() Stats {
	stats := Stats{
		ProjectID:     kb.projectID,
		DocumentCount: kb.repo.DocumentCount(),
		TermCount:     kb.repo.TermCount(),
		Cache:         kb.cache.Stats(),
	}
	if kb.mon != nil {
		if s, ok := kb.mon.GetProjectHealth(kb.projectID); ok {
			stats.Health = &s
		}
	}
	return stats
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
