package query

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/parchment-dev/kbase/internal/repository"
	"github.com/parchment-dev/kbase/internal/vectorstore"
)

var queryTracer = otel.Tracer("kbase.query")

// Engine runs vector, keyword, hybrid, and MMR searches against one
// project's collection and repository. An Engine is scoped to a single
// project; callers hold one Engine per project, not one for the whole
// service.
type Engine struct {
	store      vectorstore.Store
	embedder   vectorstore.Embedder
	repo       *repository.Repository
	collection string
	logger     *zap.Logger
}

// New constructs an Engine bound to a single project's collection.
func New(store vectorstore.Store, embedder vectorstore.Embedder, repo *repository.Repository, collection string, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:      store,
		embedder:   embedder,
		repo:       repo,
		collection: collection,
		logger:     logger,
	}
}

// SearchVector embeds text once and delegates to the vector backend. An
// empty query returns an empty result set, not an error.
func (e *Engine) SearchVector(ctx context.Context, text string, topK int) ([]Result, error) {
	ctx, span := queryTracer.Start(ctx, "Engine.SearchVector")
	defer span.End()

	if text == "" {
		return []Result{}, nil
	}
	if topK <= 0 {
		return nil, ErrInvalidTopK
	}

	hits, err := e.store.QueryVector(ctx, e.collection, text, topK, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query: vector search: %w", err)
	}
	return fromSearchResults(hits), nil
}

// SearchKeyword tokenizes text on whitespace (lowercased) and ranks
// documents by how many query terms they contain, using the repository's
// posting-list snapshot. Ties break on document id, ascending, for
// deterministic output.
//
// The vector backend's native QueryKeyword is tried first; backends that
// return ErrNotImplemented (both realizations in this module do) fall
// through to the repository path.
func (e *Engine) SearchKeyword(ctx context.Context, text string, topK int) ([]Result, error) {
	ctx, span := queryTracer.Start(ctx, "Engine.SearchKeyword")
	defer span.End()

	if text == "" {
		return []Result{}, nil
	}
	if topK <= 0 {
		return nil, ErrInvalidTopK
	}

	hits, err := e.store.QueryKeyword(ctx, e.collection, text, topK, nil)
	if err == nil {
		return fromSearchResults(hits), nil
	}
	if !errors.Is(err, vectorstore.ErrNotImplemented) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query: keyword search: %w", err)
	}

	return e.searchKeywordFromRepository(text, topK), nil
}

func (e *Engine) searchKeywordFromRepository(text string, topK int) []Result {
	terms := tokenize(text)
	if len(terms) == 0 {
		return []Result{}
	}

	postings := e.repo.GetPostingsSnapshot(terms)

	counts := make(map[string]int)
	for _, ids := range postings {
		for _, id := range ids {
			counts[id]++
		}
	}

	ranked := make([]Result, 0, len(counts))
	for id, count := range counts {
		ranked = append(ranked, Result{ID: id, Score: float32(count)})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ID < ranked[j].ID
	})

	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return ranked
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

func fromSearchResults(hits []vectorstore.SearchResult) []Result {
	out := make([]Result, len(hits))
	for i, h := range hits {
		out[i] = Result{ID: h.ID, Score: h.Score, Content: h.Content, Metadata: h.Metadata}
	}
	return out
}

// expandedK is the candidate-set size RRF fuses over: at least 20, or
// top_k if the caller asked for more than that.
func expandedK(topK int) int {
	if topK > 20 {
		return topK
	}
	return 20
}
