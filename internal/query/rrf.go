package query

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/codes"
)

// SearchHybrid fuses vector and keyword rankings with Reciprocal Rank
// Fusion. alpha weights the vector ranking; alpha=1 is pure vector,
// alpha=0 is pure keyword, and the contract's default is 0.7.
//
// Both underlying searches are expanded to max(20, topK) candidates before
// fusion so RRF has enough of the tail to distinguish documents that only
// one mode surfaced.
func (e *Engine) SearchHybrid(ctx context.Context, text string, topK int, alpha float64) ([]Result, error) {
	ctx, span := queryTracer.Start(ctx, "Engine.SearchHybrid")
	defer span.End()

	if topK <= 0 {
		return nil, ErrInvalidTopK
	}
	if alpha < 0 || alpha > 1 {
		return nil, ErrInvalidAlpha
	}
	if text == "" {
		return []Result{}, nil
	}

	candidates := expandedK(topK)

	vecResults, err := e.SearchVector(ctx, text, candidates)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query: hybrid search: %w", err)
	}
	kwResults, err := e.SearchKeyword(ctx, text, candidates)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query: hybrid search: %w", err)
	}

	fused := fuseRRF(vecResults, kwResults, alpha)
	if len(fused) > topK {
		fused = fused[:topK]
	}
	return fused, nil
}

// fuseRRF combines two ranked lists via Reciprocal Rank Fusion. A document
// missing from one list is given a sentinel rank one past the end of the
// combined candidate set, rather than a fixed constant, so the penalty
// scales with how many candidates were actually considered.
func fuseRRF(vec, kw []Result, alpha float64) []Result {
	vecRank := make(map[string]int, len(vec))
	for i, r := range vec {
		vecRank[r.ID] = i + 1
	}
	kwRank := make(map[string]int, len(kw))
	for i, r := range kw {
		kwRank[r.ID] = i + 1
	}

	byID := make(map[string]Result)
	for _, r := range vec {
		byID[r.ID] = r
	}
	for _, r := range kw {
		if _, ok := byID[r.ID]; !ok {
			byID[r.ID] = r
		}
	}

	sentinel := len(byID) + 1

	out := make([]Result, 0, len(byID))
	for id, r := range byID {
		rv, ok := vecRank[id]
		if !ok {
			rv = sentinel
		}
		rk, ok := kwRank[id]
		if !ok {
			rk = sentinel
		}
		score := alpha*(1.0/float64(rrfK+rv)) + (1-alpha)*(1.0/float64(rrfK+rk))
		r.Score = float32(score)
		out = append(out, r)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}
