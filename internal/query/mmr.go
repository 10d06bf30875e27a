package query

import (
	"context"
	"fmt"
	"math"

	"go.opentelemetry.io/otel/codes"
)

// SearchWithMMR runs one of the three search modes to build a candidate
// pool, then greedily re-ranks it with Maximal Marginal Relevance: each
// step picks the candidate maximizing lambda*relevance minus
// (1-lambda)*similarity to whatever has already been selected.
//
// Candidate embeddings aren't available from the initial search results
// (the vector backend has no bulk-vector-read API — see the project
// export format's documented tradeoff), so MMR re-embeds each candidate's
// content via the configured Embedder in a single batched call.
func (e *Engine) SearchWithMMR(ctx context.Context, text string, topK int, lambda float64, mode Mode) ([]Result, error) {
	ctx, span := queryTracer.Start(ctx, "Engine.SearchWithMMR")
	defer span.End()

	if topK <= 0 {
		return nil, ErrInvalidTopK
	}
	if lambda < 0 || lambda > 1 {
		return nil, ErrInvalidLambda
	}
	if text == "" {
		return []Result{}, nil
	}

	pool := expandedK(topK)

	var candidates []Result
	var err error
	switch mode {
	case ModeVector:
		candidates, err = e.SearchVector(ctx, text, pool)
	case ModeKeyword:
		candidates, err = e.SearchKeyword(ctx, text, pool)
	case ModeHybrid:
		candidates, err = e.SearchHybrid(ctx, text, pool, DefaultAlpha)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if len(candidates) == 0 {
		return []Result{}, nil
	}

	e.fillMissingContent(candidates)

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Content
	}
	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("query: embedding MMR candidates: %w", err)
	}

	relevance := normalizeScores(candidates)

	selected := mmrSelect(candidates, vectors, relevance, lambda, topK)
	return selected, nil
}

// fillMissingContent backfills Content for results the keyword path
// produced (which carries only id and score) from the repository, when
// available. A document the repository doesn't know about keeps an empty
// Content, which embeds to a zero vector and so never biases diversity
// selection toward or against it.
func (e *Engine) fillMissingContent(candidates []Result) {
	for i, c := range candidates {
		if c.Content != "" {
			continue
		}
		doc, err := e.repo.GetDocument(c.ID)
		if err != nil {
			continue
		}
		candidates[i].Content = doc.Content
		if candidates[i].Metadata == nil {
			candidates[i].Metadata = doc.Metadata
		}
	}
}

// normalizeScores min-max scales each candidate's score into [0, 1] so
// relevance is comparable across modes whose raw score ranges differ
// (RRF scores are tiny fractions, vector similarity is closer to [0,1]).
func normalizeScores(candidates []Result) []float64 {
	if len(candidates) == 0 {
		return nil
	}
	lo, hi := float64(candidates[0].Score), float64(candidates[0].Score)
	for _, c := range candidates[1:] {
		v := float64(c.Score)
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	out := make([]float64, len(candidates))
	spread := hi - lo
	for i, c := range candidates {
		if spread == 0 {
			out[i] = 1
			continue
		}
		out[i] = (float64(c.Score) - lo) / spread
	}
	return out
}

func mmrSelect(candidates []Result, vectors [][]float32, relevance []float64, lambda float64, topK int) []Result {
	remaining := make([]int, len(candidates))
	for i := range candidates {
		remaining[i] = i
	}

	selected := make([]Result, 0, topK)
	var selectedVectors [][]float32

	for len(selected) < topK && len(remaining) > 0 {
		bestPos := 0
		bestScore := math.Inf(-1)

		for pos, idx := range remaining {
			maxSim := 0.0
			for _, sv := range selectedVectors {
				sim := float64(cosineSimilarity(vectors[idx], sv))
				if sim > maxSim {
					maxSim = sim
				}
			}
			mmrScore := lambda*relevance[idx] - (1-lambda)*maxSim
			if mmrScore > bestScore {
				bestScore = mmrScore
				bestPos = pos
			}
		}

		chosen := remaining[bestPos]
		selected = append(selected, candidates[chosen])
		selectedVectors = append(selectedVectors, vectors[chosen])
		remaining = append(remaining[:bestPos], remaining[bestPos+1:]...)
	}

	return selected
}

// cosineSimilarity mirrors the vector store's exact-search similarity
// computation, operating directly on []float32 embeddings instead of
// converting through []float64.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	magA = math.Sqrt(magA)
	magB = math.Sqrt(magB)
	if magA == 0 || magB == 0 {
		return 0
	}
	return float32(dot / (magA * magB))
}
