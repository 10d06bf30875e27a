package query

import (
	"fmt"

	"github.com/parchment-dev/kbase/internal/kberrors"
)

// Result is one ranked hit returned by every search mode.
type Result struct {
	ID       string                 `json:"id"`
	Score    float32                `json:"score"`
	Content  string                 `json:"content,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Mode selects which search strategy search_hybrid-style callers want run
// under an MMR diversification pass.
type Mode string

const (
	ModeVector  Mode = "vector"
	ModeKeyword Mode = "keyword"
	ModeHybrid  Mode = "hybrid"
)

// rrfK is the standard Reciprocal Rank Fusion constant.
const rrfK = 60

// DefaultAlpha weights search_hybrid toward vector similarity, matching the
// contract's documented default.
const DefaultAlpha = 0.7

// Sentinels wrap kberrors.ErrInvalidInput so callers can match either the
// specific condition or the shared taxonomy kind via errors.Is.
var (
	// ErrInvalidAlpha is returned when alpha falls outside [0, 1].
	ErrInvalidAlpha = fmt.Errorf("%w: alpha must be in [0, 1]", kberrors.ErrInvalidInput)

	// ErrInvalidLambda is returned when lambda falls outside [0, 1].
	ErrInvalidLambda = fmt.Errorf("%w: lambda must be in [0, 1]", kberrors.ErrInvalidInput)

	// ErrInvalidTopK is returned when top_k is not positive.
	ErrInvalidTopK = fmt.Errorf("%w: top_k must be positive", kberrors.ErrInvalidInput)

	// ErrUnknownMode is returned by SearchWithMMR for an unrecognized mode.
	ErrUnknownMode = fmt.Errorf("%w: unknown search mode", kberrors.ErrInvalidInput)
)
