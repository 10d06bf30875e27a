// Package kberrors defines the stable error-kind taxonomy shared across
// kbase's core packages, following the flat-sentinel-set convention used
// throughout the vectorstore and project packages (ErrCollectionNotFound,
// ErrProjectNotFound, ...) rather than a class hierarchy.
package kberrors

import "errors"

// Sentinel errors. Callers match with errors.Is; wrap with fmt.Errorf("%w: ...")
// to add context without losing the sentinel identity.
var (
	// ErrInvalidInput covers empty queries, mismatched list lengths,
	// alpha outside [0,1], unknown search modes, and delete calls with
	// neither ids nor a filter.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfigError covers invalid configuration values at construction.
	ErrConfigError = errors.New("invalid configuration")

	// ErrNotFound covers missing projects or documents.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateName covers project name collisions on create/update/import.
	ErrDuplicateName = errors.New("duplicate name")

	// ErrBackendError covers vector backend connectivity or operation failure.
	ErrBackendError = errors.New("backend error")

	// ErrEmbeddingError covers embedding model inference failure.
	ErrEmbeddingError = errors.New("embedding error")

	// ErrIOError covers filesystem or snapshot failures, some retryable.
	ErrIOError = errors.New("io error")

	// ErrCacheInvalid covers a cache file that is unreadable or not JSON.
	// It never surfaces to a caller; it only triggers a rebuild.
	ErrCacheInvalid = errors.New("cache invalid")
)

// Kind returns a stable, machine-readable tag for err, matched against the
// taxonomy above via errors.Is. Returns "unknown" for non-nil errors outside
// the taxonomy, so logging call sites can always emit a kind field for a
// real error; a nil error yields the empty string.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrConfigError):
		return "config_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDuplicateName):
		return "duplicate_name"
	case errors.Is(err, ErrBackendError):
		return "backend_error"
	case errors.Is(err, ErrEmbeddingError):
		return "embedding_error"
	case errors.Is(err, ErrIOError):
		return "io_error"
	case errors.Is(err, ErrCacheInvalid):
		return "cache_invalid"
	default:
		return "unknown"
	}
}
