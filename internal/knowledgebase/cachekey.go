package knowledgebase

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/parchment-dev/kbase/internal/query"
)

// cacheKey hashes a query's full identity — normalized text, mode, top_k,
// alpha, and filter — so two queries that differ in any of those never
// collide in the per-project cache.
func cacheKey(text string, mode query.Mode, topK int, alpha float64, filter map[string]interface{}) string {
	normalized := strings.ToLower(strings.TrimSpace(text))

	var b strings.Builder
	fmt.Fprintf(&b, "%s\x00%s\x00%d\x00%g\x00", normalized, mode, topK, alpha)

	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%v\x00", k, filter[k])
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
