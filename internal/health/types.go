package health

import "time"

const (
	windowSize         = 100
	latencyAlertMS     = 500.0
	degradedP99MS      = 1000.0
	errorRateUnhealthy = 0.5
	errorRateAlert     = 0.1
	cacheHitRateAlert  = 0.5
	cacheHitMinQueries = 10
	inactivityAlert    = 60 * time.Minute
)

// State is the coarse health classification get_project_health derives.
type State string

const (
	StateHealthy   State = "healthy"
	StateDegraded  State = "degraded"
	StateUnhealthy State = "unhealthy"
)

// Status is a project's point-in-time health snapshot.
type Status struct {
	ProjectID     string    `json:"project_id"`
	State         State     `json:"state"`
	TotalQueries  uint64    `json:"total_queries"`
	Errors        uint64    `json:"errors"`
	CacheHits     uint64    `json:"cache_hits"`
	CacheMisses   uint64    `json:"cache_misses"`
	AvgLatencyMS  float64   `json:"avg_latency_ms"`
	P95LatencyMS  float64   `json:"p95_latency_ms"`
	P99LatencyMS  float64   `json:"p99_latency_ms"`
	ErrorRate     float64   `json:"error_rate"`
	CacheHitRate  float64   `json:"cache_hit_rate"`
	DocumentCount int       `json:"document_count"`
	LastQueryAt   time.Time `json:"last_query_at"`
	Alerts        []string  `json:"alerts,omitempty"`
}
