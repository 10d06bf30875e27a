package health

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Monitor tracks per-project query metrics and derives health status and
// alerts from them. All public methods are safe for concurrent use; each
// project's counters live behind their own mutex so recording a query for
// project A never blocks a read of project B.
type Monitor struct {
	mu       sync.RWMutex
	projects map[string]*projectMetrics

	// documentCount, when set, lets get_project_health raise the
	// document_count==0 alert without this package owning a repository.
	documentCount func(projectID string) int

	// backendHealthy, when set, feeds the unhealthy classification's
	// "backend reports unhealthy" clause.
	backendHealthy func() bool

	logger *zap.Logger
}

// Option configures optional Monitor dependencies.
type Option func(*Monitor)

// WithDocumentCounter wires a callback get_project_health uses to raise
// the zero-document alert.
func WithDocumentCounter(f func(projectID string) int) Option {
	return func(m *Monitor) { m.documentCount = f }
}

// WithBackendHealthChecker wires a callback feeding the unhealthy
// classification's backend-connectivity clause.
func WithBackendHealthChecker(f func() bool) Option {
	return func(m *Monitor) { m.backendHealthy = f }
}

// New constructs an empty Monitor.
func New(logger *zap.Logger, opts ...Option) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Monitor{
		projects: make(map[string]*projectMetrics),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type projectMetrics struct {
	mu sync.Mutex

	latencies [windowSize]float64
	head      int
	count     int

	total   uint64
	errors  uint64
	hits    uint64
	misses  uint64
	lastAt  time.Time
}

func (m *Monitor) metricsFor(projectID string) *projectMetrics {
	m.mu.RLock()
	pm, ok := m.projects[projectID]
	m.mu.RUnlock()
	if ok {
		return pm
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if pm, ok := m.projects[projectID]; ok {
		return pm
	}
	pm = &projectMetrics{}
	m.projects[projectID] = pm
	return pm
}

// RecordQuery appends one query's outcome to projectID's rolling window.
func (m *Monitor) RecordQuery(projectID string, latencyMS float64, success bool, cacheHit bool) {
	pm := m.metricsFor(projectID)

	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.latencies[pm.head] = latencyMS
	pm.head = (pm.head + 1) % windowSize
	if pm.count < windowSize {
		pm.count++
	}

	pm.total++
	if !success {
		pm.errors++
	}
	if cacheHit {
		pm.hits++
	} else {
		pm.misses++
	}
	pm.lastAt = time.Now()
}

// GetProjectHealth computes projectID's current status. ok is false if no
// query has ever been recorded for projectID.
func (m *Monitor) GetProjectHealth(projectID string) (Status, bool) {
	m.mu.RLock()
	pm, ok := m.projects[projectID]
	m.mu.RUnlock()
	if !ok {
		return Status{}, false
	}
	return m.statusFor(projectID, pm), true
}

// GetAllProjectsHealth computes status for every project that has
// recorded at least one query.
func (m *Monitor) GetAllProjectsHealth() map[string]Status {
	m.mu.RLock()
	ids := make([]string, 0, len(m.projects))
	metrics := make([]*projectMetrics, 0, len(m.projects))
	for id, pm := range m.projects {
		ids = append(ids, id)
		metrics = append(metrics, pm)
	}
	m.mu.RUnlock()

	out := make(map[string]Status, len(ids))
	for i, id := range ids {
		out[id] = m.statusFor(id, metrics[i])
	}
	return out
}

// ResetMetrics clears projectID's counters, or every project's if
// projectID is empty.
func (m *Monitor) ResetMetrics(projectID string) {
	if projectID == "" {
		m.mu.Lock()
		m.projects = make(map[string]*projectMetrics)
		m.mu.Unlock()
		return
	}

	m.mu.Lock()
	delete(m.projects, projectID)
	m.mu.Unlock()
}

func (m *Monitor) statusFor(projectID string, pm *projectMetrics) Status {
	pm.mu.Lock()
	samples := make([]float64, pm.count)
	copy(samples, pm.latencies[:pm.count])
	total, errCount, hits, misses, lastAt := pm.total, pm.errors, pm.hits, pm.misses, pm.lastAt
	pm.mu.Unlock()

	avg, p95, p99 := percentiles(samples)

	var errorRate, cacheHitRate float64
	if total > 0 {
		errorRate = float64(errCount) / float64(total)
	}
	if hits+misses > 0 {
		cacheHitRate = float64(hits) / float64(hits+misses)
	}

	status := Status{
		ProjectID:    projectID,
		TotalQueries: total,
		Errors:       errCount,
		CacheHits:    hits,
		CacheMisses:  misses,
		AvgLatencyMS: avg,
		P95LatencyMS: p95,
		P99LatencyMS: p99,
		ErrorRate:    errorRate,
		CacheHitRate: cacheHitRate,
		LastQueryAt:  lastAt,
	}

	if m.documentCount != nil {
		status.DocumentCount = m.documentCount(projectID)
	}

	backendUnhealthy := m.backendHealthy != nil && !m.backendHealthy()
	switch {
	case errorRate > errorRateUnhealthy || backendUnhealthy:
		status.State = StateUnhealthy
	case avg > latencyAlertMS || p99 > degradedP99MS:
		status.State = StateDegraded
	default:
		status.State = StateHealthy
	}

	status.Alerts = collectAlerts(status, m.documentCount != nil)
	return status
}

func collectAlerts(s Status, countKnown bool) []string {
	var alerts []string
	if s.AvgLatencyMS > latencyAlertMS {
		alerts = append(alerts, "avg_latency_exceeds_500ms")
	}
	if s.ErrorRate > errorRateAlert {
		alerts = append(alerts, "error_rate_exceeds_10_percent")
	}
	if s.TotalQueries >= cacheHitMinQueries && s.CacheHitRate < cacheHitRateAlert {
		alerts = append(alerts, "cache_hit_rate_below_50_percent")
	}
	if !s.LastQueryAt.IsZero() && time.Since(s.LastQueryAt) > inactivityAlert {
		alerts = append(alerts, "inactive_over_60_minutes")
	}
	if countKnown && s.DocumentCount == 0 {
		alerts = append(alerts, "zero_documents")
	}
	return alerts
}

// percentiles computes average, p95, and p99 from samples via
// sort-and-index. With fewer than 20 samples there aren't enough points
// for a stable percentile estimate, so p95/p99 fall back to the maximum
// observed latency.
func percentiles(samples []float64) (avg, p95, p99 float64) {
	if len(samples) == 0 {
		return 0, 0, 0
	}

	var sum float64
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	for _, v := range sorted {
		sum += v
	}
	sort.Float64s(sorted)
	avg = sum / float64(len(sorted))

	if len(sorted) < 20 {
		max := sorted[len(sorted)-1]
		return avg, max, max
	}

	p95 = sorted[percentileIndex(len(sorted), 0.95)]
	p99 = sorted[percentileIndex(len(sorted), 0.99)]
	return avg, p95, p99
}

func percentileIndex(n int, p float64) int {
	idx := int(float64(n)*p)
	if idx >= n {
		idx = n - 1
	}
	return idx
}
