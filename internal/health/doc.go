// Package health tracks per-project query metrics — latency, errors,
// cache hit rate — and derives a coarse status and alert list from them.
//
// A Monitor is process-wide and keyed by project id; it has no notion of
// what a project is beyond that string, so wiring it to ProjectManager's
// actual lifecycle is the facade's job, not this package's.
package health
