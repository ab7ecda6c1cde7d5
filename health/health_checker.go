// Package health reports service health from the study store state.
package health

import (
	"math"
	"runtime"
	"time"

	"github.com/avasseur/ipd-api/interfaces"
)

// Compile-time check to ensure Checker implements HealthChecker
var _ interfaces.HealthChecker = (*Checker)(nil)

// Checker derives health status from the store contents. A service with no
// study uploaded yet is idle, not unhealthy; results older than the
// staleness threshold degrade the status.
type Checker struct {
	store          interfaces.StudyStore
	staleThreshold time.Duration
}

// NewChecker creates a health checker.
func NewChecker(store interfaces.StudyStore, staleThreshold time.Duration) *Checker {
	return &Checker{store: store, staleThreshold: staleThreshold}
}

// Check returns the health verdict and the details served on /health.
func (c *Checker) Check() (bool, map[string]any) {
	km := c.store.GetKMPoints()
	results := c.store.GetResults()
	lastUploaded := c.store.GetLastUploaded()
	lastReconstructed := c.store.GetLastReconstructed()
	reconstructing := c.store.IsReconstructing()
	uptime := time.Since(c.store.GetServerStartTime())

	var status string
	healthy := true
	switch {
	case len(km) == 0:
		status = "idle"
	case len(results) == 0:
		status = "awaiting_reconstruction"
	case !lastReconstructed.IsZero() && time.Since(lastReconstructed) > c.staleThreshold:
		status = "stale"
	default:
		status = "healthy"
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	details := map[string]any{
		"status":             status,
		"uptime_seconds":     math.Round(uptime.Seconds()),
		"survival_points":    len(km),
		"reconstructed_arms": len(results),
		"is_reconstructing":  reconstructing,
		"system": map[string]any{
			"goroutines": runtime.NumGoroutine(),
			"alloc_mb":   int(m.Alloc / 1024 / 1024),
			"sys_mb":     int(m.Sys / 1024 / 1024),
			"num_gc":     m.NumGC,
		},
	}
	if !lastUploaded.IsZero() {
		details["last_upload"] = lastUploaded.Format(time.RFC3339)
	}
	if !lastReconstructed.IsZero() {
		details["last_reconstruction"] = lastReconstructed.Format(time.RFC3339)
	}

	return healthy, details
}
