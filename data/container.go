// Package data provides thread-safe storage for the uploaded study payload
// and completed reconstruction results, with atomic swaps so readers never
// observe a partial update.
package data

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/avasseur/ipd-api/guyot/entities"
	"github.com/avasseur/ipd-api/interfaces"
	"github.com/avasseur/ipd-api/logging"
)

// Compile-time check to ensure StudyContainer implements StudyStore
var _ interfaces.StudyStore = (*StudyContainer)(nil)

// StudyContainer holds the study payload and reconstruction results behind
// atomic pointers for zero-downtime replacement.
type StudyContainer struct {
	kmPoints          atomic.Value // []entities.KMPoint
	atRiskPoints      atomic.Value // []entities.AtRiskPoint
	results           atomic.Value // map[string]*entities.ReconstructionResult
	lastUploaded      atomic.Value // time.Time
	lastReconstructed atomic.Value // time.Time
	reconstructing    atomic.Bool
	serverStartTime   atomic.Value // time.Time
}

// NewStudyContainer creates a container with empty data.
func NewStudyContainer() *StudyContainer {
	sc := &StudyContainer{}
	sc.kmPoints.Store(make([]entities.KMPoint, 0))
	sc.atRiskPoints.Store(make([]entities.AtRiskPoint, 0))
	sc.results.Store(make(map[string]*entities.ReconstructionResult))
	sc.lastUploaded.Store(time.Time{})
	sc.lastReconstructed.Store(time.Time{})
	sc.serverStartTime.Store(time.Time{})
	return sc
}

// ArmKey builds the results map key for an (endpoint, arm) pair.
func ArmKey(endpoint, arm string) string {
	return fmt.Sprintf("%s|%s", endpoint, arm)
}

// GetKMPoints returns the stored KM curve payload.
func (sc *StudyContainer) GetKMPoints() []entities.KMPoint {
	if v := sc.kmPoints.Load(); v != nil {
		if points, ok := v.([]entities.KMPoint); ok {
			return points
		}
	}

	logging.Warn("KM point list is empty or invalid")
	return []entities.KMPoint{}
}

// GetAtRiskPoints returns the stored at-risk table payload.
func (sc *StudyContainer) GetAtRiskPoints() []entities.AtRiskPoint {
	if v := sc.atRiskPoints.Load(); v != nil {
		if points, ok := v.([]entities.AtRiskPoint); ok {
			return points
		}
	}

	logging.Warn("At-risk point list is empty or invalid")
	return []entities.AtRiskPoint{}
}

// GetResults returns all completed reconstructions keyed by endpoint|arm.
func (sc *StudyContainer) GetResults() map[string]*entities.ReconstructionResult {
	if v := sc.results.Load(); v != nil {
		if results, ok := v.(map[string]*entities.ReconstructionResult); ok {
			return results
		}
	}

	logging.Warn("Results map is empty or invalid")
	return make(map[string]*entities.ReconstructionResult)
}

// GetResult looks up the reconstruction for one (endpoint, arm) pair.
func (sc *StudyContainer) GetResult(endpoint, arm string) (*entities.ReconstructionResult, bool) {
	result, ok := sc.GetResults()[ArmKey(endpoint, arm)]
	return result, ok
}

// GetLastUploaded returns when study data was last replaced.
func (sc *StudyContainer) GetLastUploaded() time.Time {
	if v := sc.lastUploaded.Load(); v != nil {
		if t, ok := v.(time.Time); ok {
			return t
		}
	}

	logging.Warn("Could not get the last uploaded value")
	return time.Time{}
}

// GetLastReconstructed returns when results were last replaced.
func (sc *StudyContainer) GetLastReconstructed() time.Time {
	if v := sc.lastReconstructed.Load(); v != nil {
		if t, ok := v.(time.Time); ok {
			return t
		}
	}

	logging.Warn("Could not get the last reconstructed value")
	return time.Time{}
}

// IsReconstructing reports whether a reconstruction batch is in flight.
func (sc *StudyContainer) IsReconstructing() bool {
	return sc.reconstructing.Load()
}

// SetServerStartTime records the process start time for health reporting.
func (sc *StudyContainer) SetServerStartTime(t time.Time) {
	sc.serverStartTime.Store(t)
}

// GetServerStartTime returns the process start time.
func (sc *StudyContainer) GetServerStartTime() time.Time {
	if v := sc.serverStartTime.Load(); v != nil {
		if t, ok := v.(time.Time); ok {
			return t
		}
	}

	logging.Warn("Could not get the server start time value")
	return time.Time{}
}

// UpdateStudy atomically replaces the stored study payload. Stale results
// from a previous payload are dropped with it.
func (sc *StudyContainer) UpdateStudy(km []entities.KMPoint, atrisk []entities.AtRiskPoint) {
	sc.kmPoints.Store(km)
	sc.atRiskPoints.Store(atrisk)
	sc.results.Store(make(map[string]*entities.ReconstructionResult))
	sc.lastUploaded.Store(time.Now())
}

// UpdateResults atomically replaces the reconstruction results.
func (sc *StudyContainer) UpdateResults(results map[string]*entities.ReconstructionResult) {
	sc.results.Store(results)
	sc.lastReconstructed.Store(time.Now())
}

// BeginReconstruction marks the start of a reconstruction batch. Returns
// false if another batch is already running.
func (sc *StudyContainer) BeginReconstruction() bool {
	return sc.reconstructing.CompareAndSwap(false, true)
}

// EndReconstruction marks the end of a reconstruction batch.
func (sc *StudyContainer) EndReconstruction() {
	sc.reconstructing.Store(false)
}
