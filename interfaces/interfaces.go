// Package interfaces defines the service contracts between the HTTP layer,
// the storage container, the reconstruction engine and the background jobs.
package interfaces

import (
	"time"

	"github.com/avasseur/ipd-api/guyot"
	"github.com/avasseur/ipd-api/guyot/entities"
)

// StudyStore abstracts the in-memory study and result storage.
type StudyStore interface {
	GetKMPoints() []entities.KMPoint
	GetAtRiskPoints() []entities.AtRiskPoint
	GetResults() map[string]*entities.ReconstructionResult
	GetResult(endpoint, arm string) (*entities.ReconstructionResult, bool)
	GetLastUploaded() time.Time
	GetLastReconstructed() time.Time
	IsReconstructing() bool
	SetServerStartTime(t time.Time)
	GetServerStartTime() time.Time
	UpdateStudy(km []entities.KMPoint, atrisk []entities.AtRiskPoint)
	UpdateResults(results map[string]*entities.ReconstructionResult)
	BeginReconstruction() bool
	EndReconstruction()
}

// Reconstructor abstracts the pseudo-IPD engine.
type Reconstructor interface {
	ReconstructArm(endpoint, arm string, km []entities.KMPoint, atrisk []entities.AtRiskPoint) (*entities.ReconstructionResult, error)
	ReconstructAll(km []entities.KMPoint, atrisk []entities.AtRiskPoint) ([]*entities.ReconstructionResult, []guyot.ArmFailure)
}

// Exporter abstracts patient-level file exports.
type Exporter interface {
	WriteCSV(result *entities.ReconstructionResult) (string, error)
	WriteParquet(result *entities.ReconstructionResult) (string, error)
	Sweep(maxAge time.Duration) (int, error)
}

// PayloadValidator abstracts the structural checks on uploaded study data.
type PayloadValidator interface {
	ValidateStudy(km []entities.KMPoint, atrisk []entities.AtRiskPoint) error
}

// Scheduler abstracts the background job runner.
type Scheduler interface {
	Start() error
	Stop()
}

// HealthChecker abstracts the service health probe.
type HealthChecker interface {
	Check() (healthy bool, details map[string]any)
}
