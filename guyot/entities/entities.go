// Package entities defines the typed records that flow between the stages of
// the pseudo-IPD reconstruction pipeline, from raw digitized curve points down
// to individual synthetic patient records.
package entities

// KMPoint is one digitized step of a published Kaplan-Meier curve for a
// single (endpoint, arm) pair. Survival is a proportion in [0,1] after
// normalization; payloads expressed as percentages are converted by the
// curve normalizer.
type KMPoint struct {
	Endpoint   string  `json:"endpoint"`
	Arm        string  `json:"arm"`
	TimeMonths float64 `json:"time_months"`
	Survival   float64 `json:"survival"`
}

// AtRiskPoint is a sparse observation of the cohort size at a published
// checkpoint of the number-at-risk table.
type AtRiskPoint struct {
	Endpoint   string  `json:"endpoint"`
	Arm        string  `json:"arm"`
	TimeMonths float64 `json:"time_months"`
	NRisk      int     `json:"n_risk"`
}

// AlignedPoint joins the KM curve and the at-risk table onto one time grid.
// NRisk is non-increasing over a series and consistent with survival decay.
type AlignedPoint struct {
	Time     float64 `json:"time"`
	Survival float64 `json:"survival"`
	NRisk    int     `json:"n_risk"`
}

// IntervalCounts holds the estimated event and censoring counts for one
// interval between consecutive aligned points. The terminal interval has
// TStart == TEnd and carries only censored patients.
type IntervalCounts struct {
	TStart   float64 `json:"t_start"`
	TEnd     float64 `json:"t_end"`
	Events   int     `json:"n_events"`
	Censored int     `json:"n_censored"`
}

// PatientRecord is one synthetic patient. Event is 1 for an observed event
// and 0 for censoring. The parquet tags define the exact four-column layout
// downstream model fitters consume.
type PatientRecord struct {
	PatientID int     `json:"patient_id" parquet:"patient_id"`
	Time      float64 `json:"time" parquet:"time"`
	Event     int     `json:"event" parquet:"event"`
	Arm       string  `json:"arm" parquet:"arm"`
}

// Integrity outcomes reported by the reconstruction validator.
const (
	IntegrityPass = "pass"
	IntegrityFail = "fail"
)

// ValidationReport summarizes the fidelity and integrity checks performed on
// a reconstructed cohort.
type ValidationReport struct {
	SurvivalMAE       float64  `json:"survival_mae"`
	AtRiskDiscrepancy float64  `json:"at_risk_discrepancy"`
	Integrity         string   `json:"integrity"`
	Warnings          []string `json:"warnings,omitempty"`
}

// ReconstructionResult is the deliverable for one (endpoint, arm) pair. It is
// built once per reconstruction request and never mutated after validation.
type ReconstructionResult struct {
	Endpoint       string           `json:"endpoint"`
	Arm            string           `json:"arm"`
	Records        []PatientRecord  `json:"-"`
	InitialN       int              `json:"n_patients"`
	Events         int              `json:"n_events"`
	Censored       int              `json:"n_censored"`
	MedianFollowup float64          `json:"median_followup"`
	Degraded       bool             `json:"degraded,omitempty"`
	Validation     ValidationReport `json:"validation"`
}

// Summary is the compact reconstruction summary served to callers that do not
// need the full patient table.
type Summary struct {
	Endpoint         string  `json:"endpoint"`
	Arm              string  `json:"arm"`
	NPatients        int     `json:"n_patients"`
	NEvents          int     `json:"n_events"`
	NCensored        int     `json:"n_censored"`
	MedianFollowup   float64 `json:"median_followup"`
	ValidationStatus string  `json:"validation_status"`
}

// Summarize derives the caller-facing summary from a full result.
func (r *ReconstructionResult) Summarize() Summary {
	status := "ok"
	if len(r.Validation.Warnings) > 0 {
		status = "warning"
	}
	if r.Validation.Integrity == IntegrityFail {
		status = "failed"
	}
	return Summary{
		Endpoint:         r.Endpoint,
		Arm:              r.Arm,
		NPatients:        r.InitialN,
		NEvents:          r.Events,
		NCensored:        r.Censored,
		MedianFollowup:   r.MedianFollowup,
		ValidationStatus: status,
	}
}
