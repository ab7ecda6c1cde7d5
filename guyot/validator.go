package guyot

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/avasseur/ipd-api/guyot/entities"
	"github.com/avasseur/ipd-api/logging"
)

// ValidateReconstruction certifies a synthesized cohort against the source
// curve. It re-fits a Kaplan-Meier estimator to the records, evaluates it at
// the original timepoints, and compares the mean absolute error against the
// endpoint class's thresholds: above the failure cutoff the reconstruction is
// rejected with a FidelityError, between warning and failure it passes with a
// warning attached. Structural invariants (counts add up, event flags in
// {0,1}, positive times) are verified independently and raise IntegrityError,
// which signals an engine bug rather than noisy input.
func ValidateReconstruction(records []entities.PatientRecord, aligned []entities.AlignedPoint, published []entities.AtRiskPoint, endpoint, arm string, cfg Config) (entities.ValidationReport, error) {
	report := entities.ValidationReport{Integrity: entities.IntegrityPass}

	if err := checkIntegrity(records, endpoint, arm); err != nil {
		report.Integrity = entities.IntegrityFail
		return report, err
	}

	est := FitKaplanMeier(records)

	diffs := make([]float64, len(aligned))
	for i, p := range aligned {
		diffs[i] = math.Abs(p.Survival - est.SurvivalAt(p.Time))
	}
	report.SurvivalMAE = stat.Mean(diffs, nil)

	warn, fail := cfg.Thresholds(endpoint)
	if report.SurvivalMAE > fail {
		return report, &FidelityError{
			Endpoint:  endpoint,
			Arm:       arm,
			MAE:       report.SurvivalMAE,
			Threshold: fail,
		}
	}
	if report.SurvivalMAE > warn {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("re-fit MAE %.3f exceeds warning threshold %.3f, interpret cautiously",
				report.SurvivalMAE, warn))
		logging.Warn("Reconstruction quality warning",
			"endpoint", endpoint, "arm", arm,
			"mae", report.SurvivalMAE, "warning_threshold", warn)
	}

	report.AtRiskDiscrepancy = atRiskDiscrepancy(records, published)
	if report.AtRiskDiscrepancy > 0 {
		logging.Debug("At-risk table cross-check",
			"endpoint", endpoint, "arm", arm,
			"mean_relative_discrepancy", report.AtRiskDiscrepancy)
	}

	return report, nil
}

func checkIntegrity(records []entities.PatientRecord, endpoint, arm string) error {
	if len(records) == 0 {
		return &IntegrityError{Endpoint: endpoint, Arm: arm, Reason: "cohort is empty"}
	}

	events, censored := 0, 0
	for _, r := range records {
		switch r.Event {
		case 1:
			events++
		case 0:
			censored++
		default:
			return &IntegrityError{
				Endpoint: endpoint, Arm: arm,
				Reason: fmt.Sprintf("invalid event value %d, must be 0 or 1", r.Event),
			}
		}

		if r.Time <= 0 {
			return &IntegrityError{
				Endpoint: endpoint, Arm: arm,
				Reason: fmt.Sprintf("non-positive time %.4f for patient %d", r.Time, r.PatientID),
			}
		}
	}

	if events+censored != len(records) {
		return &IntegrityError{
			Endpoint: endpoint, Arm: arm,
			Reason: fmt.Sprintf("events (%d) + censored (%d) != total patients (%d)",
				events, censored, len(records)),
		}
	}

	return nil
}

// atRiskDiscrepancy cross-checks reconstructed risk-set sizes against the
// published table. This is a quality signal, never fatal: digitization error
// and interval placement both shift the counts a little.
func atRiskDiscrepancy(records []entities.PatientRecord, published []entities.AtRiskPoint) float64 {
	if len(published) == 0 {
		return 0
	}

	diffs := make([]float64, 0, len(published))
	for _, p := range published {
		stillAtRisk := 0
		for _, r := range records {
			if r.Time >= p.TimeMonths {
				stillAtRisk++
			}
		}
		denom := math.Max(float64(p.NRisk), 1)
		diffs = append(diffs, math.Abs(float64(stillAtRisk-p.NRisk))/denom)
	}

	return stat.Mean(diffs, nil)
}
