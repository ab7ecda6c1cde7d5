package guyot

import (
	"errors"
	"fmt"
)

// ErrEmptyCurve is returned when a reconstruction is requested for an arm
// with no KM points at all. Nothing can be reconstructed from an empty curve.
var ErrEmptyCurve = errors.New("no KM points supplied")

// FidelityError is returned when the re-fitted survival curve deviates from
// the source curve beyond the failure threshold. The reconstructed cohort
// must not be trusted by callers.
type FidelityError struct {
	Endpoint  string
	Arm       string
	MAE       float64
	Threshold float64
}

func (e *FidelityError) Error() string {
	return fmt.Sprintf("reconstruction fidelity check failed for %s/%s: MAE %.3f exceeds failure threshold %.3f",
		e.Endpoint, e.Arm, e.MAE, e.Threshold)
}

// IntegrityError reports a structural invariant violation in the synthesized
// cohort. Unlike fidelity failures it indicates an engine bug rather than
// noisy input.
type IntegrityError struct {
	Endpoint string
	Arm      string
	Reason   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("IPD integrity failure for %s/%s: %s", e.Endpoint, e.Arm, e.Reason)
}

// ArmFailure identifies which (endpoint, arm) pair a fatal pipeline error
// belongs to, so that one failing arm does not obscure the others in a batch.
type ArmFailure struct {
	Endpoint string `json:"endpoint"`
	Arm      string `json:"arm"`
	Err      error  `json:"-"`
}

func (f ArmFailure) Error() string {
	return fmt.Sprintf("%s/%s: %v", f.Endpoint, f.Arm, f.Err)
}

func (f ArmFailure) Unwrap() error { return f.Err }
