// Package validation performs structural checks on uploaded study payloads
// before they reach the store or the reconstruction engine.
package validation

import (
	"fmt"
	"math"
	"strings"

	"github.com/avasseur/ipd-api/guyot/entities"
	"github.com/avasseur/ipd-api/interfaces"
	"github.com/avasseur/ipd-api/logging"
)

const (
	// MaxPointsPerArm caps digitized curve size per (endpoint, arm) pair.
	MaxPointsPerArm = 10000
	// MaxArms caps the number of distinct (endpoint, arm) pairs per study.
	MaxArms = 100
	// MaxNameLength caps endpoint and arm label length.
	MaxNameLength = 80
	// maxPercentSurvival tolerates digitization overshoot on percent scales.
	maxPercentSurvival = 105.0
)

// Compile-time check to ensure StudyValidator implements PayloadValidator
var _ interfaces.PayloadValidator = (*StudyValidator)(nil)

// StudyValidator checks uploaded KM curves and at-risk tables for values
// that would corrupt a reconstruction.
type StudyValidator struct{}

// NewStudyValidator creates a validator.
func NewStudyValidator() *StudyValidator {
	return &StudyValidator{}
}

// ValidateStudy checks the full payload. The KM curve set is required, the
// at-risk table is optional but must be well formed when present.
func (v *StudyValidator) ValidateStudy(km []entities.KMPoint, atrisk []entities.AtRiskPoint) error {
	if len(km) == 0 {
		return fmt.Errorf("study payload contains no survival points")
	}

	armPoints := make(map[string]int)
	for i, p := range km {
		if err := validateName("endpoint", p.Endpoint); err != nil {
			return fmt.Errorf("survival point %d: %w", i, err)
		}
		if err := validateName("arm", p.Arm); err != nil {
			return fmt.Errorf("survival point %d: %w", i, err)
		}
		if err := validateTime(p.TimeMonths); err != nil {
			return fmt.Errorf("survival point %d (%s/%s): %w", i, p.Endpoint, p.Arm, err)
		}
		if err := validateSurvival(p.Survival); err != nil {
			return fmt.Errorf("survival point %d (%s/%s): %w", i, p.Endpoint, p.Arm, err)
		}
		armPoints[p.Endpoint+"|"+p.Arm]++
	}

	if len(armPoints) > MaxArms {
		return fmt.Errorf("study has %d endpoint/arm pairs, maximum is %d", len(armPoints), MaxArms)
	}
	for key, count := range armPoints {
		if count > MaxPointsPerArm {
			return fmt.Errorf("curve %s has %d points, maximum is %d", key, count, MaxPointsPerArm)
		}
	}

	for i, p := range atrisk {
		if err := validateName("endpoint", p.Endpoint); err != nil {
			return fmt.Errorf("at-risk point %d: %w", i, err)
		}
		if err := validateName("arm", p.Arm); err != nil {
			return fmt.Errorf("at-risk point %d: %w", i, err)
		}
		if err := validateTime(p.TimeMonths); err != nil {
			return fmt.Errorf("at-risk point %d (%s/%s): %w", i, p.Endpoint, p.Arm, err)
		}
		if p.NRisk < 0 {
			return fmt.Errorf("at-risk point %d (%s/%s): number at risk %d is negative", i, p.Endpoint, p.Arm, p.NRisk)
		}
		if _, ok := armPoints[p.Endpoint+"|"+p.Arm]; !ok {
			logging.Warn("At-risk table references a curve with no survival points",
				"endpoint", p.Endpoint, "arm", p.Arm)
		}
	}

	return nil
}

func validateName(field, value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fmt.Errorf("%s label is empty", field)
	}
	if len(trimmed) > MaxNameLength {
		return fmt.Errorf("%s label exceeds %d characters", field, MaxNameLength)
	}
	for _, r := range trimmed {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("%s label contains control characters", field)
		}
	}
	return nil
}

func validateTime(t float64) error {
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return fmt.Errorf("time %v is not a finite number", t)
	}
	if t < 0 {
		return fmt.Errorf("time %g is negative", t)
	}
	return nil
}

// validateSurvival accepts both proportion and percent scales. Scale
// detection happens later during normalization; here we only reject values
// that fit neither.
func validateSurvival(s float64) error {
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return fmt.Errorf("survival %v is not a finite number", s)
	}
	if s < 0 {
		return fmt.Errorf("survival %g is negative", s)
	}
	if s > maxPercentSurvival {
		return fmt.Errorf("survival %g exceeds %g, not a valid proportion or percentage", s, maxPercentSurvival)
	}
	return nil
}
