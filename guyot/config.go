package guyot

import "strings"

// Config holds every tunable of the reconstruction engine. Thresholds and
// jitter magnitudes are deliberately explicit here instead of package
// constants so that endpoint classes can be re-tuned from the environment
// without code changes.
type Config struct {
	// CollapseBlend is the weight given to the pre-event (higher) survival
	// value when collapsing a duplicate-time pair on an erratic curve. Zero
	// means the pure minimum-value policy.
	CollapseBlend float64

	// LargeStepBlend replaces CollapseBlend when the duplicate pair spans a
	// survival step larger than LargeStepSize, leaning harder toward the
	// post-event value.
	LargeStepBlend float64
	LargeStepSize  float64

	// DuplicateEpsilon is the sub-resolution offset (months) applied per
	// index to residual duplicate times after collapsing.
	DuplicateEpsilon float64

	// MinSurvivalDrop filters digitized points down to actual event steps.
	// Consecutive points whose survival differs by less than this are
	// plateau samples, not events.
	MinSurvivalDrop float64

	// PlaceholderInitialN is the assumed cohort size when no at-risk table
	// is supplied. Reconstructions built on it are flagged as degraded.
	PlaceholderInitialN int

	// AtRiskSlack is the multiplicative band above survival-implied cohort
	// size beyond which an interpolated at-risk value is clipped.
	AtRiskSlack float64

	// LateFraction is the trailing share of an interval in which event times
	// are placed, matching where the KM step actually occurs.
	LateFraction float64

	// EarlyFraction is the leading share of an interval in which censoring
	// times are placed.
	EarlyFraction float64

	// JitterSigma is the standard deviation (months) of the Gaussian time
	// jitter applied to duplicated records during population normalization.
	JitterSigma float64

	// MinTime is the smallest admissible patient time. Jittered or terminal
	// times are clamped to it so every record satisfies time > 0.
	MinTime float64

	// MAE thresholds per endpoint class. Erratic curves (stepping patterns
	// like progression-free survival) get the looser pair.
	SmoothWarnMAE  float64
	SmoothFailMAE  float64
	ErraticWarnMAE float64
	ErraticFailMAE float64

	// ErraticEndpoints lists endpoint-name substrings classified as erratic.
	ErraticEndpoints []string

	// Seed is the base seed for the per-(endpoint, arm) PRNG streams. Every
	// random draw in the pipeline derives from it, so identical input yields
	// identical output.
	Seed uint64
}

// DefaultConfig returns the engine tuning used in production.
func DefaultConfig() Config {
	return Config{
		CollapseBlend:       0.35,
		LargeStepBlend:      0.15,
		LargeStepSize:       0.03,
		DuplicateEpsilon:    0.001,
		MinSurvivalDrop:     0.001,
		PlaceholderInitialN: 100,
		AtRiskSlack:         1.2,
		LateFraction:        0.2,
		EarlyFraction:       0.5,
		JitterSigma:         0.01,
		MinTime:             0.001,
		SmoothWarnMAE:       0.05,
		SmoothFailMAE:       0.15,
		ErraticWarnMAE:      0.10,
		ErraticFailMAE:      0.30,
		ErraticEndpoints:    []string{"PFS"},
		Seed:                42,
	}
}

// IsErratic reports whether the endpoint belongs to the erratic curve class.
func (c Config) IsErratic(endpoint string) bool {
	upper := strings.ToUpper(endpoint)
	for _, marker := range c.ErraticEndpoints {
		if strings.Contains(upper, strings.ToUpper(marker)) {
			return true
		}
	}
	return false
}

// Thresholds returns the (warning, failure) MAE cutoffs for an endpoint.
func (c Config) Thresholds(endpoint string) (warn, fail float64) {
	if c.IsErratic(endpoint) {
		return c.ErraticWarnMAE, c.ErraticFailMAE
	}
	return c.SmoothWarnMAE, c.SmoothFailMAE
}
