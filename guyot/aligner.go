package guyot

import (
	"math"
	"sort"

	"github.com/avasseur/ipd-api/guyot/entities"
	"github.com/avasseur/ipd-api/logging"
)

// AlignAtRisk maps the sparse at-risk table onto the KM time grid, producing
// one consistent (time, survival, n_at_risk) series.
//
// Strategy: KM-grid primary. Every KM timepoint is kept and receives an
// at-risk count by exact match where the table publishes one, by linear
// interpolation between published values elsewhere, and by the nearest
// published value outside the table's range. The result is then forced
// non-increasing and clipped to the survival-implied cohort size within the
// configured slack band. The alternative (using the at-risk table as the
// grid) discards most of the digitized curve and is not implemented.
//
// With no at-risk table at all, counts are estimated from survival decay
// against a placeholder cohort; the reconstruction is flagged degraded.
func AlignAtRisk(km []entities.KMPoint, atrisk []entities.AtRiskPoint, cfg Config) (aligned []entities.AlignedPoint, degraded bool) {
	if len(atrisk) == 0 {
		logging.Warn("No at-risk table supplied, estimating cohort from survival decay",
			"placeholder_n", cfg.PlaceholderInitialN)
		return estimateFromSurvival(km, cfg), true
	}

	table := make([]entities.AtRiskPoint, len(atrisk))
	copy(table, atrisk)
	sort.SliceStable(table, func(i, j int) bool {
		return table[i].TimeMonths < table[j].TimeMonths
	})

	aligned = make([]entities.AlignedPoint, len(km))
	for i, p := range km {
		aligned[i] = entities.AlignedPoint{
			Time:     p.TimeMonths,
			Survival: p.Survival,
			NRisk:    interpolateNRisk(p.TimeMonths, table),
		}
	}

	// Patients only ever leave a risk set
	clampNonIncreasing(aligned)

	// An interpolated count far above what the survival drop implies means
	// the table and the curve disagree; trust the curve
	initialN := aligned[0].NRisk
	for i := range aligned {
		ceiling := math.Max(1, aligned[i].Survival*float64(initialN)*cfg.AtRiskSlack)
		if float64(aligned[i].NRisk) > ceiling {
			aligned[i].NRisk = int(math.Round(ceiling))
		}
	}
	clampNonIncreasing(aligned)

	return aligned, false
}

// interpolateNRisk attaches an at-risk count to a single KM timepoint. The
// table is sorted by time.
func interpolateNRisk(t float64, table []entities.AtRiskPoint) int {
	for _, p := range table {
		if p.TimeMonths == t {
			return p.NRisk
		}
	}

	if t <= table[0].TimeMonths {
		return table[0].NRisk
	}
	last := table[len(table)-1]
	if t >= last.TimeMonths {
		return last.NRisk
	}

	for i := 1; i < len(table); i++ {
		if table[i].TimeMonths >= t {
			lo, hi := table[i-1], table[i]
			frac := (t - lo.TimeMonths) / (hi.TimeMonths - lo.TimeMonths)
			v := float64(lo.NRisk) + frac*float64(hi.NRisk-lo.NRisk)
			return int(math.Max(0, math.Round(v)))
		}
	}
	return last.NRisk
}

func clampNonIncreasing(aligned []entities.AlignedPoint) {
	for i := 1; i < len(aligned); i++ {
		if aligned[i].NRisk > aligned[i-1].NRisk {
			aligned[i].NRisk = aligned[i-1].NRisk
		}
	}
}

// estimateFromSurvival is the degraded mode used when no at-risk table
// exists: cohort size is assumed and scaled by survival.
func estimateFromSurvival(km []entities.KMPoint, cfg Config) []entities.AlignedPoint {
	maxSurvival := 0.0
	for _, p := range km {
		if p.Survival > maxSurvival {
			maxSurvival = p.Survival
		}
	}

	aligned := make([]entities.AlignedPoint, len(km))
	for i, p := range km {
		n := cfg.PlaceholderInitialN
		if maxSurvival > 0 {
			n = int(math.Round(float64(cfg.PlaceholderInitialN) * p.Survival / maxSurvival))
		}
		aligned[i] = entities.AlignedPoint{Time: p.TimeMonths, Survival: p.Survival, NRisk: n}
	}
	clampNonIncreasing(aligned)
	return aligned
}

// InitialPopulation backs out the true cohort size for an aligned series: the
// published at-risk count at t=0 when present, otherwise the first available
// (survival, n_at_risk) pair scaled back to full survival.
func InitialPopulation(aligned []entities.AlignedPoint) int {
	if len(aligned) == 0 {
		return 0
	}

	first := aligned[0]
	if first.Time == 0 {
		return first.NRisk
	}
	if first.Survival > 0 {
		return int(math.Round(float64(first.NRisk) / first.Survival))
	}
	return first.NRisk
}
