package guyot

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/avasseur/ipd-api/guyot/entities"
	"github.com/avasseur/ipd-api/logging"
)

// NormalizeCurve cleans a raw digitized KM series into a strictly
// time-ordered sequence with unique times and non-increasing survival.
// Duplicate times are collapsed with the minimum-value policy, or a blend
// toward the post-event value for erratic endpoint classes where digitization
// noise straddles the step. Survival given as percentages is converted to
// proportions first.
func NormalizeCurve(points []entities.KMPoint, cfg Config) ([]entities.KMPoint, error) {
	if len(points) == 0 {
		return nil, ErrEmptyCurve
	}

	cleaned := make([]entities.KMPoint, len(points))
	copy(cleaned, points)

	sort.SliceStable(cleaned, func(i, j int) bool {
		return cleaned[i].TimeMonths < cleaned[j].TimeMonths
	})

	// Digitizers sometimes emit the y axis in percent
	maxSurvival := cleaned[0].Survival
	for _, p := range cleaned {
		if p.Survival > maxSurvival {
			maxSurvival = p.Survival
		}
	}
	if maxSurvival > 1.5 {
		logging.Debug("Converting survival from percentage to proportion", "max_survival", maxSurvival)
		for i := range cleaned {
			cleaned[i].Survival /= 100.0
		}
	}

	erratic := cfg.IsErratic(cleaned[0].Endpoint)
	collapsed := collapseDuplicateTimes(cleaned, cfg, erratic)

	// Running minimum guarantees non-increasing survival even when the
	// collapse rule under-corrects
	minSoFar := collapsed[0].Survival
	for i := range collapsed {
		if collapsed[i].Survival > minSoFar {
			collapsed[i].Survival = minSoFar
		} else {
			minSoFar = collapsed[i].Survival
		}
	}

	// Residual equal times get a sub-resolution offset to restore strict
	// ordering
	adjusted := 0
	for i := 1; i < len(collapsed); i++ {
		if collapsed[i].TimeMonths <= collapsed[i-1].TimeMonths {
			collapsed[i].TimeMonths = collapsed[i-1].TimeMonths + cfg.DuplicateEpsilon*float64(i)
			adjusted++
		}
	}
	if adjusted > 0 {
		logging.Warn("Adjusted residual duplicate time points", "count", adjusted)
	}

	return collapsed, nil
}

// collapseDuplicateTimes merges points sharing a time into one. The default
// policy keeps the minimum (post-event) survival. Erratic curves use a
// step-aware blend: large steps lean heavily toward the post-event value,
// small steps get a more balanced weighting, and longer runs collapse to a
// low quantile.
func collapseDuplicateTimes(points []entities.KMPoint, cfg Config, erratic bool) []entities.KMPoint {
	collapsed := make([]entities.KMPoint, 0, len(points))

	for i := 0; i < len(points); {
		j := i + 1
		for j < len(points) && points[j].TimeMonths == points[i].TimeMonths {
			j++
		}

		group := points[i:j]
		p := group[0]
		if len(group) > 1 {
			p.Survival = collapseSurvival(group, cfg, erratic)
		}
		collapsed = append(collapsed, p)
		i = j
	}

	return collapsed
}

func collapseSurvival(group []entities.KMPoint, cfg Config, erratic bool) float64 {
	values := make([]float64, len(group))
	for i, p := range group {
		values[i] = p.Survival
	}
	sort.Float64s(values)

	if !erratic {
		return values[0]
	}

	if len(values) == 2 {
		lo, hi := values[0], values[1]
		if hi-lo > cfg.LargeStepSize {
			return (1-cfg.LargeStepBlend)*lo + cfg.LargeStepBlend*hi
		}
		return (1-cfg.CollapseBlend)*lo + cfg.CollapseBlend*hi
	}

	return stat.Quantile(0.3, stat.Empirical, values, nil)
}

// filterEventSteps keeps only the points where survival actually drops, which
// is what the Guyot recurrence needs. Plateau samples from a fine-grained
// digitization would otherwise dilute every interval estimate. The first
// point is always kept; if filtering leaves fewer than three points the
// original series is returned unchanged.
func filterEventSteps(points []entities.KMPoint, cfg Config) []entities.KMPoint {
	if len(points) == 0 {
		return points
	}

	filtered := make([]entities.KMPoint, 0, len(points))
	filtered = append(filtered, points[0])
	last := points[0].Survival

	for _, p := range points[1:] {
		if last-p.Survival >= cfg.MinSurvivalDrop {
			filtered = append(filtered, p)
			last = p.Survival
		}
	}

	if len(filtered) < 3 {
		logging.Debug("Too few event steps after filtering, keeping full curve",
			"filtered", len(filtered), "original", len(points))
		return points
	}

	return filtered
}
