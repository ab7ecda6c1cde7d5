package guyot

import (
	"fmt"

	"github.com/avasseur/ipd-api/guyot/entities"
	"github.com/avasseur/ipd-api/logging"
)

// carryEpsilon absorbs float64 representation error when emitting the integer
// part of an accumulated count.
const carryEpsilon = 1e-9

// EstimateIntervals applies the Guyot recurrence to an aligned series,
// deriving per-interval event and censoring counts from consecutive survival
// drops and at-risk attrition.
//
// Fractional counts are not rounded per interval; they accumulate across
// intervals and the integer part is emitted whenever the running total
// crosses one. Independent rounding would silently drop or invent events on
// sparse curves. The terminal interval has no estimable event count: its
// whole remaining at-risk population is censored at the last observed time.
func EstimateIntervals(aligned []entities.AlignedPoint) ([]entities.IntervalCounts, []string) {
	if len(aligned) == 0 {
		return nil, nil
	}

	eventsFloat := make([]float64, 0, len(aligned))
	censoredFloat := make([]float64, 0, len(aligned))

	for i := 0; i < len(aligned)-1; i++ {
		curr, next := aligned[i], aligned[i+1]

		var d float64
		if curr.Survival > 0 && next.Survival < curr.Survival {
			d = float64(curr.NRisk) * (1 - next.Survival/curr.Survival)
		}

		c := float64(curr.NRisk-next.NRisk) - d
		if c < 0 {
			c = 0
		}

		eventsFloat = append(eventsFloat, d)
		censoredFloat = append(censoredFloat, c)
	}

	// Terminal interval: everyone still at risk leaves censored
	last := aligned[len(aligned)-1]
	eventsFloat = append(eventsFloat, 0)
	censoredFloat = append(censoredFloat, float64(last.NRisk))

	var warnings []string
	totalFloatEvents := 0.0
	for _, d := range eventsFloat {
		totalFloatEvents += d
	}

	initialN := aligned[0].NRisk
	expectedEvents := float64(initialN) * (1 - last.Survival)
	if totalFloatEvents < 1 && expectedEvents >= 1 {
		w := fmt.Sprintf("implied event count %.2f is implausibly low against %.2f expected from the survival drop",
			totalFloatEvents, expectedEvents)
		warnings = append(warnings, w)
		logging.Warn("Low implied event count",
			"implied", totalFloatEvents, "expected", expectedEvents, "initial_n", initialN)
	}

	intervals := make([]entities.IntervalCounts, len(aligned))
	var eventCarry, censorCarry float64

	for i := range aligned {
		eventCarry += eventsFloat[i]
		censorCarry += censoredFloat[i]

		// Truncate with an epsilon so exact ratios that land just below an
		// integer in float64 (100*(1-0.8/1.0) = 19.999...) still emit the
		// full count instead of deferring one unit to the next interval
		d := int(eventCarry + carryEpsilon)
		c := int(censorCarry + carryEpsilon)
		eventCarry -= float64(d)
		censorCarry -= float64(c)

		tEnd := aligned[i].Time
		if i < len(aligned)-1 {
			tEnd = aligned[i+1].Time
		}
		intervals[i] = entities.IntervalCounts{
			TStart:   aligned[i].Time,
			TEnd:     tEnd,
			Events:   d,
			Censored: c,
		}
	}

	return intervals, warnings
}
