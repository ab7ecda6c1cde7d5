package guyot

import (
	"sort"

	"github.com/avasseur/ipd-api/guyot/entities"
)

// KMEstimate is a fitted product-limit survival curve: a right-continuous
// step function dropping at each distinct event time.
type KMEstimate struct {
	Times    []float64
	Survival []float64
}

// FitKaplanMeier fits the product-limit estimator to a patient cohort.
func FitKaplanMeier(records []entities.PatientRecord) KMEstimate {
	if len(records) == 0 {
		return KMEstimate{}
	}

	sorted := make([]entities.PatientRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time < sorted[j].Time
	})

	var est KMEstimate
	survival := 1.0
	atRisk := len(sorted)
	i := 0

	for i < len(sorted) {
		t := sorted[i].Time
		events, leaving := 0, 0
		for i < len(sorted) && sorted[i].Time == t {
			if sorted[i].Event == 1 {
				events++
			}
			leaving++
			i++
		}

		if events > 0 {
			survival *= 1 - float64(events)/float64(atRisk)
			est.Times = append(est.Times, t)
			est.Survival = append(est.Survival, survival)
		}
		atRisk -= leaving
	}

	return est
}

// SurvivalAt evaluates the step function at t: the survival after the most
// recent event time not exceeding t, or 1 before the first event.
func (e KMEstimate) SurvivalAt(t float64) float64 {
	idx := sort.SearchFloat64s(e.Times, t)
	// idx is the first event time > t unless t is itself an event time
	if idx < len(e.Times) && e.Times[idx] == t {
		return e.Survival[idx]
	}
	if idx == 0 {
		return 1.0
	}
	return e.Survival[idx-1]
}
