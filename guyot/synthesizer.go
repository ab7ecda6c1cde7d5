package guyot

import (
	"math/rand/v2"

	"github.com/avasseur/ipd-api/guyot/entities"
)

// SynthesizePatients expands interval counts into individual patient records.
//
// Event times are drawn late in their interval (the trailing LateFraction of
// its width) because that is where the published survival step actually sits;
// censoring times are drawn early, reflecting patients known to be present at
// the interval start and lost before its end. Both are kept strictly inside
// the open interval. The terminal interval's censored records sit exactly at
// the last observed time. Patient ids are sequential and carry no meaning
// beyond uniqueness within the arm.
func SynthesizePatients(intervals []entities.IntervalCounts, arm string, cfg Config, rng *rand.Rand) []entities.PatientRecord {
	var records []entities.PatientRecord
	id := 0

	for i, iv := range intervals {
		terminal := i == len(intervals)-1
		width := iv.TEnd - iv.TStart

		if !terminal && width > 0 {
			for e := 0; e < iv.Events; e++ {
				t := iv.TStart + width*(1-cfg.LateFraction) + rng.Float64()*width*cfg.LateFraction
				if t >= iv.TEnd {
					t = iv.TEnd - width*1e-6
				}
				records = append(records, entities.PatientRecord{
					PatientID: id, Time: t, Event: 1, Arm: arm,
				})
				id++
			}

			for c := 0; c < iv.Censored; c++ {
				t := iv.TStart + rng.Float64()*width*cfg.EarlyFraction
				if t <= iv.TStart {
					t = iv.TStart + width*1e-6
				}
				records = append(records, entities.PatientRecord{
					PatientID: id, Time: t, Event: 0, Arm: arm,
				})
				id++
			}
			continue
		}

		// Terminal (or zero-width) interval: censor at the observed time
		t := iv.TStart
		if t < cfg.MinTime {
			t = cfg.MinTime
		}
		for c := 0; c < iv.Censored; c++ {
			records = append(records, entities.PatientRecord{
				PatientID: id, Time: t, Event: 0, Arm: arm,
			})
			id++
		}
	}

	return records
}
