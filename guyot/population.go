package guyot

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/avasseur/ipd-api/guyot/entities"
	"github.com/avasseur/ipd-api/logging"
)

// NormalizePopulation adjusts a synthesized cohort to exactly targetN
// records.
//
// An oversized cohort sheds records proportionally from the event and
// censored subpopulations so the event rate survives the cut; removal within
// each subpopulation is uniform without replacement. An undersized cohort is
// topped up by resampling existing records with replacement, perturbing their
// times with small Gaussian jitter and assigning fresh sequential ids. All
// draws come from the caller's seeded stream.
func NormalizePopulation(records []entities.PatientRecord, targetN int, cfg Config, rng *rand.Rand) []entities.PatientRecord {
	currentN := len(records)
	if currentN == targetN || targetN <= 0 {
		return sortByTime(records)
	}

	if currentN > targetN {
		return sortByTime(shrink(records, currentN-targetN, rng))
	}
	return sortByTime(grow(records, targetN-currentN, cfg, rng))
}

func shrink(records []entities.PatientRecord, excess int, rng *rand.Rand) []entities.PatientRecord {
	var events, censored []entities.PatientRecord
	for _, r := range records {
		if r.Event == 1 {
			events = append(events, r)
		} else {
			censored = append(censored, r)
		}
	}

	eventRatio := float64(len(events)) / float64(len(records))
	eventsToRemove := int(math.Round(float64(excess) * eventRatio))
	if eventsToRemove > len(events) {
		eventsToRemove = len(events)
	}
	censoredToRemove := excess - eventsToRemove
	if censoredToRemove > len(censored) {
		censoredToRemove = len(censored)
	}

	events = removeRandom(events, eventsToRemove, rng)
	censored = removeRandom(censored, censoredToRemove, rng)

	logging.Debug("Reduced synthesized cohort",
		"removed_events", eventsToRemove, "removed_censored", censoredToRemove)

	return append(events, censored...)
}

// removeRandom drops n records chosen uniformly without replacement.
func removeRandom(records []entities.PatientRecord, n int, rng *rand.Rand) []entities.PatientRecord {
	if n <= 0 || len(records) == 0 {
		return records
	}

	perm := rng.Perm(len(records))
	kept := make([]entities.PatientRecord, 0, len(records)-n)
	for _, idx := range perm[n:] {
		kept = append(kept, records[idx])
	}
	return kept
}

func grow(records []entities.PatientRecord, deficit int, cfg Config, rng *rand.Rand) []entities.PatientRecord {
	if len(records) == 0 {
		return records
	}

	jitter := distuv.Normal{Mu: 0, Sigma: cfg.JitterSigma, Src: rng}
	nextID := len(records)

	out := make([]entities.PatientRecord, len(records), len(records)+deficit)
	copy(out, records)

	for i := 0; i < deficit; i++ {
		dup := records[rng.IntN(len(records))]
		dup.Time += jitter.Rand()
		if dup.Time < cfg.MinTime {
			dup.Time = cfg.MinTime
		}
		dup.PatientID = nextID
		nextID++
		out = append(out, dup)
	}

	logging.Debug("Expanded synthesized cohort", "added", deficit)
	return out
}

func sortByTime(records []entities.PatientRecord) []entities.PatientRecord {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Time < records[j].Time
	})
	return records
}
