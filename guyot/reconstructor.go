// Package guyot implements the pseudo-IPD reconstruction engine: it rebuilds
// a synthetic individual-patient-data set from a digitized Kaplan-Meier curve
// and its number-at-risk table using the Guyot et al. (2012) back-calculation,
// then certifies the result against the source curve.
package guyot

import (
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/avasseur/ipd-api/guyot/entities"
	"github.com/avasseur/ipd-api/logging"
)

// Reconstructor runs the full reconstruction pipeline. It is safe for
// concurrent use: every invocation derives its own PRNG stream and shares no
// mutable state.
type Reconstructor struct {
	cfg Config
}

// NewReconstructor creates a reconstructor with the given engine tuning.
func NewReconstructor(cfg Config) *Reconstructor {
	return &Reconstructor{cfg: cfg}
}

// Config returns the engine tuning in use.
func (r *Reconstructor) Config() Config { return r.cfg }

// ReconstructArm rebuilds the patient-level table for one (endpoint, arm)
// pair. Stages run strictly in order; randomness is seeded from the pair's
// identity so identical input always reproduces identical output.
func (r *Reconstructor) ReconstructArm(endpoint, arm string, km []entities.KMPoint, atrisk []entities.AtRiskPoint) (*entities.ReconstructionResult, error) {
	start := time.Now()
	rng := r.rngFor(endpoint, arm)

	normalized, err := NormalizeCurve(km, r.cfg)
	if err != nil {
		return nil, err
	}
	normalized = filterEventSteps(normalized, r.cfg)

	aligned, degraded := AlignAtRisk(normalized, atrisk, r.cfg)
	initialN := InitialPopulation(aligned)

	intervals, warnings := EstimateIntervals(aligned)

	records := SynthesizePatients(intervals, arm, r.cfg, rng)
	records = NormalizePopulation(records, initialN, r.cfg, rng)

	report, err := ValidateReconstruction(records, aligned, atrisk, endpoint, arm, r.cfg)
	report.Warnings = append(warnings, report.Warnings...)
	if degraded {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("no at-risk table supplied, cohort estimated against a placeholder population of %d",
				r.cfg.PlaceholderInitialN))
	}
	if err != nil {
		return nil, err
	}

	events, censored := 0, 0
	for _, rec := range records {
		if rec.Event == 1 {
			events++
		} else {
			censored++
		}
	}

	result := &entities.ReconstructionResult{
		Endpoint:       endpoint,
		Arm:            arm,
		Records:        records,
		InitialN:       len(records),
		Events:         events,
		Censored:       censored,
		MedianFollowup: medianTime(records),
		Degraded:       degraded,
		Validation:     report,
	}

	logging.Info("Reconstructed arm",
		"endpoint", endpoint, "arm", arm,
		"patients", len(records), "events", events, "censored", censored,
		"mae", report.SurvivalMAE, "degraded", degraded,
		"duration", time.Since(start).String())

	return result, nil
}

// ReconstructAll groups a study payload by (endpoint, arm) and reconstructs
// every arm concurrently. Arms are independent pure pipelines, so a fatal
// error in one is reported in failures without touching the rest.
func (r *Reconstructor) ReconstructAll(km []entities.KMPoint, atrisk []entities.AtRiskPoint) ([]*entities.ReconstructionResult, []ArmFailure) {
	type armKey struct{ endpoint, arm string }

	kmByArm := make(map[armKey][]entities.KMPoint)
	for _, p := range km {
		k := armKey{p.Endpoint, p.Arm}
		kmByArm[k] = append(kmByArm[k], p)
	}
	atriskByArm := make(map[armKey][]entities.AtRiskPoint)
	for _, p := range atrisk {
		k := armKey{p.Endpoint, p.Arm}
		atriskByArm[k] = append(atriskByArm[k], p)
	}

	keys := make([]armKey, 0, len(kmByArm))
	for k := range kmByArm {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].endpoint != keys[j].endpoint {
			return keys[i].endpoint < keys[j].endpoint
		}
		return keys[i].arm < keys[j].arm
	})

	type outcome struct {
		result  *entities.ReconstructionResult
		failure *ArmFailure
	}

	outcomes := make([]outcome, len(keys))
	var wg sync.WaitGroup
	wg.Add(len(keys))

	for i, k := range keys {
		go func(i int, k armKey) {
			defer wg.Done()
			result, err := r.ReconstructArm(k.endpoint, k.arm, kmByArm[k], atriskByArm[k])
			if err != nil {
				logging.Error("Arm reconstruction failed",
					"endpoint", k.endpoint, "arm", k.arm, "error", err)
				outcomes[i] = outcome{failure: &ArmFailure{Endpoint: k.endpoint, Arm: k.arm, Err: err}}
				return
			}
			outcomes[i] = outcome{result: result}
		}(i, k)
	}
	wg.Wait()

	var results []*entities.ReconstructionResult
	var failures []ArmFailure
	for _, o := range outcomes {
		if o.failure != nil {
			failures = append(failures, *o.failure)
		} else if o.result != nil {
			results = append(results, o.result)
		}
	}

	return results, failures
}

// rngFor derives a deterministic PRNG stream for one (endpoint, arm) pair.
func (r *Reconstructor) rngFor(endpoint, arm string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(endpoint))
	h.Write([]byte{'|'})
	h.Write([]byte(arm))
	armHash := h.Sum64()
	return rand.New(rand.NewPCG(r.cfg.Seed^armHash, armHash))
}

func medianTime(records []entities.PatientRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	times := make([]float64, len(records))
	for i, rec := range records {
		times[i] = rec.Time
	}
	sort.Float64s(times)
	return stat.Quantile(0.5, stat.Empirical, times, nil)
}
