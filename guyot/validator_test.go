package guyot

import (
	"errors"
	"testing"

	"github.com/avasseur/ipd-api/guyot/entities"
)

func TestValidateReconstructionPass(t *testing.T) {
	// A faithful cohort: 20 events before t=6, 20 more before t=12, the rest
	// censored at 12, mirroring the published 1.0 / 0.8 / 0.6 curve
	var records []entities.PatientRecord
	id := 0
	for i := 0; i < 20; i++ {
		records = append(records, entities.PatientRecord{PatientID: id, Time: 5.5, Event: 1, Arm: "A"})
		id++
	}
	for i := 0; i < 20; i++ {
		records = append(records, entities.PatientRecord{PatientID: id, Time: 11.5, Event: 1, Arm: "A"})
		id++
	}
	for i := 0; i < 60; i++ {
		records = append(records, entities.PatientRecord{PatientID: id, Time: 12, Event: 0, Arm: "A"})
		id++
	}

	aligned := []entities.AlignedPoint{
		{Time: 0, Survival: 1.0, NRisk: 100},
		{Time: 6, Survival: 0.8, NRisk: 80},
		{Time: 12, Survival: 0.6, NRisk: 60},
	}

	report, err := ValidateReconstruction(records, aligned, nil, "OS", "A", DefaultConfig())
	if err != nil {
		t.Fatalf("Expected validation to pass, got %v", err)
	}
	if report.Integrity != entities.IntegrityPass {
		t.Errorf("Expected integrity pass, got %s", report.Integrity)
	}
	if report.SurvivalMAE > 0.01 {
		t.Errorf("Expected near-zero MAE for a faithful cohort, got %v", report.SurvivalMAE)
	}
	if len(report.Warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", report.Warnings)
	}
}

func TestValidateReconstructionFidelityFailure(t *testing.T) {
	// Every patient has an immediate event while the published curve stays
	// above 0.6: the re-fit cannot possibly match
	var records []entities.PatientRecord
	for i := 0; i < 50; i++ {
		records = append(records, entities.PatientRecord{PatientID: i, Time: 0.5, Event: 1, Arm: "A"})
	}

	aligned := []entities.AlignedPoint{
		{Time: 0, Survival: 1.0, NRisk: 50},
		{Time: 6, Survival: 0.8, NRisk: 40},
		{Time: 12, Survival: 0.6, NRisk: 30},
	}

	_, err := ValidateReconstruction(records, aligned, nil, "OS", "A", DefaultConfig())
	var fidelity *FidelityError
	if !errors.As(err, &fidelity) {
		t.Fatalf("Expected FidelityError, got %v", err)
	}
	if fidelity.Endpoint != "OS" || fidelity.Arm != "A" {
		t.Errorf("Expected failure tagged OS/A, got %s/%s", fidelity.Endpoint, fidelity.Arm)
	}
}

func TestValidateReconstructionErraticThresholds(t *testing.T) {
	// A divergence of about 0.12 sits between warning and failure for both
	// classes, so each passes with a warning attached
	var records []entities.PatientRecord
	id := 0
	for i := 0; i < 28; i++ {
		records = append(records, entities.PatientRecord{PatientID: id, Time: 5.5, Event: 1, Arm: "A"})
		id++
	}
	for i := 0; i < 72; i++ {
		records = append(records, entities.PatientRecord{PatientID: id, Time: 12, Event: 0, Arm: "A"})
		id++
	}

	aligned := []entities.AlignedPoint{
		{Time: 0, Survival: 1.0, NRisk: 100},
		{Time: 6, Survival: 0.9, NRisk: 90},
		{Time: 12, Survival: 0.9, NRisk: 90},
	}

	// MAE is about 0.12: above the smooth 0.05 warning, below the smooth
	// 0.15 failure; on erratic endpoints above 0.10 warning, below 0.30
	smoothReport, err := ValidateReconstruction(records, aligned, nil, "OS", "A", DefaultConfig())
	if err != nil {
		t.Fatalf("Expected smooth endpoint to pass with warning, got %v", err)
	}
	if len(smoothReport.Warnings) == 0 {
		t.Error("Expected a quality warning on the smooth endpoint")
	}

	erraticReport, err := ValidateReconstruction(records, aligned, nil, "PFS", "A", DefaultConfig())
	if err != nil {
		t.Fatalf("Expected erratic endpoint to pass, got %v", err)
	}
	if len(erraticReport.Warnings) == 0 {
		t.Error("Expected a quality warning on the erratic endpoint")
	}
}

func TestValidateReconstructionIntegrity(t *testing.T) {
	aligned := []entities.AlignedPoint{{Time: 0, Survival: 1.0, NRisk: 1}}

	testCases := []struct {
		name    string
		records []entities.PatientRecord
	}{
		{
			name:    "empty cohort",
			records: nil,
		},
		{
			name: "invalid event flag",
			records: []entities.PatientRecord{
				{PatientID: 0, Time: 1, Event: 2, Arm: "A"},
			},
		},
		{
			name: "non-positive time",
			records: []entities.PatientRecord{
				{PatientID: 0, Time: 0, Event: 1, Arm: "A"},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			report, err := ValidateReconstruction(tc.records, aligned, nil, "OS", "A", DefaultConfig())
			var integrity *IntegrityError
			if !errors.As(err, &integrity) {
				t.Fatalf("Expected IntegrityError, got %v", err)
			}
			if report.Integrity != entities.IntegrityFail {
				t.Errorf("Expected integrity fail, got %s", report.Integrity)
			}
		})
	}
}

func TestAtRiskDiscrepancyCrossCheck(t *testing.T) {
	var records []entities.PatientRecord
	id := 0
	for i := 0; i < 20; i++ {
		records = append(records, entities.PatientRecord{PatientID: id, Time: 5.5, Event: 1, Arm: "A"})
		id++
	}
	for i := 0; i < 80; i++ {
		records = append(records, entities.PatientRecord{PatientID: id, Time: 12, Event: 0, Arm: "A"})
		id++
	}

	aligned := []entities.AlignedPoint{
		{Time: 0, Survival: 1.0, NRisk: 100},
		{Time: 6, Survival: 0.8, NRisk: 80},
		{Time: 12, Survival: 0.8, NRisk: 80},
	}
	published := atRiskPoints("OS", "A", [][2]float64{{0, 100}, {6, 80}, {12, 80}})

	report, err := ValidateReconstruction(records, aligned, published, "OS", "A", DefaultConfig())
	if err != nil {
		t.Fatalf("Expected validation to pass, got %v", err)
	}
	// 100 at t=0, 80 at t=6+ matches the table exactly
	if report.AtRiskDiscrepancy > 0.01 {
		t.Errorf("Expected near-zero at-risk discrepancy, got %v", report.AtRiskDiscrepancy)
	}
}
