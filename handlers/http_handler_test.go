package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/avasseur/ipd-api/data"
	"github.com/avasseur/ipd-api/export"
	"github.com/avasseur/ipd-api/guyot"
	"github.com/avasseur/ipd-api/guyot/entities"
	"github.com/avasseur/ipd-api/health"
	"github.com/avasseur/ipd-api/validation"
)

func newTestHandler(t *testing.T) (*HTTPHandler, *data.StudyContainer, chi.Router) {
	t.Helper()

	store := data.NewStudyContainer()
	store.SetServerStartTime(time.Now())

	exporter, err := export.NewFileExporter(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create exporter: %v", err)
	}

	handler := NewHTTPHandler(
		store,
		guyot.NewReconstructor(guyot.DefaultConfig()),
		exporter,
		validation.NewStudyValidator(),
		health.NewChecker(store, 7*24*time.Hour),
	)

	router := chi.NewRouter()
	router.Post("/studies", handler.UploadStudy)
	router.Post("/studies/csv", handler.UploadStudyCSV)
	router.Post("/reconstruct", handler.RunReconstruction)
	router.Get("/reconstruction/{endpoint}/{arm}", handler.GetReconstruction)
	router.Get("/reconstruction/{endpoint}/{arm}/patients", handler.GetPatients)
	router.Get("/export/{endpoint}/{arm}.csv", handler.ExportCSV)
	router.Get("/export/{endpoint}/{arm}.parquet", handler.ExportParquet)
	router.Get("/health", handler.HealthCheck)

	return handler, store, router
}

func samplePayload() StudyPayload {
	return StudyPayload{
		KMPoints: []entities.KMPoint{
			{Endpoint: "OS", Arm: "A", TimeMonths: 0, Survival: 1.0},
			{Endpoint: "OS", Arm: "A", TimeMonths: 6, Survival: 0.8},
			{Endpoint: "OS", Arm: "A", TimeMonths: 12, Survival: 0.6},
		},
		AtRiskPoints: []entities.AtRiskPoint{
			{Endpoint: "OS", Arm: "A", TimeMonths: 0, NRisk: 100},
			{Endpoint: "OS", Arm: "A", TimeMonths: 6, NRisk: 70},
			{Endpoint: "OS", Arm: "A", TimeMonths: 12, NRisk: 40},
		},
	}
}

func postJSON(t *testing.T, router chi.Router, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Failed to marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func get(router chi.Router, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestUploadStudy(t *testing.T) {
	_, store, router := newTestHandler(t)

	rec := postJSON(t, router, "/studies", samplePayload())
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Expected JSON response, got %v", err)
	}
	if resp["survival_points"] != 3 || resp["arms"] != 1 {
		t.Errorf("Unexpected upload summary %v", resp)
	}
	if len(store.GetKMPoints()) != 3 {
		t.Errorf("Expected 3 points stored, got %d", len(store.GetKMPoints()))
	}
}

func TestUploadStudyRejectsInvalidPayload(t *testing.T) {
	_, _, router := newTestHandler(t)

	payload := samplePayload()
	payload.KMPoints[0].Survival = -1

	rec := postJSON(t, router, "/studies", payload)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid survival, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/studies", strings.NewReader("{not json"))
	out := httptest.NewRecorder()
	router.ServeHTTP(out, req)
	if out.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed JSON, got %d", out.Code)
	}
}

func TestUploadStudyCSV(t *testing.T) {
	_, store, router := newTestHandler(t)

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	kmPart, err := form.CreateFormFile("survival", "km.csv")
	if err != nil {
		t.Fatalf("Failed to build form: %v", err)
	}
	if _, err := kmPart.Write([]byte("endpoint,arm,time_months,survival\nOS,A,0,1.0\nOS,A,6,0.8\n")); err != nil {
		t.Fatalf("Failed to write form part: %v", err)
	}
	riskPart, err := form.CreateFormFile("at_risk", "risk.csv")
	if err != nil {
		t.Fatalf("Failed to build form: %v", err)
	}
	if _, err := riskPart.Write([]byte("endpoint,arm,time_months,n_risk\nOS,A,0,100\n")); err != nil {
		t.Fatalf("Failed to write form part: %v", err)
	}
	if err := form.Close(); err != nil {
		t.Fatalf("Failed to close form: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/studies/csv", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(store.GetKMPoints()) != 2 || len(store.GetAtRiskPoints()) != 1 {
		t.Errorf("Expected stored payload 2/1, got %d/%d",
			len(store.GetKMPoints()), len(store.GetAtRiskPoints()))
	}
}

func TestUploadStudyCSVMissingFile(t *testing.T) {
	_, _, router := newTestHandler(t)

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	_ = form.Close()

	req := httptest.NewRequest(http.MethodPost, "/studies/csv", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without a survival file, got %d", rec.Code)
	}
}

func TestRunReconstructionOnStoredStudy(t *testing.T) {
	_, store, router := newTestHandler(t)

	if rec := postJSON(t, router, "/studies", samplePayload()); rec.Code != http.StatusCreated {
		t.Fatalf("Upload failed with %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/reconstruct", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp ReconstructResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Expected JSON response, got %v", err)
	}
	if len(resp.Results) != 1 || len(resp.Failures) != 0 {
		t.Fatalf("Expected 1 result and no failures, got %+v", resp)
	}
	if resp.Results[0].NPatients != 100 {
		t.Errorf("Expected 100 patients, got %d", resp.Results[0].NPatients)
	}

	if _, ok := store.GetResult("OS", "A"); !ok {
		t.Error("Expected result stored for OS/A")
	}
}

func TestRunReconstructionWithoutStudy(t *testing.T) {
	_, _, router := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/reconstruct", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 with no study uploaded, got %d", rec.Code)
	}
}

func TestRunReconstructionInlinePayload(t *testing.T) {
	_, store, router := newTestHandler(t)

	rec := postJSON(t, router, "/reconstruct", samplePayload())
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(store.GetKMPoints()) != 3 {
		t.Error("Expected inline payload to replace the store")
	}
}

func TestRunReconstructionReportsArmFailures(t *testing.T) {
	_, _, router := newTestHandler(t)

	payload := samplePayload()
	// A second arm whose only point is survival zero cannot be matched by
	// any refit
	payload.KMPoints = append(payload.KMPoints,
		entities.KMPoint{Endpoint: "OS", Arm: "B", TimeMonths: 0, Survival: 0})

	rec := postJSON(t, router, "/reconstruct", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 with partial success, got %d", rec.Code)
	}

	var resp ReconstructResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Expected JSON response, got %v", err)
	}
	if len(resp.Results) != 1 {
		t.Errorf("Expected arm A to succeed, got %d results", len(resp.Results))
	}
	if len(resp.Failures) != 1 || resp.Failures[0].Arm != "B" {
		t.Errorf("Expected arm B failure, got %+v", resp.Failures)
	}
}

func TestGetReconstructionAndPatients(t *testing.T) {
	_, _, router := newTestHandler(t)

	postJSON(t, router, "/reconstruct", samplePayload())

	rec := get(router, "/reconstruction/OS/A")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var result entities.ReconstructionResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("Expected JSON result, got %v", err)
	}
	if result.InitialN != 100 {
		t.Errorf("Expected 100 patients, got %d", result.InitialN)
	}

	rec = get(router, "/reconstruction/OS/A/patients")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var patients []entities.PatientRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &patients); err != nil {
		t.Fatalf("Expected JSON patient table, got %v", err)
	}
	if len(patients) != 100 {
		t.Errorf("Expected 100 patient records, got %d", len(patients))
	}

	rec = get(router, "/reconstruction/OS/missing")
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown arm, got %d", rec.Code)
	}
}

func TestExportEndpoints(t *testing.T) {
	_, _, router := newTestHandler(t)

	postJSON(t, router, "/reconstruct", samplePayload())

	rec := get(router, "/export/OS/A.csv")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 for csv export, got %d", rec.Code)
	}
	if !strings.HasPrefix(rec.Body.String(), "patient_id,time,event,arm") {
		t.Errorf("Expected csv header, got %q", rec.Body.String()[:40])
	}

	rec = get(router, "/export/OS/A.parquet")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 for parquet export, got %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Error("Expected non-empty parquet body")
	}

	rec = get(router, "/export/OS/missing.csv")
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown arm, got %d", rec.Code)
	}
}

func TestHealthCheckStatus(t *testing.T) {
	_, _, router := newTestHandler(t)

	rec := get(router, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var details map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &details); err != nil {
		t.Fatalf("Expected JSON health payload, got %v", err)
	}
	if details["status"] != "idle" {
		t.Errorf("Expected idle status before upload, got %v", details["status"])
	}

	postJSON(t, router, "/studies", samplePayload())
	rec = get(router, "/health")
	_ = json.Unmarshal(rec.Body.Bytes(), &details)
	if details["status"] != "awaiting_reconstruction" {
		t.Errorf("Expected awaiting_reconstruction after upload, got %v", details["status"])
	}

	postJSON(t, router, "/reconstruct", samplePayload())
	rec = get(router, "/health")
	_ = json.Unmarshal(rec.Body.Bytes(), &details)
	if details["status"] != "healthy" {
		t.Errorf("Expected healthy after reconstruction, got %v", details["status"])
	}
}
