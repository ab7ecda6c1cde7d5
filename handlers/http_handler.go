// Package handlers provides the HTTP request handlers for the reconstruction
// service endpoints.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/avasseur/ipd-api/data"
	"github.com/avasseur/ipd-api/guyot/entities"
	"github.com/avasseur/ipd-api/interfaces"
	"github.com/avasseur/ipd-api/logging"
	"github.com/avasseur/ipd-api/metrics"
	"github.com/avasseur/ipd-api/studyparser"
)

// HTTPHandler serves the study upload, reconstruction and export routes.
type HTTPHandler struct {
	store         interfaces.StudyStore
	reconstructor interfaces.Reconstructor
	exporter      interfaces.Exporter
	validator     interfaces.PayloadValidator
	health        interfaces.HealthChecker
}

// NewHTTPHandler creates a handler with injected dependencies.
func NewHTTPHandler(
	store interfaces.StudyStore,
	reconstructor interfaces.Reconstructor,
	exporter interfaces.Exporter,
	validator interfaces.PayloadValidator,
	health interfaces.HealthChecker,
) *HTTPHandler {
	return &HTTPHandler{
		store:         store,
		reconstructor: reconstructor,
		exporter:      exporter,
		validator:     validator,
		health:        health,
	}
}

// StudyPayload is the JSON body of POST /studies and the optional inline
// body of POST /reconstruct.
type StudyPayload struct {
	KMPoints     []entities.KMPoint     `json:"km_points"`
	AtRiskPoints []entities.AtRiskPoint `json:"at_risk_points,omitempty"`
}

// ArmError describes one failed arm in a reconstruction batch response.
type ArmError struct {
	Endpoint string `json:"endpoint"`
	Arm      string `json:"arm"`
	Error    string `json:"error"`
}

// ReconstructResponse is the body of a completed POST /reconstruct.
type ReconstructResponse struct {
	Results  []entities.Summary `json:"results"`
	Failures []ArmError         `json:"failures,omitempty"`
}

// RespondWithJSON writes a JSON response.
func (h *HTTPHandler) RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if _, err := w.Write(body); err != nil {
		logging.Warn("Failed to write response body", "error", err)
	}
}

// RespondWithError writes a JSON error response.
func (h *HTTPHandler) RespondWithError(w http.ResponseWriter, code int, message string) {
	h.RespondWithJSON(w, code, map[string]interface{}{
		"error":   http.StatusText(code),
		"message": message,
		"code":    code,
	})
}

// UploadStudy handles POST /studies with a JSON payload.
func (h *HTTPHandler) UploadStudy(w http.ResponseWriter, r *http.Request) {
	var payload StudyPayload
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&payload); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, "Invalid JSON body: "+err.Error())
		return
	}

	h.storeStudy(w, payload.KMPoints, payload.AtRiskPoints)
}

// UploadStudyCSV handles POST /studies/csv with multipart form files. The
// "survival" file is required, the "at_risk" file is optional.
func (h *HTTPHandler) UploadStudyCSV(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return
	}

	kmFile, _, err := r.FormFile("survival")
	if err != nil {
		h.RespondWithError(w, http.StatusBadRequest, "Missing required file field 'survival'")
		return
	}
	defer func() {
		if err := kmFile.Close(); err != nil {
			logging.Warn("Failed to close uploaded survival file", "error", err)
		}
	}()

	km, err := studyparser.ParseKMCSV(kmFile)
	if err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	var atrisk []entities.AtRiskPoint
	if atRiskFile, _, err := r.FormFile("at_risk"); err == nil {
		defer func() {
			if err := atRiskFile.Close(); err != nil {
				logging.Warn("Failed to close uploaded at-risk file", "error", err)
			}
		}()
		atrisk, err = studyparser.ParseAtRiskCSV(atRiskFile)
		if err != nil {
			h.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	h.storeStudy(w, km, atrisk)
}

// storeStudy validates and stores an uploaded payload, replying with counts.
func (h *HTTPHandler) storeStudy(w http.ResponseWriter, km []entities.KMPoint, atrisk []entities.AtRiskPoint) {
	if err := h.validator.ValidateStudy(km, atrisk); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.store.UpdateStudy(km, atrisk)

	arms := make(map[string]struct{})
	for _, p := range km {
		arms[data.ArmKey(p.Endpoint, p.Arm)] = struct{}{}
	}
	logging.Info("Study payload stored",
		"survival_points", len(km), "at_risk_points", len(atrisk), "arms", len(arms))

	h.RespondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"survival_points": len(km),
		"at_risk_points":  len(atrisk),
		"arms":            len(arms),
	})
}

// RunReconstruction handles POST /reconstruct. With an empty body it runs on
// the stored study; an inline StudyPayload body reconstructs that payload
// instead (and replaces the store).
func (h *HTTPHandler) RunReconstruction(w http.ResponseWriter, r *http.Request) {
	km := h.store.GetKMPoints()
	atrisk := h.store.GetAtRiskPoints()

	if r.ContentLength > 0 {
		var payload StudyPayload
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&payload); err != nil {
			h.RespondWithError(w, http.StatusBadRequest, "Invalid JSON body: "+err.Error())
			return
		}
		if err := h.validator.ValidateStudy(payload.KMPoints, payload.AtRiskPoints); err != nil {
			h.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		km = payload.KMPoints
		atrisk = payload.AtRiskPoints
		h.store.UpdateStudy(km, atrisk)
	}

	if len(km) == 0 {
		h.RespondWithError(w, http.StatusConflict, "No study data uploaded")
		return
	}

	if !h.store.BeginReconstruction() {
		h.RespondWithError(w, http.StatusConflict, "A reconstruction is already running")
		return
	}
	defer h.store.EndReconstruction()

	start := time.Now()
	results, failures := h.reconstructor.ReconstructAll(km, atrisk)
	metrics.ReconstructionDuration.Observe(time.Since(start).Seconds())

	resultMap := make(map[string]*entities.ReconstructionResult, len(results))
	response := ReconstructResponse{}
	for _, result := range results {
		resultMap[data.ArmKey(result.Endpoint, result.Arm)] = result
		summary := result.Summarize()
		response.Results = append(response.Results, summary)
		metrics.ReconstructionsTotal.WithLabelValues(summary.ValidationStatus).Inc()
		metrics.ReconstructionMAE.Observe(result.Validation.SurvivalMAE)
	}
	for _, failure := range failures {
		response.Failures = append(response.Failures, ArmError{
			Endpoint: failure.Endpoint,
			Arm:      failure.Arm,
			Error:    failure.Err.Error(),
		})
		metrics.ReconstructionsTotal.WithLabelValues("failed").Inc()
	}

	h.store.UpdateResults(resultMap)

	code := http.StatusOK
	if len(results) == 0 && len(failures) > 0 {
		code = http.StatusUnprocessableEntity
	}
	h.RespondWithJSON(w, code, response)
}

// lookupResult resolves the {endpoint}/{arm} route params to a stored result.
func (h *HTTPHandler) lookupResult(w http.ResponseWriter, r *http.Request) (*entities.ReconstructionResult, bool) {
	endpoint := chi.URLParam(r, "endpoint")
	arm := chi.URLParam(r, "arm")
	if endpoint == "" || arm == "" {
		h.RespondWithError(w, http.StatusBadRequest, "Missing endpoint or arm")
		return nil, false
	}

	result, ok := h.store.GetResult(endpoint, arm)
	if !ok {
		h.RespondWithError(w, http.StatusNotFound, "No reconstruction for this endpoint and arm")
		return nil, false
	}
	return result, true
}

// GetReconstruction handles GET /reconstruction/{endpoint}/{arm}.
func (h *HTTPHandler) GetReconstruction(w http.ResponseWriter, r *http.Request) {
	result, ok := h.lookupResult(w, r)
	if !ok {
		return
	}
	h.RespondWithJSON(w, http.StatusOK, result)
}

// GetPatients handles GET /reconstruction/{endpoint}/{arm}/patients.
func (h *HTTPHandler) GetPatients(w http.ResponseWriter, r *http.Request) {
	result, ok := h.lookupResult(w, r)
	if !ok {
		return
	}
	h.RespondWithJSON(w, http.StatusOK, result.Records)
}

// ExportCSV handles GET /export/{endpoint}/{arm}.csv.
func (h *HTTPHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "csv", "text/csv", h.exporter.WriteCSV)
}

// ExportParquet handles GET /export/{endpoint}/{arm}.parquet.
func (h *HTTPHandler) ExportParquet(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "parquet", "application/octet-stream", h.exporter.WriteParquet)
}

func (h *HTTPHandler) export(w http.ResponseWriter, r *http.Request, format, contentType string,
	write func(*entities.ReconstructionResult) (string, error)) {
	result, ok := h.lookupResult(w, r)
	if !ok {
		return
	}

	path, err := write(result)
	if err != nil {
		logging.Error("Export failed",
			"endpoint", result.Endpoint, "arm", result.Arm, "format", format, "error", err)
		h.RespondWithError(w, http.StatusInternalServerError, "Export failed")
		return
	}

	w.Header().Set("Content-Type", contentType)
	http.ServeFile(w, r, path)
}

// HealthCheck handles GET /health.
func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	healthy, details := h.health.Check()
	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	h.RespondWithJSON(w, code, details)
}
