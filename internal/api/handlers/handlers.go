package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"cloud.google.com/go/civil"

	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/api/middleware"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/domain"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/jobs"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/logger"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/model"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/pipeline"
)

// Forecaster serves predictions from the currently loaded model.
type Forecaster interface {
	Predict(ctx context.Context, customerID string, target civil.Date) (pipeline.Prediction, error)
	// Artifacts reports the loaded model; false when none is loaded yet.
	Artifacts() (model.Artifacts, bool)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrModelNotLoaded):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrNoHistory):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSchema), errors.Is(err, domain.ErrConfig):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// PredictionsHandler handles prediction endpoints.
type PredictionsHandler struct {
	forecaster Forecaster
}

func NewPredictionsHandler(f Forecaster) *PredictionsHandler {
	return &PredictionsHandler{forecaster: f}
}

// GetPrediction handles GET /api/predictions?customer_id=...&date=YYYY-MM-DD
func (h *PredictionsHandler) GetPrediction(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	customerID := query.Get("customer_id")
	if customerID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "customer_id is required")
		return
	}
	target, err := civil.ParseDate(query.Get("date"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	pred, err := h.forecaster.Predict(r.Context(), customerID, target)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			log := logger.FromContext(r.Context())
			log.Error().Err(err).Str("customer_id", customerID).Msg("Prediction failed")
			middleware.WriteError(w, status, "Prediction failed")
			return
		}
		middleware.WriteError(w, status, err.Error())
		return
	}

	middleware.WriteJSON(w, http.StatusOK, pred)
}

// GetModel handles GET /api/model
func (h *PredictionsHandler) GetModel(w http.ResponseWriter, r *http.Request) {
	art, ok := h.forecaster.Artifacts()
	if !ok {
		middleware.WriteError(w, http.StatusServiceUnavailable, "No model loaded, enqueue a training run")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"kind":            art.Model.Kind,
		"lambda":          art.Model.Lambda,
		"feature_columns": art.Columns,
		"metrics":         art.Report,
	})
}

// RunsHandler handles training run endpoints.
type RunsHandler struct {
	publisher jobs.Publisher
	store     jobs.JobStore
	// Used when a request omits its dates.
	defaultStart string
	defaultEnd   string
}

func NewRunsHandler(publisher jobs.Publisher, store jobs.JobStore, defaultStart, defaultEnd string) *RunsHandler {
	return &RunsHandler{
		publisher:    publisher,
		store:        store,
		defaultStart: defaultStart,
		defaultEnd:   defaultEnd,
	}
}

// CreateRun handles POST /api/runs
func (h *RunsHandler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}
	if req.StartDate == "" {
		req.StartDate = h.defaultStart
	}
	if req.EndDate == "" {
		req.EndDate = h.defaultEnd
	}

	start, err := civil.ParseDate(req.StartDate)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD")
		return
	}
	end, err := civil.ParseDate(req.EndDate)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "end_date must be YYYY-MM-DD")
		return
	}
	if end.Before(start) {
		middleware.WriteError(w, http.StatusBadRequest, "end_date is before start_date")
		return
	}

	job := &jobs.TrainingJob{StartDate: start.String(), EndDate: end.String()}
	if err := h.publisher.PublishTraining(r.Context(), job); err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("Failed to enqueue training run")
		status := http.StatusInternalServerError
		if errors.Is(err, jobs.ErrQueueClosed) {
			status = http.StatusServiceUnavailable
		}
		middleware.WriteError(w, status, "Failed to enqueue training run")
		return
	}

	log := logger.FromContext(r.Context())
	log.Info().
		Str("job_id", job.JobID).
		Str("start_date", job.StartDate).
		Str("end_date", job.EndDate).
		Msg("Training run enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":     job.JobID,
		"start_date": job.StartDate,
		"end_date":   job.EndDate,
		"status":     string(job.Status),
	})
}

// GetRun handles GET /api/runs/{id}
func (h *RunsHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListRuns handles GET /api/runs
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{Status: jobs.JobStatus(query.Get("status"))}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	list, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  list,
		"count": len(list),
	})
}
