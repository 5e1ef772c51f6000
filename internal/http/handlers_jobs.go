package httpx

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/popmap/popmap-api/internal/domain/model"
	"github.com/popmap/popmap-api/internal/service"
)

// JobHandlers is the admin surface over the background job queue. Workers run
// in-process and claim jobs straight from the repository, so these endpoints
// exist for operators: enqueueing a one-off job, inspecting queue depth, and
// checking on a delivery. All routes are registered behind the admin gate.
type JobHandlers struct {
	jobs   *service.JobService
	logger *slog.Logger
}

// JobHandlersOptions groups dependencies for JobHandlers.
type JobHandlersOptions struct {
	Jobs   *service.JobService // Required
	Logger *slog.Logger
}

// NewJobHandlers constructs handlers for job queue endpoints.
func NewJobHandlers(opts JobHandlersOptions) *JobHandlers {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &JobHandlers{jobs: opts.Jobs, logger: logger}
}

// Create enqueues a job. Useful for triggering a rollup or reminder scan
// outside its schedule.
func (h *JobHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateJobRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	job, err := h.jobs.Create(r.Context(), &req)
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, job)
}

type jobListResponse struct {
	Jobs []*model.Job `json:"jobs"`
}

// List returns queue contents filtered by status, type, event or business.
func (h *JobHandlers) List(w http.ResponseWriter, r *http.Request) {
	opts, ok := parseJobListOptions(w, r)
	if !ok {
		return
	}

	jobs, err := h.jobs.List(r.Context(), opts)
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	if jobs == nil {
		jobs = []*model.Job{}
	}
	WriteJSON(w, http.StatusOK, jobListResponse{Jobs: jobs})
}

// Stats returns queue depth per status for one job type.
func (h *JobHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	jobType := model.JobType(r.PathValue("type"))
	if !jobType.Valid() {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_path",
			Err:     fmt.Errorf("unknown job type %q", string(jobType)),
		})
		return
	}

	stats, err := h.jobs.Stats(r.Context(), jobType)
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}

// GetStatus returns the status of a single job.
func (h *JobHandlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	status, err := h.jobs.GetStatus(r.Context(), jobID)
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, status)
}

func parseJobListOptions(w http.ResponseWriter, r *http.Request) (*model.JobListOptions, bool) {
	q := r.URL.Query()
	sortBy, sortOrder := ParseSortParam(q, "sort", "dir")
	opts := &model.JobListOptions{
		SortBy:    sortBy,
		SortOrder: sortOrder,
	}
	opts.Limit, opts.Offset = ParseLimitOffset(r, defaultBusinessPageSize, maxBusinessPageSize)

	if raw := q.Get("status"); raw != "" {
		status := model.JobStatus(raw)
		if !status.Valid() {
			WriteError(w, ErrorParams{
				Code:    http.StatusBadRequest,
				ErrCode: "invalid_query",
				Err:     fmt.Errorf("unknown status %q", raw),
			})
			return nil, false
		}
		opts.Status = &status
	}
	if raw := q.Get("type"); raw != "" {
		jobType := model.JobType(raw)
		if !jobType.Valid() {
			WriteError(w, ErrorParams{
				Code:    http.StatusBadRequest,
				ErrCode: "invalid_query",
				Err:     fmt.Errorf("unknown job type %q", raw),
			})
			return nil, false
		}
		opts.Type = &jobType
	}
	if eventID := q.Get("event_id"); eventID != "" {
		opts.EventID = &eventID
	}
	if businessID := q.Get("business_id"); businessID != "" {
		opts.BusinessID = &businessID
	}
	return opts, true
}
