package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/harperreed/glimpser-rs-sub000/internal/dispatch"
	"github.com/harperreed/glimpser-rs-sub000/internal/domain"
	"github.com/harperreed/glimpser-rs-sub000/internal/lock"
	"github.com/harperreed/glimpser-rs-sub000/internal/store"
)

// Routes mounts the administrative API on mux.
func (s *Service) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/jobs", s.handleListJobs)
	mux.HandleFunc("POST /v1/jobs", s.handleCreateJob)
	mux.HandleFunc("GET /v1/jobs/{id}", s.handleGetJob)
	mux.HandleFunc("PUT /v1/jobs/{id}", s.handleUpdateJob)
	mux.HandleFunc("DELETE /v1/jobs/{id}", s.handleDeleteJob)
	mux.HandleFunc("POST /v1/jobs/{id}/trigger", s.handleTrigger)
	mux.HandleFunc("POST /v1/jobs/{id}/pause", s.handlePause)
	mux.HandleFunc("POST /v1/jobs/{id}/resume", s.handleResume)
	mux.HandleFunc("GET /v1/jobs/{id}/executions", s.handleListExecutions)
	mux.HandleFunc("GET /v1/locks/stats", s.handleLockStats)
	mux.HandleFunc("GET /v1/instance", s.handleInstance)
}

type jobResponse struct {
	ID         uuid.UUID       `json:"id"`
	Name       string          `json:"name"`
	Kind       string          `json:"kind"`
	Schedule   string          `json:"schedule"`
	Params     json.RawMessage `json:"params"`
	Enabled    bool            `json:"enabled"`
	MaxRetries int             `json:"max_retries"`
	TimeoutSec int             `json:"timeout_seconds"`
	Priority   int             `json:"priority"`
	Tags       []string        `json:"tags"`
	CreatedBy  string          `json:"created_by"`
	NextDueAt  *time.Time      `json:"next_due_at,omitempty"`
	LastRunAt  *time.Time      `json:"last_run_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func toJobResponse(job *domain.ScheduledJob) jobResponse {
	return jobResponse{
		ID:         job.ID,
		Name:       job.Name,
		Kind:       string(job.Kind),
		Schedule:   job.Schedule,
		Params:     job.Params,
		Enabled:    job.Enabled,
		MaxRetries: job.MaxRetries,
		TimeoutSec: int(job.Timeout.Seconds()),
		Priority:   job.Priority,
		Tags:       job.Tags,
		CreatedBy:  job.CreatedBy,
		NextDueAt:  job.NextDueAt,
		LastRunAt:  job.LastRunAt,
		CreatedAt:  job.CreatedAt,
		UpdatedAt:  job.UpdatedAt,
	}
}

type executionResponse struct {
	ID          uuid.UUID       `json:"id"`
	JobID       uuid.UUID       `json:"job_id"`
	Status      string          `json:"status"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	DurationMS  int64           `json:"duration_ms"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       *string         `json:"error,omitempty"`
	RetryCount  int             `json:"retry_count"`
	InstanceID  string          `json:"instance_id"`
}

func toExecutionResponse(exec *domain.JobExecution) executionResponse {
	return executionResponse{
		ID:          exec.ID,
		JobID:       exec.JobID,
		Status:      string(exec.Status),
		StartedAt:   exec.StartedAt,
		CompletedAt: exec.CompletedAt,
		DurationMS:  exec.Duration.Milliseconds(),
		Result:      exec.Result,
		Error:       exec.Error,
		RetryCount:  exec.RetryCount,
		InstanceID:  exec.InstanceID,
	}
}

func (s *Service) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.ListJobs(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]jobResponse, len(jobs))
	for i := range jobs {
		out[i] = toJobResponse(&jobs[i])
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Service) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var def JobDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	job, err := s.CreateJob(r.Context(), def)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toJobResponse(job))
}

func (s *Service) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	job, err := s.GetJob(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(job))
}

func (s *Service) handleUpdateJob(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var def JobDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	job, err := s.UpdateJob(r.Context(), id, def)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(job))
}

func (s *Service) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.DeleteJob(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleTrigger(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	execID, err := s.TriggerNow(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"execution_id": execID.String(),
	})
}

func (s *Service) handlePause(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.Pause(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleResume(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.Resume(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	execs, err := s.ListExecutions(r.Context(), id, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]executionResponse, len(execs))
	for i := range execs {
		out[i] = toExecutionResponse(&execs[i])
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Service) handleLockStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.LockStats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Service) handleInstance(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"instance_id": s.InstanceID(),
	})
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func (s *Service) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalid):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, lock.ErrConflict):
		http.Error(w, "job is locked by another instance", http.StatusConflict)
	case errors.Is(err, dispatch.ErrAtCapacity):
		http.Error(w, "instance at capacity, retry later", http.StatusTooManyRequests)
	default:
		s.logger.Error("admin request failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
