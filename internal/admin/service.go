// Package admin implements the administrative contract over the scheduler:
// job CRUD, manual triggering, pause/resume, and lock statistics. Definition
// validation lives here so configuration errors surface at write time and
// never reach the dispatch loop.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/harperreed/glimpser-rs-sub000/internal/dispatch"
	"github.com/harperreed/glimpser-rs-sub000/internal/domain"
	"github.com/harperreed/glimpser-rs-sub000/internal/executor"
	"github.com/harperreed/glimpser-rs-sub000/internal/lock"
	"github.com/harperreed/glimpser-rs-sub000/internal/schedule"
	"github.com/harperreed/glimpser-rs-sub000/internal/store"
)

// ErrInvalid marks a rejected job definition (configuration error).
var ErrInvalid = errors.New("invalid job definition")

const defaultTimeout = 5 * time.Minute

// JobDefinition is the write-side shape of a scheduled job.
type JobDefinition struct {
	Name           string          `json:"name"`
	Kind           string          `json:"kind"`
	Schedule       string          `json:"schedule"`
	Params         json.RawMessage `json:"params"`
	Enabled        *bool           `json:"enabled"`
	MaxRetries     int             `json:"max_retries"`
	TimeoutSeconds int             `json:"timeout_seconds"`
	Priority       int             `json:"priority"`
	Tags           []string        `json:"tags"`
	CreatedBy      string          `json:"created_by"`
}

type Service struct {
	jobs       *store.Jobs
	execs      *store.Executions
	locks      lock.Manager
	registry   *executor.Registry
	dispatcher *dispatch.Dispatcher
	instanceID string
	lease      time.Duration
	logger     *slog.Logger
}

func NewService(
	jobs *store.Jobs,
	execs *store.Executions,
	locks lock.Manager,
	registry *executor.Registry,
	dispatcher *dispatch.Dispatcher,
	instanceID string,
	lease time.Duration,
	logger *slog.Logger,
) *Service {
	return &Service{
		jobs:       jobs,
		execs:      execs,
		locks:      locks,
		registry:   registry,
		dispatcher: dispatcher,
		instanceID: instanceID,
		lease:      lease,
		logger:     logger,
	}
}

// buildJob validates a definition and materializes a ScheduledJob with its
// first due time. Pure given the clock; all validation failures wrap
// ErrInvalid.
func buildJob(def JobDefinition, registry *executor.Registry, lease time.Duration, now time.Time) (*domain.ScheduledJob, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if def.Kind == "" {
		return nil, fmt.Errorf("%w: kind is required", ErrInvalid)
	}
	kind := domain.JobKind(def.Kind)
	if _, err := registry.Lookup(kind); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := schedule.Validate(def.Schedule); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if def.MaxRetries < 0 {
		return nil, fmt.Errorf("%w: max_retries must be >= 0", ErrInvalid)
	}
	if def.TimeoutSeconds < 0 {
		return nil, fmt.Errorf("%w: timeout_seconds must be >= 0", ErrInvalid)
	}

	timeout := time.Duration(def.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = defaultTimeout
	}
	// The lock lease must outlive the job timeout.
	if timeout >= lease {
		return nil, fmt.Errorf("%w: timeout %s must be shorter than the lock lease %s",
			ErrInvalid, timeout, lease)
	}
	params := def.Params
	if len(params) == 0 {
		params = json.RawMessage(`{}`)
	}
	enabled := true
	if def.Enabled != nil {
		enabled = *def.Enabled
	}

	next, ok := schedule.NextDue(def.Schedule, now)
	if !ok {
		return nil, fmt.Errorf("%w: schedule %q has no future occurrence", ErrInvalid, def.Schedule)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("new job id: %w", err)
	}
	return &domain.ScheduledJob{
		ID:         id,
		Name:       def.Name,
		Kind:       kind,
		Schedule:   def.Schedule,
		Params:     params,
		Enabled:    enabled,
		MaxRetries: def.MaxRetries,
		Timeout:    timeout,
		Priority:   def.Priority,
		Tags:       def.Tags,
		CreatedBy:  def.CreatedBy,
		NextDueAt:  &next,
	}, nil
}

func (s *Service) ListJobs(ctx context.Context) ([]domain.ScheduledJob, error) {
	return s.jobs.List(ctx)
}

func (s *Service) GetJob(ctx context.Context, id uuid.UUID) (*domain.ScheduledJob, error) {
	return s.jobs.GetByID(ctx, id)
}

func (s *Service) CreateJob(ctx context.Context, def JobDefinition) (*domain.ScheduledJob, error) {
	job, err := buildJob(def, s.registry, s.lease, time.Now())
	if err != nil {
		return nil, err
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}
	s.logger.Info("job created",
		"job_id", job.ID, "name", job.Name, "kind", job.Kind, "schedule", job.Schedule)
	return job, nil
}

// UpdateJob replaces the mutable fields of an existing definition. The new
// definition is validated exactly like a create; the next due time is
// recomputed from the new schedule.
func (s *Service) UpdateJob(ctx context.Context, id uuid.UUID, def JobDefinition) (*domain.ScheduledJob, error) {
	existing, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	job, err := buildJob(def, s.registry, s.lease, time.Now())
	if err != nil {
		return nil, err
	}
	applyUpdate(existing, job, def)
	if err := s.jobs.Update(ctx, job); err != nil {
		return nil, err
	}
	s.logger.Info("job updated", "job_id", job.ID, "name", job.Name)
	return job, nil
}

// applyUpdate carries immutable fields from the existing row onto the rebuilt
// job, and keeps the pause state when the update body leaves enabled unset.
func applyUpdate(existing, job *domain.ScheduledJob, def JobDefinition) {
	job.ID = existing.ID
	job.CreatedBy = existing.CreatedBy
	job.CreatedAt = existing.CreatedAt
	if def.Enabled == nil {
		job.Enabled = existing.Enabled
	}
}

func (s *Service) DeleteJob(ctx context.Context, id uuid.UUID) error {
	if err := s.jobs.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("job deleted", "job_id", id)
	return nil
}

// TriggerNow dispatches the job immediately, bypassing the schedule but not
// the lock: a job running elsewhere yields lock.ErrConflict.
func (s *Service) TriggerNow(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	return s.dispatcher.TriggerNow(ctx, id)
}

func (s *Service) Pause(ctx context.Context, id uuid.UUID) error {
	return s.jobs.SetEnabled(ctx, id, false)
}

func (s *Service) Resume(ctx context.Context, id uuid.UUID) error {
	return s.jobs.SetEnabled(ctx, id, true)
}

func (s *Service) ListExecutions(ctx context.Context, jobID uuid.UUID, limit int) ([]domain.JobExecution, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return s.execs.ListByJob(ctx, jobID, limit)
}

func (s *Service) LockStats(ctx context.Context) (lock.Stats, error) {
	return s.locks.Stats(ctx)
}

// InstanceID returns the identity string this process registered with.
func (s *Service) InstanceID() string {
	return s.instanceID
}
