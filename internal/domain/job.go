package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobKind discriminates which executor handles a scheduled job.
type JobKind string

const (
	KindCapture      JobKind = "capture"
	KindSnapshot     JobKind = "snapshot"
	KindNotification JobKind = "notification"
	KindCleanup      JobKind = "cleanup"
)

// ScheduledJob is a job definition. The scheduler treats it as read-only;
// mutation happens through the administrative surface.
type ScheduledJob struct {
	ID         uuid.UUID
	Name       string
	Kind       JobKind
	Schedule   string // 5-field cron expression
	Params     json.RawMessage
	Enabled    bool
	MaxRetries int
	Timeout    time.Duration
	Priority   int // higher dispatches first
	Tags       []string
	CreatedBy  string
	NextDueAt  *time.Time
	LastRunAt  *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionSucceeded ExecutionStatus = "succeeded"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionTimedOut  ExecutionStatus = "timed_out"
	ExecutionCancelled ExecutionStatus = "cancelled"
)

// Terminal reports whether the status is final. Finalized executions are
// immutable.
func (s ExecutionStatus) Terminal() bool {
	switch s {
	case ExecutionSucceeded, ExecutionFailed, ExecutionTimedOut, ExecutionCancelled:
		return true
	}
	return false
}

// JobExecution records one dispatch attempt. Its ID doubles as the
// idempotency key linking the execution to the lock that protects it.
type JobExecution struct {
	ID          uuid.UUID
	JobID       uuid.UUID
	Status      ExecutionStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Duration    time.Duration
	Result      json.RawMessage
	Error       *string
	RetryCount  int
	InstanceID  string
}

type LockStatus string

const (
	LockAcquired LockStatus = "acquired"
	LockReleased LockStatus = "released"
	LockExpired  LockStatus = "expired"
)

// JobLock is the mutual-exclusion record. The store enforces that at most one
// row per job_id carries status "acquired" at any instant.
type JobLock struct {
	ID             uuid.UUID
	JobID          uuid.UUID
	ExecutionID    uuid.UUID
	InstanceID     string
	LockedAt       time.Time
	LeaseExpiresAt time.Time
	Status         LockStatus
	ReleasedAt     *time.Time
}

// Instance is one scheduler process registered against the shared store.
// Informational only; correctness never depends on instance liveness rows.
type Instance struct {
	ID            string
	Hostname      string
	PID           int
	LastHeartbeat time.Time
	Status        string
	RegisteredAt  time.Time
}
