// Package dispatch runs the poll loop that turns due jobs into executions.
// All cross-instance coordination happens through the lock manager; the loop
// itself never blocks on a contended job.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harperreed/glimpser-rs-sub000/internal/domain"
	"github.com/harperreed/glimpser-rs-sub000/internal/executor"
	"github.com/harperreed/glimpser-rs-sub000/internal/lock"
	"github.com/harperreed/glimpser-rs-sub000/internal/metrics"
	"github.com/harperreed/glimpser-rs-sub000/internal/mq"
	"github.com/harperreed/glimpser-rs-sub000/internal/schedule"
	"github.com/harperreed/glimpser-rs-sub000/internal/store"
)

// candidateBatch bounds how many due jobs one tick considers.
const candidateBatch = 100

// ErrAtCapacity is returned by TriggerNow when every execution slot on this
// instance is busy.
var ErrAtCapacity = errors.New("instance at concurrency capacity")

type Dispatcher struct {
	jobs      *store.Jobs
	execs     *store.Executions
	instances *store.Instances
	locks     lock.Manager
	registry  *executor.Registry
	publisher *mq.Publisher // nil disables event publishing
	logger    *slog.Logger

	instanceID   string
	pollInterval time.Duration
	lease        time.Duration
	jitter       time.Duration

	// sem bounds concurrently running executions on this instance.
	// Candidates that find it full are deferred to the next tick.
	sem chan struct{}

	mu      sync.Mutex
	baseCtx context.Context

	wg        sync.WaitGroup
	loopDone  chan struct{}
	startOnce sync.Once
}

type Config struct {
	Jobs      *store.Jobs
	Execs     *store.Executions
	Instances *store.Instances
	Locks     lock.Manager
	Registry  *executor.Registry
	Publisher *mq.Publisher
	Logger    *slog.Logger

	InstanceID    string
	PollInterval  time.Duration
	LockLease     time.Duration
	Jitter        time.Duration
	MaxConcurrent int
}

func New(cfg Config) *Dispatcher {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Dispatcher{
		jobs:         cfg.Jobs,
		execs:        cfg.Execs,
		instances:    cfg.Instances,
		locks:        cfg.Locks,
		registry:     cfg.Registry,
		publisher:    cfg.Publisher,
		logger:       cfg.Logger,
		instanceID:   cfg.InstanceID,
		pollInterval: cfg.PollInterval,
		lease:        cfg.LockLease,
		jitter:       cfg.Jitter,
		sem:          make(chan struct{}, maxConcurrent),
		loopDone:     make(chan struct{}),
	}
}

// Start runs the poll loop until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	d.baseCtx = ctx
	d.mu.Unlock()

	defer d.startOnce.Do(func() { close(d.loopDone) })

	d.logger.Info("dispatcher starting",
		"instance_id", d.instanceID,
		"poll_interval", d.pollInterval,
		"lease", d.lease,
		"max_concurrent", cap(d.sem))

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.tick(ctx)
		}
	}
}

// Drain blocks until the poll loop has exited and every in-flight execution
// has finalized, or until ctx expires.
func (d *Dispatcher) Drain(ctx context.Context) error {
	select {
	case <-d.loopDone:
	case <-ctx.Done():
		return ctx.Err()
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// tick processes one poll cycle. A store error aborts the cycle early; the
// next tick retries. No partial lock state can be left behind because
// acquisition is a single atomic step.
func (d *Dispatcher) tick(ctx context.Context) {
	now := time.Now()
	candidates, err := d.jobs.DueCandidates(ctx, now, candidateBatch)
	if err != nil {
		d.logger.Error("due candidate query failed, aborting tick", "err", err)
		return
	}
	if len(candidates) == 0 {
		return
	}

	// The SQL already orders candidates; re-sorting here keeps the
	// priority-then-due-time contract local and testable.
	orderCandidates(candidates)

	for i := range candidates {
		job := &candidates[i]

		select {
		case d.sem <- struct{}{}:
		default:
			// Cap reached. Remaining candidates are deferred to the next
			// tick rather than queued in memory.
			d.logger.Debug("concurrency cap reached, deferring candidates",
				"deferred", len(candidates)-i)
			return
		}

		if err := d.dispatchOne(ctx, job, now); err != nil {
			<-d.sem
			if errors.Is(err, lock.ErrConflict) {
				// Expected under contention: another instance owns this
				// job this cycle.
				metrics.LockConflictsTotal.Inc()
				d.logger.Debug("lock conflict, skipping job", "job_id", job.ID)
				continue
			}
			d.logger.Error("dispatch failed, aborting tick",
				"job_id", job.ID, "err", err)
			return
		}
	}
}

// dispatchOne claims the job and hands it to an executor goroutine. The
// caller's semaphore slot is transferred to that goroutine on success and
// returned to the caller on error.
func (d *Dispatcher) dispatchOne(ctx context.Context, job *domain.ScheduledJob, now time.Time) error {
	execID, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("new execution id: %w", err)
	}

	token, err := d.locks.TryAcquire(ctx, job.ID, execID, d.instanceID, d.lease)
	if err != nil {
		return err
	}
	metrics.LockAcquiredTotal.Inc()

	exec := &domain.JobExecution{
		ID:         execID,
		JobID:      job.ID,
		Status:     domain.ExecutionRunning,
		InstanceID: d.instanceID,
	}
	if err := d.execs.Create(ctx, exec); err != nil {
		d.releaseLock(token)
		return fmt.Errorf("create execution: %w", err)
	}

	d.advanceSchedule(ctx, job, now)
	d.publish(ctx, "started", job, execID, nil)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() { <-d.sem }()
		d.runExecution(ctx, job, exec, token)
	}()
	return nil
}

// advanceSchedule computes the next occurrence and adds jitter so instances
// polling in phase do not stampede the same due time. A schedule that no
// longer parses disables the job; that state is unreachable through the
// administrative surface, which validates on write.
func (d *Dispatcher) advanceSchedule(ctx context.Context, job *domain.ScheduledJob, now time.Time) {
	next, ok := schedule.NextDue(job.Schedule, now)
	if !ok {
		d.logger.Error("schedule stopped parsing, disabling job",
			"job_id", job.ID, "schedule", job.Schedule)
		if err := d.jobs.SetEnabled(ctx, job.ID, false); err != nil {
			d.logger.Error("disable job failed", "job_id", job.ID, "err", err)
		}
		return
	}
	if d.jitter > 0 {
		next = next.Add(time.Duration(rand.Int63n(int64(d.jitter))))
	}
	if err := d.jobs.AdvanceNextDue(ctx, job.ID, next, now); err != nil {
		d.logger.Error("advance next due failed", "job_id", job.ID, "err", err)
	}
}

// TriggerNow bypasses the schedule but goes through normal lock acquisition
// and the concurrency cap. Returns the execution ID on success,
// lock.ErrConflict when another instance holds the job, and ErrAtCapacity
// when this instance has no free slot.
func (d *Dispatcher) TriggerNow(ctx context.Context, jobID uuid.UUID) (uuid.UUID, error) {
	d.mu.Lock()
	baseCtx := d.baseCtx
	d.mu.Unlock()
	if baseCtx == nil {
		return uuid.Nil, fmt.Errorf("dispatcher not started")
	}

	job, err := d.jobs.GetByID(ctx, jobID)
	if err != nil {
		return uuid.Nil, err
	}
	if _, err := d.registry.Lookup(job.Kind); err != nil {
		return uuid.Nil, err
	}

	select {
	case d.sem <- struct{}{}:
	default:
		return uuid.Nil, ErrAtCapacity
	}

	execID, err := uuid.NewV7()
	if err != nil {
		<-d.sem
		return uuid.Nil, fmt.Errorf("new execution id: %w", err)
	}
	token, err := d.locks.TryAcquire(ctx, job.ID, execID, d.instanceID, d.lease)
	if err != nil {
		<-d.sem
		if errors.Is(err, lock.ErrConflict) {
			metrics.LockConflictsTotal.Inc()
		}
		return uuid.Nil, err
	}
	metrics.LockAcquiredTotal.Inc()

	exec := &domain.JobExecution{
		ID:         execID,
		JobID:      job.ID,
		Status:     domain.ExecutionRunning,
		InstanceID: d.instanceID,
	}
	if err := d.execs.Create(ctx, exec); err != nil {
		d.releaseLock(token)
		<-d.sem
		return uuid.Nil, fmt.Errorf("create execution: %w", err)
	}
	d.publish(ctx, "started", job, execID, nil)

	// Manual triggers run on the dispatcher's lifetime, not the caller's
	// request context.
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() { <-d.sem }()
		d.runExecution(baseCtx, job, exec, token)
	}()
	return execID, nil
}

// releaseLock always runs against a fresh context so shutdown cancellation
// can never skip a release.
func (d *Dispatcher) releaseLock(token *lock.Token) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	done, err := d.locks.Release(ctx, token)
	if err != nil {
		d.logger.Error("lock release failed",
			"job_id", token.JobID, "lock_id", token.LockID, "err", err)
		return
	}
	if !done {
		// The lease expired or was taken over mid-run. Informational: the
		// reaper or the new holder already settled the row.
		d.logger.Info("lock already expired or reclaimed at release",
			"job_id", token.JobID, "lock_id", token.LockID)
	}
}

func (d *Dispatcher) publish(ctx context.Context, event string, job *domain.ScheduledJob, execID uuid.UUID, execErr error) {
	if d.publisher == nil {
		return
	}
	ev := mq.ExecutionEvent{
		Event:       event,
		JobID:       job.ID,
		JobName:     job.Name,
		Kind:        string(job.Kind),
		ExecutionID: execID,
		InstanceID:  d.instanceID,
	}
	if execErr != nil {
		ev.Error = execErr.Error()
	}
	if err := d.publisher.PublishExecutionEvent(ctx, ev); err != nil {
		d.logger.Warn("event publish failed",
			"event", event, "execution_id", execID, "err", err)
	}
}
