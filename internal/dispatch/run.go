package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/harperreed/glimpser-rs-sub000/internal/domain"
	"github.com/harperreed/glimpser-rs-sub000/internal/executor"
	"github.com/harperreed/glimpser-rs-sub000/internal/lock"
	"github.com/harperreed/glimpser-rs-sub000/internal/metrics"
)

// runExecution drives one execution to a terminal status. On every exit path
// the execution row is finalized and the lock released — release is
// unconditional, the lease itself being the backstop for a truly
// unresponsive executor.
func (d *Dispatcher) runExecution(
	ctx context.Context,
	job *domain.ScheduledJob,
	exec *domain.JobExecution,
	token *lock.Token,
) {
	log := d.logger.With(
		"job_id", job.ID,
		"job_name", job.Name,
		"kind", job.Kind,
		"execution_id", exec.ID)

	metrics.RunningExecutions.Inc()
	defer metrics.RunningExecutions.Dec()
	start := time.Now()

	execCtx, cancel := context.WithTimeout(ctx, job.Timeout)
	defer cancel()

	renewStop := make(chan struct{})
	go d.renewLease(execCtx, token, renewStop, log)
	defer close(renewStop)

	log.Info("execution started", "timeout", job.Timeout, "max_retries", job.MaxRetries)

	var result json.RawMessage
	var retries int
	var runErr error

	exe, err := d.registry.Lookup(job.Kind)
	if err != nil {
		// Unreachable through the admin surface, which validates kinds on
		// write; kept as a terminal failure rather than a panic.
		runErr = err
	} else {
		result, retries, runErr = executeBounded(execCtx, exe, job.Params, job.MaxRetries, computeBackoff)
	}

	var status domain.ExecutionStatus
	switch {
	case runErr == nil:
		status = domain.ExecutionSucceeded
	case errors.Is(execCtx.Err(), context.DeadlineExceeded):
		// The cancellation signal has been sent via execCtx; whether the
		// executor acknowledges it does not delay finalization.
		status = domain.ExecutionTimedOut
	case ctx.Err() != nil:
		// Instance shutdown mid-run.
		status = domain.ExecutionCancelled
	default:
		status = domain.ExecutionFailed
	}

	// Finalization uses a fresh context: a cancelled parent must not be able
	// to skip the terminal write or the release.
	finCtx, cancelFin := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelFin()

	if err := d.execs.Finish(finCtx, exec.ID, status, result, runErr, retries); err != nil {
		log.Error("finalize execution failed", "status", status, "err", err)
	}
	d.releaseLock(token)

	duration := time.Since(start)
	metrics.DispatchesTotal.WithLabelValues(string(status)).Inc()
	metrics.ExecutionDuration.WithLabelValues(string(job.Kind)).Observe(duration.Seconds())
	d.publish(finCtx, string(status), job, exec.ID, runErr)

	switch status {
	case domain.ExecutionSucceeded:
		log.Info("execution succeeded", "retries", retries, "duration", duration)
	default:
		log.Warn("execution finished", "status", status, "retries", retries,
			"duration", duration, "err", runErr)
	}
}

// renewLease refreshes the lease at lease/3 while the execution runs, so a
// long job (or a long backoff sleep) is not taken over mid-flight. A lost
// lease stops the renewer; it never resurrects the lock.
func (d *Dispatcher) renewLease(ctx context.Context, token *lock.Token, stop <-chan struct{}, log *slog.Logger) {
	interval := d.lease / 3
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := d.locks.Renew(ctx, token, d.lease)
			if errors.Is(err, lock.ErrLeaseLost) {
				log.Warn("lease lost, stopping renewal", "lock_id", token.LockID)
				return
			}
			if err != nil {
				log.Warn("lease renewal failed", "lock_id", token.LockID, "err", err)
			}
		}
	}
}

// executeBounded runs the retrying executor but returns at the context
// deadline whether or not the executor acknowledges cancellation. A straggler
// goroutine is left to die with its cancelled context; the finalization it can
// no longer reach is fenced, and the lease is the backstop for its lock.
func executeBounded(
	ctx context.Context,
	exe executor.Executor,
	params json.RawMessage,
	maxRetries int,
	backoff func(attempt int) time.Duration,
) (json.RawMessage, int, error) {
	type outcome struct {
		result  json.RawMessage
		retries int
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		result, retries, err := runWithRetry(ctx, exe, params, maxRetries, backoff)
		done <- outcome{result, retries, err}
	}()

	select {
	case out := <-done:
		return out.result, out.retries, out.err
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	}
}

// runWithRetry invokes the executor up to maxRetries+1 times within one lock
// hold. Retries represent transient failure of a single due occurrence; the
// next scheduled occurrence starts fresh with a zero retry count. The
// returned int is the number of retries performed.
func runWithRetry(
	ctx context.Context,
	exe executor.Executor,
	params json.RawMessage,
	maxRetries int,
	backoff func(attempt int) time.Duration,
) (json.RawMessage, int, error) {
	for attempt := 0; ; attempt++ {
		result, err := exe.Execute(ctx, params)
		if err == nil {
			return result, attempt, nil
		}
		if ctx.Err() != nil {
			return nil, attempt, ctx.Err()
		}
		var fatal *executor.FatalError
		if errors.As(err, &fatal) {
			return nil, attempt, err
		}
		if attempt >= maxRetries {
			return nil, attempt, err
		}

		// The backoff sleep happens while still holding the lock so another
		// instance cannot race in mid-retry; renewal keeps the lease alive.
		select {
		case <-ctx.Done():
			return nil, attempt, ctx.Err()
		case <-time.After(backoff(attempt)):
		}
	}
}
