// Package executor defines the contract between the scheduler and the code
// that performs a job's actual work.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/harperreed/glimpser-rs-sub000/internal/domain"
)

// Executor performs the work of one job kind. Cancellation is cooperative:
// implementations must observe ctx, which is cancelled on timeout or
// scheduler shutdown. The scheduler never assumes an executor stops
// immediately — the lock lease is the backstop.
type Executor interface {
	Execute(ctx context.Context, params json.RawMessage) (json.RawMessage, error)
}

// Func adapts a plain function to the Executor interface.
type Func func(ctx context.Context, params json.RawMessage) (json.RawMessage, error)

func (f Func) Execute(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	return f(ctx, params)
}

// FatalError wraps an executor error that must not be retried.
// Return this to fail the execution on the first attempt.
type FatalError struct {
	Cause error
}

func (e *FatalError) Error() string { return e.Cause.Error() }
func (e *FatalError) Unwrap() error { return e.Cause }

// Registry maps job kinds to executors.
type Registry struct {
	executors map[domain.JobKind]Executor
}

func NewRegistry() *Registry {
	return &Registry{executors: make(map[domain.JobKind]Executor)}
}

func (r *Registry) Register(kind domain.JobKind, e Executor) {
	r.executors[kind] = e
}

func (r *Registry) Lookup(kind domain.JobKind) (Executor, error) {
	e, ok := r.executors[kind]
	if !ok {
		return nil, fmt.Errorf("no executor registered for kind %q", kind)
	}
	return e, nil
}

// Kinds returns the registered kinds in stable order.
func (r *Registry) Kinds() []domain.JobKind {
	kinds := make([]domain.JobKind, 0, len(r.executors))
	for k := range r.executors {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// ValidateKinds checks every stored job kind against the registry. An
// unregistered kind is a configuration error raised before the dispatch loop
// starts, never a per-dispatch runtime error.
func (r *Registry) ValidateKinds(kinds []domain.JobKind) error {
	for _, k := range kinds {
		if _, ok := r.executors[k]; !ok {
			return fmt.Errorf("scheduled jobs reference kind %q but no executor is registered for it", k)
		}
	}
	return nil
}
