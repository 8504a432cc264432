package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/glimpser-rs-sub000/internal/domain"
)

func noop(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	return nil, nil
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	r.Register(domain.KindCapture, Func(noop))

	e, err := r.Lookup(domain.KindCapture)
	require.NoError(t, err)
	require.NotNil(t, e)

	_, err = r.Lookup(domain.KindSnapshot)
	assert.Error(t, err)
}

func TestValidateKinds(t *testing.T) {
	r := NewRegistry()
	r.Register(domain.KindCapture, Func(noop))
	r.Register(domain.KindCleanup, Func(noop))

	assert.NoError(t, r.ValidateKinds(nil))
	assert.NoError(t, r.ValidateKinds([]domain.JobKind{domain.KindCapture}))

	err := r.ValidateKinds([]domain.JobKind{domain.KindCapture, domain.KindNotification})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notification")
}

func TestKindsStableOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(domain.KindSnapshot, Func(noop))
	r.Register(domain.KindCapture, Func(noop))

	assert.Equal(t,
		[]domain.JobKind{domain.KindCapture, domain.KindSnapshot},
		r.Kinds())
}

func TestFatalErrorUnwraps(t *testing.T) {
	cause := fmt.Errorf("bad credentials")
	var err error = &FatalError{Cause: cause}

	var fatal *FatalError
	require.True(t, errors.As(err, &fatal))
	assert.Equal(t, cause, errors.Unwrap(err))
	assert.Equal(t, "bad credentials", err.Error())
}
