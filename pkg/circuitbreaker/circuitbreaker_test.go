package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errBoom = errors.New("boom")

func newTestBreaker(now *time.Time, transitions *[]string) *CircuitBreaker {
	cb := NewCircuitBreaker(Config{
		FailureThreshold:    2,
		SuccessThreshold:    1,
		Timeout:             time.Minute,
		HalfOpenMaxRequests: 1,
		OnStateChange: func(from, to State) {
			*transitions = append(*transitions, from.String()+"->"+to.String())
		},
	})
	cb.now = func() time.Time { return *now }
	return cb
}

func fail() error    { return errBoom }
func succeed() error { return nil }

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	now := time.Now()
	var transitions []string
	cb := newTestBreaker(&now, &transitions)

	assert.ErrorIs(t, cb.Execute(fail, nil), errBoom)
	assert.Equal(t, StateClosed, cb.GetState())
	assert.ErrorIs(t, cb.Execute(fail, nil), errBoom)
	assert.Equal(t, StateOpen, cb.GetState())

	called := false
	err := cb.Execute(func() error { called = true; return nil }, nil)
	assert.ErrorIs(t, err, ErrCircuitBreakerOpen)
	assert.False(t, called)
	assert.Equal(t, []string{"closed->open"}, transitions)
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	now := time.Now()
	var transitions []string
	cb := newTestBreaker(&now, &transitions)

	_ = cb.Execute(fail, nil)
	_ = cb.Execute(succeed, nil)
	_ = cb.Execute(fail, nil)
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	now := time.Now()
	var transitions []string
	cb := newTestBreaker(&now, &transitions)

	_ = cb.Execute(fail, nil)
	_ = cb.Execute(fail, nil)
	now = now.Add(2 * time.Minute)

	assert.NoError(t, cb.Execute(succeed, nil))
	assert.Equal(t, StateClosed, cb.GetState())
	assert.Equal(t, []string{"closed->open", "open->half_open", "half_open->closed"}, transitions)
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	var transitions []string
	cb := newTestBreaker(&now, &transitions)

	_ = cb.Execute(fail, nil)
	_ = cb.Execute(fail, nil)
	now = now.Add(2 * time.Minute)

	assert.ErrorIs(t, cb.Execute(fail, nil), errBoom)
	assert.Equal(t, StateOpen, cb.GetState())
	assert.ErrorIs(t, cb.Execute(succeed, nil), ErrCircuitBreakerOpen)
}

func TestCircuitBreaker_UncountedErrorsDoNotTrip(t *testing.T) {
	now := time.Now()
	var transitions []string
	cb := newTestBreaker(&now, &transitions)
	never := func(error) bool { return false }

	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, cb.Execute(fail, never), errBoom)
	}
	assert.Equal(t, StateClosed, cb.GetState())
	assert.Empty(t, transitions)
}
