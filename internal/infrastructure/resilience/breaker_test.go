package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ScentIQ-Intelligence/internal/config"
	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/collection"
	apperrors "github.com/turtacn/ScentIQ-Intelligence/pkg/errors"
)

type transition struct {
	from, to string
	state    int
}

type transitionSpy struct {
	mu  sync.Mutex
	got []transition
}

func (s *transitionSpy) RecordBreakerTransition(_, from, to string, state int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, transition{from, to, state})
}

func (s *transitionSpy) all() []transition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]transition(nil), s.got...)
}

// flakyRepo fails while failing is set.
type flakyRepo struct {
	mu      sync.Mutex
	failing error
	calls   int
}

func (f *flakyRepo) GetUserCollection(_ context.Context, userID string) ([]*collection.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failing != nil {
		return nil, f.failing
	}
	return []*collection.Item{{FragranceID: userID + "-item"}}, nil
}

func (f *flakyRepo) set(err error) {
	f.mu.Lock()
	f.failing = err
	f.mu.Unlock()
}

func testBreakerConfig(timeout time.Duration) config.BreakerConfig {
	return config.BreakerConfig{Enabled: true, MaxRequests: 1, Interval: time.Minute, Timeout: timeout, FailureThreshold: 2}
}

func TestBreakingRepository_PassThrough(t *testing.T) {
	inner := &flakyRepo{}
	r := NewBreakingRepository("collections", inner, testBreakerConfig(time.Hour), nil, nil)

	items, err := r.GetUserCollection(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "user-1-item", items[0].FragranceID)
	assert.Equal(t, "closed", r.State())
}

func TestBreakingRepository_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := &flakyRepo{}
	spy := &transitionSpy{}
	r := NewBreakingRepository("collections", inner, testBreakerConfig(time.Hour), spy, nil)

	storeErr := apperrors.New(apperrors.ErrCodeDatabaseError, "connection reset")
	inner.set(storeErr)
	for i := 0; i < 2; i++ {
		_, err := r.GetUserCollection(context.Background(), "user-1")
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeDatabaseError))
	}
	assert.Equal(t, "open", r.State())

	_, err := r.GetUserCollection(context.Background(), "user-1")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeServiceUnavailable))
	assert.Equal(t, 2, inner.calls, "open breaker must not reach the store")

	assert.Equal(t, []transition{{"closed", "open", 2}}, spy.all())
}

func TestBreakingRepository_RecoversThroughHalfOpen(t *testing.T) {
	inner := &flakyRepo{}
	spy := &transitionSpy{}
	r := NewBreakingRepository("collections", inner, testBreakerConfig(20*time.Millisecond), spy, nil)

	inner.set(errors.New("timeout"))
	_, _ = r.GetUserCollection(context.Background(), "user-1")
	_, _ = r.GetUserCollection(context.Background(), "user-1")
	require.Equal(t, "open", r.State())

	inner.set(nil)
	time.Sleep(40 * time.Millisecond)
	_, err := r.GetUserCollection(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "closed", r.State())

	assert.Equal(t, []transition{
		{"closed", "open", 2},
		{"open", "half-open", 1},
		{"half-open", "closed", 0},
	}, spy.all())
}

func TestBreakingRepository_CallerErrorsDoNotTrip(t *testing.T) {
	inner := &flakyRepo{}
	r := NewBreakingRepository("collections", inner, testBreakerConfig(time.Hour), nil, nil)

	inner.set(apperrors.NewValidation("user id is required"))
	for i := 0; i < 5; i++ {
		_, err := r.GetUserCollection(context.Background(), "")
		assert.True(t, apperrors.IsValidation(err))
	}

	inner.set(context.Canceled)
	for i := 0; i < 5; i++ {
		_, err := r.GetUserCollection(context.Background(), "user-1")
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, "closed", r.State())
	assert.Equal(t, 10, inner.calls)
}
