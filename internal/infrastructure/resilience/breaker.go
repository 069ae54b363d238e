package resilience

import (
	"context"
	stderrors "errors"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/turtacn/ScentIQ-Intelligence/internal/config"
	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/collection"
	"github.com/turtacn/ScentIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ScentIQ-Intelligence/pkg/errors"
)

// TransitionRecorder observes breaker state changes. state is 0 closed,
// 1 half-open, 2 open.
type TransitionRecorder interface {
	RecordBreakerTransition(name, from, to string, state int)
}

type nopRecorder struct{}

func (nopRecorder) RecordBreakerTransition(string, string, string, int) {}

// BreakingRepository guards a collection.Repository with a circuit breaker.
// While the breaker is open reads fail fast with ErrCodeServiceUnavailable,
// which the engine reports as a data-access failure.
type BreakingRepository struct {
	inner  collection.Repository
	cb     *gobreaker.CircuitBreaker[[]*collection.Item]
	logger logging.Logger
}

var _ collection.Repository = (*BreakingRepository)(nil)

func NewBreakingRepository(name string, inner collection.Repository, cfg config.BreakerConfig, rec TransitionRecorder, log logging.Logger) *BreakingRepository {
	if rec == nil {
		rec = nopRecorder{}
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	r := &BreakingRepository{inner: inner, logger: log}
	r.cb = gobreaker.NewCircuitBreaker[[]*collection.Item](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				logging.String("breaker", name),
				logging.String("from", from.String()),
				logging.String("to", to.String()))
			rec.RecordBreakerTransition(name, from.String(), to.String(), int(to))
		},
	})
	return r
}

// countsAsSuccess keeps caller mistakes and cancellations from tripping the
// breaker; only store failures count.
func countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	if stderrors.Is(err, context.Canceled) {
		return true
	}
	return errors.IsValidation(err) || errors.IsNotFound(err)
}

func (r *BreakingRepository) GetUserCollection(ctx context.Context, userID string) ([]*collection.Item, error) {
	items, err := r.cb.Execute(func() ([]*collection.Item, error) {
		return r.inner.GetUserCollection(ctx, userID)
	})
	if err == nil {
		return items, nil
	}
	if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
		r.logger.Debug("collection read rejected", logging.UserID(userID), logging.String("state", r.cb.State().String()))
		return nil, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "collection store temporarily unavailable")
	}
	return nil, err
}

// State reports the breaker state for health endpoints.
func (r *BreakingRepository) State() string { return r.cb.State().String() }
