package intelligence

import (
	"context"
	"fmt"

	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/fragrance"
	"github.com/turtacn/ScentIQ-Intelligence/pkg/errors"
)

// FailureKind classifies why an analysis could not be produced.
type FailureKind string

const (
	FailureDataAccess             FailureKind = "data_access_failure"
	FailureIncompatibleDimensions FailureKind = "incompatible_dimensions"
	FailureInvalidInput           FailureKind = "invalid_input"
	FailureUnavailable            FailureKind = "unavailable"
	FailureCanceled               FailureKind = "canceled"
	FailureInternal               FailureKind = "internal"
)

// Failure is the typed error half of an Outcome.
type Failure struct {
	Kind    FailureKind      `json:"kind"`
	Code    errors.ErrorCode `json:"code"`
	Message string           `json:"message"`
}

// Outcome is embedded in every report. Exactly one of three states holds:
// success with data, success with Empty set (no items), or Failure.
type Outcome struct {
	Success bool     `json:"success"`
	Empty   bool     `json:"empty,omitempty"`
	Failure *Failure `json:"failure,omitempty"`
}

func succeeded() Outcome { return Outcome{Success: true} }

func emptyOutcome() Outcome { return Outcome{Success: true, Empty: true} }

// Status exposes the outcome of any report that embeds it.
func (o Outcome) Status() Outcome { return o }

// Err converts a failed Outcome back into an AppError, nil on success.
func (o Outcome) Err() error {
	if o.Failure == nil {
		return nil
	}
	return errors.New(o.Failure.Code, o.Failure.Message)
}

// failedWith maps err onto a typed failure.
func failedWith(err error) Outcome {
	return Outcome{Success: false, Failure: classify(err)}
}

func classify(err error) *Failure {
	if err == nil {
		return nil
	}
	f := &Failure{Message: err.Error(), Code: errors.GetCode(err)}
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		f.Kind = FailureCanceled
		f.Code = errors.ErrCodeTimeout
	case fragrance.IsIncompatibleDimensions(err):
		f.Kind = FailureIncompatibleDimensions
		f.Code = errors.ErrCodeIncompatibleDimensions
	case errors.IsCode(err, errors.ErrCodeDataAccessFailure):
		f.Kind = FailureDataAccess
		f.Code = errors.ErrCodeDataAccessFailure
	case errors.IsValidation(err) || errors.IsCode(err, errors.ErrCodeUnknownTrigger) || errors.IsCode(err, errors.ErrCodeInvalidPlan):
		f.Kind = FailureInvalidInput
	case errors.IsCode(err, errors.ErrCodeCatalogUnavailable) || errors.IsCode(err, errors.ErrCodeEmbeddingUnavailable) || errors.IsCode(err, errors.ErrCodeServiceUnavailable):
		f.Kind = FailureUnavailable
	default:
		f.Kind = FailureInternal
		if f.Code == errors.CodeUnknown {
			f.Code = errors.ErrCodeInternal
		}
	}
	return f
}

// recovered converts a panic value into an internal failure.
func recovered(v interface{}) Outcome {
	return failedWith(errors.Internal(fmt.Sprintf("analysis panicked: %v", v)))
}
