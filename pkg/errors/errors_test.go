package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/ScentIQ-Intelligence/pkg/errors"
)

func TestNew_FieldsAreSetCorrectly(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		code    errors.ErrorCode
		message string
	}{
		{"internal error", errors.CodeInternal, "unexpected failure"},
		{"dimensions", errors.ErrCodeIncompatibleDimensions, "1536 != 768"},
		{"invalid param", errors.CodeInvalidParam, "budget must be positive"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ae := errors.New(tc.code, tc.message)
			require.NotNil(t, ae)
			assert.Equal(t, tc.code, ae.Code)
			assert.Equal(t, tc.message, ae.Message)
			assert.Empty(t, ae.Detail)
			assert.Nil(t, ae.Cause)
		})
	}
}

func TestError_Format(t *testing.T) {
	ae := errors.New(errors.ErrCodeDataAccessFailure, "fetch failed").WithDetail("user=u1")
	assert.Equal(t, "[COL_002] fetch failed: user=u1", ae.Error())

	wrapped := errors.Wrap(fmt.Errorf("connection refused"), errors.ErrCodeDatabaseError, "query")
	assert.Equal(t, "[COMMON_012] query: connection refused", wrapped.Error())
}

func TestWrap_NilErrReturnsNil(t *testing.T) {
	assert.Nil(t, errors.Wrap(nil, errors.CodeInternal, "ignored"))
	assert.Nil(t, errors.Wrapf(nil, errors.CodeInternal, "ignored %d", 1))
}

func TestWrap_CauseChainIsPreserved(t *testing.T) {
	root := stderrors.New("root cause")
	ae := errors.Wrap(root, errors.ErrCodeCacheError, "cache read")
	require.NotNil(t, ae)
	assert.True(t, stderrors.Is(ae, root))
	assert.Equal(t, root, ae.Unwrap())
}

func TestWrap_UnknownKeepsOriginalCode(t *testing.T) {
	inner := errors.New(errors.ErrCodeFragranceNotFound, "missing")
	outer := errors.Wrap(inner, errors.CodeUnknown, "adding context")
	assert.Equal(t, errors.ErrCodeFragranceNotFound, outer.Code)
}

func TestIsCode_TraversesChain(t *testing.T) {
	inner := errors.New(errors.ErrCodeIncompatibleDimensions, "mismatch")
	outer := errors.Wrap(inner, errors.ErrCodeInternal, "analysis")
	std := fmt.Errorf("handler: %w", outer)

	assert.True(t, errors.IsCode(std, errors.ErrCodeIncompatibleDimensions))
	assert.True(t, errors.IsCode(std, errors.ErrCodeInternal))
	assert.False(t, errors.IsCode(std, errors.ErrCodeNotFound))
	assert.False(t, errors.IsCode(nil, errors.ErrCodeInternal))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, errors.IsNotFound(errors.NotFound("x")))
	assert.True(t, errors.IsNotFound(errors.New(errors.ErrCodeSnapshotNotFound, "x")))
	assert.True(t, errors.IsNotFound(fmt.Errorf("wrapped: %w", errors.New(errors.ErrCodeFragranceNotFound, "x"))))
	assert.False(t, errors.IsNotFound(errors.Internal("x")))
	assert.False(t, errors.IsNotFound(stderrors.New("plain")))
}

func TestIsValidation(t *testing.T) {
	assert.True(t, errors.IsValidation(errors.NewValidation("limit %d out of range", 0)))
	assert.True(t, errors.IsValidation(errors.InvalidParam("bad")))
	assert.False(t, errors.IsValidation(errors.Internal("x")))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, errors.CodeOK, errors.GetCode(nil))
	assert.Equal(t, errors.CodeUnknown, errors.GetCode(stderrors.New("plain")))
	assert.Equal(t, errors.ErrCodeCatalogUnavailable, errors.GetCode(errors.New(errors.ErrCodeCatalogUnavailable, "down")))
}

func TestWithDetail_NilSafe(t *testing.T) {
	var ae *errors.AppError
	assert.Nil(t, ae.WithDetail("x"))
	assert.Nil(t, ae.WithCause(stderrors.New("y")))
}
