package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"codeberg.org/mutker/hwctl/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	errFactory := errors.New()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"code only", errFactory.New(errors.ErrProtocolMismatch), "Unexpected response layout"},
		{"custom message", errFactory.WithMessage(errors.ErrUnavailable, "no ec"), "no ec"},
		{"wrapped", errFactory.Wrap(errors.ErrPermissionDenied, stderrors.New("access is denied")), "Permission denied: access is denied"},
		{"data", errFactory.WithData(errors.ErrInvalidArgument, "index 4"), "Invalid argument provided: index 4"},
		{"unknown code", errFactory.New(errors.ErrorCode("custom_code")), "custom_code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestHasCode(t *testing.T) {
	errFactory := errors.New()

	inner := errFactory.New(errors.ErrPermissionDenied)
	outer := fmt.Errorf("install driver: %w", errFactory.Wrap(errors.ErrHandleAcquisition, inner))

	assert.True(t, errors.HasCode(outer, errors.ErrHandleAcquisition))
	assert.True(t, errors.HasCode(outer, errors.ErrPermissionDenied))
	assert.False(t, errors.HasCode(outer, errors.ErrProtocolMismatch))
	assert.False(t, errors.HasCode(nil, errors.ErrProtocolMismatch))
}

func TestHasCodeJoined(t *testing.T) {
	errFactory := errors.New()

	joined := errors.Join(
		errFactory.New(errors.ErrShutdownFailed),
		errFactory.New(errors.ErrHandleAcquisition),
	)

	assert.True(t, errors.HasCode(joined, errors.ErrShutdownFailed))
	assert.True(t, errors.HasCode(joined, errors.ErrHandleAcquisition))
}

func TestCodeOf(t *testing.T) {
	errFactory := errors.New()

	code, ok := errors.CodeOf(fmt.Errorf("ctx: %w", errFactory.New(errors.ErrUnavailable)))
	require.True(t, ok)
	assert.Equal(t, errors.ErrUnavailable, code)

	_, ok = errors.CodeOf(stderrors.New("plain"))
	assert.False(t, ok)
}

func TestWithDataKeepsCause(t *testing.T) {
	errFactory := errors.New()
	cause := stderrors.New("boom")

	err := errFactory.Wrap(errors.ErrOperationFailed, cause).WithData("phase=close")

	assert.Equal(t, errors.ErrOperationFailed, err.Code())
	assert.Equal(t, "phase=close", err.GetData())
	assert.ErrorIs(t, err, cause)
}
