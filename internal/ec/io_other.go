//go:build !linux && !windows

package ec

import (
	"runtime"

	"codeberg.org/mutker/hwctl/internal/errors"
)

// DefaultFactory returns the EC backend of the running platform.
func DefaultFactory() Factory {
	return func() (IO, error) {
		return nil, errors.New().WithData(ErrUnsupportedPlatform, runtime.GOOS)
	}
}
