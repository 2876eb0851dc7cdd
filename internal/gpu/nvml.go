package gpu

import (
	"codeberg.org/mutker/hwctl/internal/errors"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// nvmlLibrary is the process-wide NVML library.
type nvmlLibrary struct {
	initialized bool
}

// NewLibrary returns the system NVML library.
func NewLibrary() Library {
	return &nvmlLibrary{}
}

func (l *nvmlLibrary) Init() error {
	errFactory := errors.New()
	if l.initialized {
		return nil
	}

	ret := nvml.Init()
	if !IsNVMLSuccess(ret) {
		return errFactory.Wrap(ErrInitFailed, newNVMLError(ret))
	}

	l.initialized = true

	return nil
}

func (l *nvmlLibrary) Shutdown() error {
	errFactory := errors.New()
	if !l.initialized {
		return nil
	}

	ret := nvml.Shutdown()
	if !IsNVMLSuccess(ret) {
		return errFactory.Wrap(ErrShutdownFailed, newNVMLError(ret))
	}

	l.initialized = false

	return nil
}

func (l *nvmlLibrary) DeviceCount() (int, error) {
	errFactory := errors.New()
	if !l.initialized {
		return 0, errFactory.New(ErrNotInitialized)
	}

	count, ret := nvml.DeviceGetCount()
	if !IsNVMLSuccess(ret) {
		return 0, errFactory.Wrap(ErrDeviceCountFailed, newNVMLError(ret))
	}

	return count, nil
}

func (l *nvmlLibrary) Device(index int) (Device, error) {
	errFactory := errors.New()
	if !l.initialized {
		return nil, errFactory.New(ErrNotInitialized)
	}

	device, ret := nvml.DeviceGetHandleByIndex(index)
	if !IsNVMLSuccess(ret) {
		return nil, errFactory.Wrap(ErrDeviceNotFound, newNVMLError(ret))
	}

	return device, nil
}
