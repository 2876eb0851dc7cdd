//go:build !windows

package driver

import (
	"runtime"

	"codeberg.org/mutker/hwctl/internal/errors"
)

type unsupportedAPI struct{}

// NewAPI returns an API whose every call fails: kernel driver services are
// only managed on Windows.
func NewAPI() API {
	return unsupportedAPI{}
}

func unsupported(op string) error {
	return errors.New().WithData(errors.ErrUnsupportedPlatform, op+" on "+runtime.GOOS)
}

func (unsupportedAPI) OpenManager(string, string, uint32) (Handle, error) {
	return InvalidHandle, unsupported("OpenSCManager")
}

func (unsupportedAPI) OpenService(Handle, string, uint32) (Handle, error) {
	return InvalidHandle, unsupported("OpenService")
}

func (unsupportedAPI) CreateService(Handle, ServiceConfig) (Handle, error) {
	return InvalidHandle, unsupported("CreateService")
}

func (unsupportedAPI) StartService(Handle) error {
	return unsupported("StartService")
}

func (unsupportedAPI) ControlService(Handle, uint32) (ServiceStatus, error) {
	return ServiceStatus{}, unsupported("ControlService")
}

func (unsupportedAPI) DeleteService(Handle) error {
	return unsupported("DeleteService")
}

func (unsupportedAPI) CloseServiceHandle(Handle) error {
	return unsupported("CloseServiceHandle")
}

func (unsupportedAPI) OpenDevice(string, uint32, uint32) (Handle, error) {
	return InvalidHandle, unsupported("CreateFile")
}

func (unsupportedAPI) DeviceIoControl(Handle, uint32, []byte, []byte) (uint32, error) {
	return 0, unsupported("DeviceIoControl")
}

func (unsupportedAPI) CloseHandle(Handle) error {
	return unsupported("CloseHandle")
}
