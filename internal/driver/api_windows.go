//go:build windows

package driver

import (
	stderrors "errors"
	"strings"

	"golang.org/x/sys/windows"
)

type windowsAPI struct{}

// NewAPI returns the service control manager and device IO surface of the
// running system.
func NewAPI() API {
	return windowsAPI{}
}

func osError(op string, err error) error {
	var errno windows.Errno
	if stderrors.As(err, &errno) {
		return &OSError{Op: op, Code: Errno(errno), Err: err}
	}

	return &OSError{Op: op, Err: err}
}

// utf16Ptr returns nil for empty strings so optional parameters reach the
// OS as NULL.
func utf16Ptr(s string) (*uint16, error) {
	if s == "" {
		return nil, nil
	}

	return windows.UTF16PtrFromString(s)
}

// multiSZ encodes names as a double-NUL-terminated list.
func multiSZ(names []string) (*uint16, error) {
	if len(names) == 0 {
		return nil, nil
	}

	encoded, err := windows.UTF16FromString(strings.Join(names, "\x00") + "\x00")
	if err != nil {
		return nil, err
	}

	return &encoded[0], nil
}

func (windowsAPI) OpenManager(machine, database string, access uint32) (Handle, error) {
	m, err := utf16Ptr(machine)
	if err != nil {
		return InvalidHandle, osError("OpenSCManager", err)
	}
	d, err := utf16Ptr(database)
	if err != nil {
		return InvalidHandle, osError("OpenSCManager", err)
	}

	h, err := windows.OpenSCManager(m, d, access)
	if err != nil {
		return InvalidHandle, osError("OpenSCManager", err)
	}

	return Handle(h), nil
}

func (windowsAPI) OpenService(manager Handle, name string, access uint32) (Handle, error) {
	n, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return InvalidHandle, osError("OpenService", err)
	}

	h, err := windows.OpenService(windows.Handle(manager), n, access)
	if err != nil {
		return InvalidHandle, osError("OpenService", err)
	}

	return Handle(h), nil
}

func (windowsAPI) CreateService(manager Handle, cfg ServiceConfig) (Handle, error) {
	var ptrs [7]*uint16
	for i, s := range []string{cfg.Name, cfg.DisplayName, cfg.BinaryPath, cfg.LoadOrderGroup, cfg.Account, cfg.Password} {
		p, err := utf16Ptr(s)
		if err != nil {
			return InvalidHandle, osError("CreateService", err)
		}
		ptrs[i] = p
	}
	deps, err := multiSZ(cfg.Dependencies)
	if err != nil {
		return InvalidHandle, osError("CreateService", err)
	}
	ptrs[6] = deps

	h, err := windows.CreateService(
		windows.Handle(manager),
		ptrs[0], // service name
		ptrs[1], // display name
		cfg.access(),
		ServiceKernelDriver,
		uint32(cfg.StartType),
		uint32(cfg.ErrorControl),
		ptrs[2], // binary path
		ptrs[3], // load order group
		nil,     // tag id
		ptrs[6], // dependencies
		ptrs[4], // account
		ptrs[5], // password
	)
	if err != nil {
		return InvalidHandle, osError("CreateService", err)
	}

	return Handle(h), nil
}

func (windowsAPI) StartService(service Handle) error {
	if err := windows.StartService(windows.Handle(service), 0, nil); err != nil {
		return osError("StartService", err)
	}

	return nil
}

func (windowsAPI) ControlService(service Handle, code uint32) (ServiceStatus, error) {
	var status windows.SERVICE_STATUS
	if err := windows.ControlService(windows.Handle(service), code, &status); err != nil {
		return ServiceStatus{}, osError("ControlService", err)
	}

	return ServiceStatus{
		ServiceType:             status.ServiceType,
		CurrentState:            status.CurrentState,
		ControlsAccepted:        status.ControlsAccepted,
		Win32ExitCode:           status.Win32ExitCode,
		ServiceSpecificExitCode: status.ServiceSpecificExitCode,
		CheckPoint:              status.CheckPoint,
		WaitHint:                status.WaitHint,
	}, nil
}

func (windowsAPI) DeleteService(service Handle) error {
	if err := windows.DeleteService(windows.Handle(service)); err != nil {
		return osError("DeleteService", err)
	}

	return nil
}

func (windowsAPI) CloseServiceHandle(handle Handle) error {
	if err := windows.CloseServiceHandle(windows.Handle(handle)); err != nil {
		return osError("CloseServiceHandle", err)
	}

	return nil
}

func (windowsAPI) OpenDevice(path string, access, share uint32) (Handle, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return InvalidHandle, osError("CreateFile", err)
	}

	h, err := windows.CreateFile(p, access, share, nil, windows.OPEN_EXISTING, windows.FILE_ATTRIBUTE_NORMAL, 0)
	if err != nil {
		return InvalidHandle, osError("CreateFile", err)
	}

	return Handle(h), nil
}

func (windowsAPI) DeviceIoControl(device Handle, code uint32, in, out []byte) (uint32, error) {
	var inPtr, outPtr *byte
	if len(in) > 0 {
		inPtr = &in[0]
	}
	if len(out) > 0 {
		outPtr = &out[0]
	}

	var returned uint32
	err := windows.DeviceIoControl(
		windows.Handle(device),
		code,
		inPtr, uint32(len(in)),
		outPtr, uint32(len(out)),
		&returned,
		nil,
	)
	if err != nil {
		return returned, osError("DeviceIoControl", err)
	}

	return returned, nil
}

func (windowsAPI) CloseHandle(handle Handle) error {
	if err := windows.CloseHandle(windows.Handle(handle)); err != nil {
		return osError("CloseHandle", err)
	}

	return nil
}
