package driver

import (
	stderrors "errors"
	"fmt"
)

// Handle is an opaque OS handle. The zero value means "not open".
type Handle uintptr

// InvalidHandle is the value of a handle that has not been opened.
const InvalidHandle Handle = 0

// Access rights, service types and control codes of the service control
// manager. Values match the Windows SDK.
const (
	SCManagerConnect       uint32 = 0x0001
	SCManagerCreateService uint32 = 0x0002
	SCManagerAllAccess     uint32 = 0xF003F

	ServiceAllAccess uint32 = 0xF01FF

	ServiceKernelDriver uint32 = 0x00000001

	ServiceControlStop uint32 = 0x00000001

	GenericRead  uint32 = 0x80000000
	GenericWrite uint32 = 0x40000000

	FileShareRead  uint32 = 0x00000001
	FileShareWrite uint32 = 0x00000002
)

// StartType selects when the service control manager loads the driver.
type StartType uint32

const (
	StartBoot StartType = iota
	StartSystem
	StartAuto
	StartDemand
	StartDisabled
)

// ParseStartType maps a configuration name to a StartType.
func ParseStartType(name string) (StartType, error) {
	switch name {
	case "boot":
		return StartBoot, nil
	case "system":
		return StartSystem, nil
	case "auto":
		return StartAuto, nil
	case "demand", "":
		return StartDemand, nil
	case "disabled":
		return StartDisabled, nil
	}

	return 0, fmt.Errorf("unknown start type %q", name)
}

// ErrorControl is the severity the OS applies when the driver fails to load.
type ErrorControl uint32

const (
	ErrorIgnore ErrorControl = iota
	ErrorNormal
	ErrorSevere
	ErrorCritical
)

// ParseErrorControl maps a configuration name to an ErrorControl.
func ParseErrorControl(name string) (ErrorControl, error) {
	switch name {
	case "ignore":
		return ErrorIgnore, nil
	case "normal", "":
		return ErrorNormal, nil
	case "severe":
		return ErrorSevere, nil
	case "critical":
		return ErrorCritical, nil
	}

	return 0, fmt.Errorf("unknown error control %q", name)
}

// ServiceConfig describes the driver service to install.
type ServiceConfig struct {
	Name          string
	DisplayName   string
	BinaryPath    string
	StartType     StartType
	ErrorControl  ErrorControl
	DesiredAccess uint32

	// Optional create-service parameters, passed through verbatim.
	LoadOrderGroup string
	Dependencies   []string
	Account        string
	Password       string
}

func (c ServiceConfig) access() uint32 {
	if c.DesiredAccess == 0 {
		return ServiceAllAccess
	}

	return c.DesiredAccess
}

// ServiceStatus mirrors SERVICE_STATUS as returned by a control request.
type ServiceStatus struct {
	ServiceType             uint32
	CurrentState            uint32
	ControlsAccepted        uint32
	Win32ExitCode           uint32
	ServiceSpecificExitCode uint32
	CheckPoint              uint32
	WaitHint                uint32
}

// API is the OS surface the channel drives. Every call blocks until the OS
// returns. Failures are reported as *OSError carrying the last-error code.
type API interface {
	OpenManager(machine, database string, access uint32) (Handle, error)
	OpenService(manager Handle, name string, access uint32) (Handle, error)
	CreateService(manager Handle, cfg ServiceConfig) (Handle, error)
	StartService(service Handle) error
	ControlService(service Handle, code uint32) (ServiceStatus, error)
	DeleteService(service Handle) error
	CloseServiceHandle(handle Handle) error

	OpenDevice(path string, access, share uint32) (Handle, error)
	// DeviceIoControl sends code with in and fills out, returning the byte
	// count the OS reports as written.
	DeviceIoControl(device Handle, code uint32, in, out []byte) (uint32, error)
	CloseHandle(handle Handle) error
}

// Errno is an OS last-error code.
type Errno uint32

// Last-error codes the channel reacts to.
const (
	ErrorFileNotFound           Errno = 2
	ErrorPathNotFound           Errno = 3
	ErrorAccessDenied           Errno = 5
	ErrorInvalidHandle          Errno = 6
	ErrorServiceAlreadyRunning  Errno = 1056
	ErrorServiceDoesNotExist    Errno = 1060
	ErrorServiceNotActive       Errno = 1062
	ErrorServiceMarkedForDelete Errno = 1072
	ErrorServiceExists          Errno = 1073
)

// OSError is a failed OS call together with its last-error code.
type OSError struct {
	Op   string
	Code Errno
	Err  error
}

func (e *OSError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v (code %d)", e.Op, e.Err, e.Code)
	}

	return fmt.Sprintf("%s failed (code %d)", e.Op, e.Code)
}

func (e *OSError) Unwrap() error {
	return e.Err
}

// LastError extracts the OS last-error code from err, if any.
func LastError(err error) (Errno, bool) {
	var osErr *OSError
	if stderrors.As(err, &osErr) {
		return osErr.Code, true
	}

	return 0, false
}

func isErrno(err error, codes ...Errno) bool {
	code, ok := LastError(err)
	if !ok {
		return false
	}
	for _, c := range codes {
		if code == c {
			return true
		}
	}

	return false
}
