// Package drivertest provides a scriptable driver.API for exercising the
// driver channel and its callers without a kernel driver.
package drivertest

import (
	"sync"

	"codeberg.org/mutker/hwctl/internal/driver"
)

// Responder produces the driver's reply to one DeviceIoControl call. It
// fills out and returns the byte count the fake reports as written.
type Responder func(code uint32, req driver.SmbiosPackage, out []byte) (uint32, error)

// API is an in-memory driver.API. Fields ending in Err are returned by the
// matching call when set.
type API struct {
	mu sync.Mutex

	OpenManagerErr   error
	OpenServiceErr   error
	CreateServiceErr error
	StartServiceErr  error
	ControlErr       error
	DeleteErr        error
	OpenDeviceErr    error
	IoctlErr         error
	CloseErr         error

	// Installed and Running model the service state.
	Installed bool
	Running   bool
	Deleted   bool

	// DeviceFailures makes the next n OpenDevice calls fail with
	// ERROR_FILE_NOT_FOUND, as if the driver had not created its node yet.
	DeviceFailures int

	Respond Responder

	calls  map[string]int
	open   map[driver.Handle]string
	closed map[driver.Handle]int
	next   driver.Handle

	LastCreate driver.ServiceConfig
	LastIoctl  uint32
}

// New returns a fake with no service installed.
func New() *API {
	return &API{}
}

// Errno builds the error a failed OS call returns.
func Errno(op string, code driver.Errno) error {
	return &driver.OSError{Op: op, Code: code}
}

// Echo answers every exchange by copying the request into the response.
func Echo(_ uint32, req driver.SmbiosPackage, out []byte) (uint32, error) {
	b, _ := req.MarshalBinary()
	copy(out, b)

	return uint32(len(b)), nil
}

func (a *API) record(name string) {
	if a.calls == nil {
		a.calls = make(map[string]int)
	}
	a.calls[name]++
}

func (a *API) alloc(kind string) driver.Handle {
	if a.open == nil {
		a.open = make(map[driver.Handle]string)
		a.closed = make(map[driver.Handle]int)
	}
	a.next++
	a.open[a.next] = kind

	return a.next
}

func (a *API) release(h driver.Handle) error {
	if a.closed == nil {
		a.closed = make(map[driver.Handle]int)
	}
	a.closed[h]++
	if _, ok := a.open[h]; !ok {
		return Errno("CloseHandle", driver.ErrorInvalidHandle)
	}
	delete(a.open, h)

	return a.CloseErr
}

// Calls returns how many times the named API method ran.
func (a *API) Calls(name string) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.calls[name]
}

// OpenHandles returns the number of handles not yet closed.
func (a *API) OpenHandles() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.open)
}

// CloseCounts returns how often each handle ever allocated was closed.
func (a *API) CloseCounts() map[driver.Handle]int {
	a.mu.Lock()
	defer a.mu.Unlock()

	counts := make(map[driver.Handle]int, a.next)
	for h := driver.Handle(1); h <= a.next; h++ {
		counts[h] = a.closed[h]
	}

	return counts
}

func (a *API) OpenManager(_, _ string, _ uint32) (driver.Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.record("OpenManager")

	if a.OpenManagerErr != nil {
		return driver.InvalidHandle, a.OpenManagerErr
	}

	return a.alloc("manager"), nil
}

func (a *API) OpenService(_ driver.Handle, _ string, _ uint32) (driver.Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.record("OpenService")

	if a.OpenServiceErr != nil {
		return driver.InvalidHandle, a.OpenServiceErr
	}
	if !a.Installed {
		return driver.InvalidHandle, Errno("OpenService", driver.ErrorServiceDoesNotExist)
	}

	return a.alloc("service"), nil
}

func (a *API) CreateService(_ driver.Handle, cfg driver.ServiceConfig) (driver.Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.record("CreateService")
	a.LastCreate = cfg

	if a.CreateServiceErr != nil {
		return driver.InvalidHandle, a.CreateServiceErr
	}
	a.Installed = true

	return a.alloc("service"), nil
}

func (a *API) StartService(_ driver.Handle) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.record("StartService")

	if a.StartServiceErr != nil {
		return a.StartServiceErr
	}
	if a.Running {
		return Errno("StartService", driver.ErrorServiceAlreadyRunning)
	}
	a.Running = true

	return nil
}

func (a *API) ControlService(_ driver.Handle, code uint32) (driver.ServiceStatus, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.record("ControlService")

	if a.ControlErr != nil {
		return driver.ServiceStatus{}, a.ControlErr
	}
	if code == driver.ServiceControlStop {
		if !a.Running {
			return driver.ServiceStatus{}, Errno("ControlService", driver.ErrorServiceNotActive)
		}
		a.Running = false
	}

	return driver.ServiceStatus{ServiceType: driver.ServiceKernelDriver, CurrentState: 1}, nil
}

func (a *API) DeleteService(_ driver.Handle) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.record("DeleteService")

	if a.DeleteErr != nil {
		return a.DeleteErr
	}
	a.Deleted = true
	a.Installed = false

	return nil
}

func (a *API) CloseServiceHandle(h driver.Handle) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.record("CloseServiceHandle")

	return a.release(h)
}

func (a *API) OpenDevice(_ string, _, _ uint32) (driver.Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.record("OpenDevice")

	if a.OpenDeviceErr != nil {
		return driver.InvalidHandle, a.OpenDeviceErr
	}
	if a.DeviceFailures > 0 {
		a.DeviceFailures--
		return driver.InvalidHandle, Errno("CreateFile", driver.ErrorFileNotFound)
	}

	return a.alloc("device"), nil
}

func (a *API) DeviceIoControl(_ driver.Handle, code uint32, in, out []byte) (uint32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.record("DeviceIoControl")
	a.LastIoctl = code

	if a.IoctlErr != nil {
		return 0, a.IoctlErr
	}

	var req driver.SmbiosPackage
	if err := req.UnmarshalBinary(in); err != nil {
		return 0, err
	}

	respond := a.Respond
	if respond == nil {
		respond = Echo
	}

	return respond(code, req, out)
}

func (a *API) CloseHandle(h driver.Handle) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.record("CloseHandle")

	return a.release(h)
}

var _ driver.API = (*API)(nil)
