package smm_test

import (
	"context"
	"sync"
	"testing"

	"codeberg.org/mutker/hwctl/internal/config"
	"codeberg.org/mutker/hwctl/internal/driver"
	"codeberg.org/mutker/hwctl/internal/driver/drivertest"
	"codeberg.org/mutker/hwctl/internal/errors"
	"codeberg.org/mutker/hwctl/internal/hardware"
	"codeberg.org/mutker/hwctl/internal/registry"
	"codeberg.org/mutker/hwctl/internal/smm"
	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// machine simulates the BIOS behind the driver: two fans and two usable
// temperature sensors.
type machine struct {
	mu     sync.Mutex
	levels map[uint32]uint32
	rpm    map[uint32]uint32
	temps  map[uint32]uint32
	auto   bool
	ops    []uint32
}

func newMachine() *machine {
	return &machine{
		levels: map[uint32]uint32{0: 1, 1: 0},
		rpm:    map[uint32]uint32{0: 2400, 1: 0},
		temps:  map[uint32]uint32{0: 45, 1: 51, 2: 200},
		auto:   true,
	}
}

func (m *machine) respond(_ uint32, req driver.SmbiosPackage, out []byte) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, req.Opcode)

	result := uint32(0xFFFFFFFF)
	switch req.Opcode {
	case smm.OpGetFanLevel:
		if v, ok := m.levels[req.Index]; ok {
			result = v
		}
	case smm.OpSetFanLevel:
		if _, ok := m.levels[req.Index]; ok {
			m.levels[req.Index] = req.InputWord(0)
			result = 0
		}
	case smm.OpGetFanSpeed:
		if v, ok := m.rpm[req.Index]; ok {
			result = v
		}
	case smm.OpGetTemp:
		if v, ok := m.temps[req.Index]; ok {
			result = v
		}
	case smm.OpDisableAuto:
		m.auto = false
		result = 0
	case smm.OpEnableAuto:
		m.auto = true
		result = 0
	}

	req.SetOutputWord(0, result)
	b, _ := req.MarshalBinary()
	copy(out, b)

	return uint32(len(b)), nil
}

func (m *machine) count(op uint32) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, o := range m.ops {
		if o == op {
			n++
		}
	}
	return n
}

type fakeLedger struct {
	installs map[string]registry.Install
	removed  []string
}

func (l *fakeLedger) Record(_ context.Context, in registry.Install) error {
	if l.installs == nil {
		l.installs = make(map[string]registry.Install)
	}
	l.installs[in.Service] = in
	return nil
}

func (l *fakeLedger) Remove(_ context.Context, service string) error {
	delete(l.installs, service)
	l.removed = append(l.removed, service)
	return nil
}

func testConfig() config.DriverConfig {
	return config.DriverConfig{
		Enabled:            true,
		ServiceName:        "hwctl-test",
		DisplayName:        "hwctl test driver",
		BinaryPath:         `C:\hwctl\test.sys`,
		DevicePath:         `\\.\hwctltest`,
		IOCTLCode:          config.DefaultIOCTLCode,
		StartType:          "demand",
		ErrorControl:       "normal",
		OpenRetries:        3,
		MaxFans:            3,
		MaxFanLevel:        2,
		TemperatureSensors: 4,
	}
}

func newTestGroup(t *testing.T, cfg config.DriverConfig, api *drivertest.API, opts ...smm.Option) (*smm.Group, error) {
	t.Helper()
	opts = append([]smm.Option{smm.WithBackOff(&backoff.ZeroBackOff{})}, opts...)
	return smm.NewGroup(context.Background(), cfg, api, opts...)
}

func onlyHardware(t *testing.T, g *smm.Group) hardware.Hardware {
	t.Helper()
	items := g.Hardware()
	require.Len(t, items, 1)
	return items[0]
}

func TestNewGroup_InstallsAndProbes(t *testing.T) {
	api := drivertest.New()
	m := newMachine()
	api.Respond = m.respond
	ledger := &fakeLedger{}

	g, err := newTestGroup(t, testConfig(), api, smm.WithLedger(ledger))
	require.NoError(t, err)
	defer g.Close()

	assert.Equal(t, "hwctl-test", api.LastCreate.Name)
	assert.Equal(t, driver.StartDemand, api.LastCreate.StartType)
	assert.Equal(t, uint32(config.DefaultIOCTLCode), api.LastIoctl)
	require.Contains(t, ledger.installs, "hwctl-test")
	assert.Equal(t, `\\.\hwctltest`, ledger.installs["hwctl-test"].DevicePath)

	hw := onlyHardware(t, g)
	assert.Equal(t, "/smm", hw.Identifier().String())
	assert.Len(t, hw.Controls(), 2, "fan 2 does not answer")
	// two fans with speed and level, two temperatures; sensor 2 is out of range
	assert.Len(t, hw.Sensors(), 6)

	hw.Update()
	values := make(map[string]float64)
	for _, s := range hw.Sensors() {
		v, ok := s.Value()
		require.True(t, ok, s.Identifier().String())
		values[s.Identifier().String()] = v
	}
	assert.Equal(t, 2400.0, values["/smm/fan/0"])
	assert.Equal(t, 1.0, values["/smm/level/0"])
	assert.Equal(t, 45.0, values["/smm/temperature/0"])
	assert.Equal(t, 51.0, values["/smm/temperature/1"])
}

func TestNewGroup_ExistingServiceNotRecorded(t *testing.T) {
	api := drivertest.New()
	api.Installed = true
	api.Respond = newMachine().respond
	ledger := &fakeLedger{}

	g, err := newTestGroup(t, testConfig(), api, smm.WithLedger(ledger))
	require.NoError(t, err)
	defer g.Close()

	assert.Zero(t, api.Calls("CreateService"))
	assert.Empty(t, ledger.installs)
}

func TestGroup_KeepsForeignService(t *testing.T) {
	cfg := testConfig()
	cfg.UninstallOnClose = true

	t.Run("close", func(t *testing.T) {
		api := drivertest.New()
		api.Installed = true
		api.Respond = newMachine().respond
		ledger := &fakeLedger{}

		g, err := newTestGroup(t, cfg, api, smm.WithLedger(ledger))
		require.NoError(t, err)
		require.NoError(t, g.Close())

		assert.Zero(t, api.Calls("DeleteService"))
		assert.Zero(t, api.Calls("ControlService"))
		assert.True(t, api.Installed)
		assert.Zero(t, api.OpenHandles())
		assert.Empty(t, ledger.removed)
	})

	t.Run("setup failure", func(t *testing.T) {
		api := drivertest.New()
		api.Installed = true
		api.StartServiceErr = drivertest.Errno("StartService", 577)

		g, err := newTestGroup(t, cfg, api)
		require.Error(t, err)
		assert.Empty(t, g.Hardware())
		assert.Zero(t, api.Calls("DeleteService"))
		assert.True(t, api.Installed)
		assert.Zero(t, api.OpenHandles())
	})
}

func TestFanControl_ChangeValue(t *testing.T) {
	api := drivertest.New()
	m := newMachine()
	api.Respond = m.respond

	g, err := newTestGroup(t, testConfig(), api)
	require.NoError(t, err)

	fan := onlyHardware(t, g).Controls()[0]
	assert.Equal(t, hardware.ControlFanLevel, fan.ControlType())
	assert.Equal(t, 2.0, fan.MaxValue())
	assert.Equal(t, 1.0, fan.Value())

	applied, err := fan.ChangeValue(1.6)
	require.NoError(t, err)
	assert.Equal(t, 2.0, applied)
	assert.False(t, m.auto)

	applied, err = fan.ChangeValue(9)
	require.NoError(t, err)
	assert.Equal(t, 2.0, applied, "clamped to the highest level")

	applied, err = fan.ChangeValue(-3)
	require.NoError(t, err)
	assert.Equal(t, 0.0, applied)
	assert.Equal(t, 1, m.count(smm.OpDisableAuto), "BIOS control is taken once")

	require.NoError(t, fan.SetDefaultValue(0))
	assert.True(t, m.auto)

	require.NoError(t, g.Close())
	assert.Equal(t, 1, m.count(smm.OpEnableAuto), "already automatic on close")
}

func TestGroup_CloseRestoresAutomatic(t *testing.T) {
	api := drivertest.New()
	m := newMachine()
	api.Respond = m.respond

	g, err := newTestGroup(t, testConfig(), api)
	require.NoError(t, err)

	_, err = onlyHardware(t, g).Controls()[1].ChangeValue(2)
	require.NoError(t, err)
	require.False(t, m.auto)

	require.NoError(t, g.Close())
	assert.True(t, m.auto)
	assert.Zero(t, api.Calls("DeleteService"))
	assert.Zero(t, api.OpenHandles())
	assert.True(t, api.Installed)
}

func TestGroup_CloseUninstalls(t *testing.T) {
	api := drivertest.New()
	api.Respond = newMachine().respond
	ledger := &fakeLedger{}

	cfg := testConfig()
	cfg.UninstallOnClose = true

	g, err := newTestGroup(t, cfg, api, smm.WithLedger(ledger))
	require.NoError(t, err)
	require.NoError(t, g.Close())

	assert.Equal(t, 1, api.Calls("DeleteService"))
	assert.False(t, api.Installed)
	assert.Zero(t, api.OpenHandles())
	assert.Equal(t, []string{"hwctl-test"}, ledger.removed)
	assert.Empty(t, ledger.installs)
}

func TestNewGroup_DeviceRetry(t *testing.T) {
	t.Run("node appears", func(t *testing.T) {
		api := drivertest.New()
		api.Respond = newMachine().respond
		api.DeviceFailures = 2

		g, err := newTestGroup(t, testConfig(), api)
		require.NoError(t, err)
		defer g.Close()

		assert.Equal(t, 3, api.Calls("OpenDevice"))
		assert.Len(t, g.Hardware(), 1)
	})

	t.Run("retries exhausted", func(t *testing.T) {
		api := drivertest.New()
		api.DeviceFailures = 10

		cfg := testConfig()
		cfg.OpenRetries = 2

		g, err := newTestGroup(t, cfg, api)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, driver.ErrDeviceUnavailable))
		assert.Equal(t, 3, api.Calls("OpenDevice"))
		assert.Empty(t, g.Hardware())
		assert.Zero(t, api.OpenHandles())
		require.NoError(t, g.Close())
	})

	t.Run("access denied is not retried", func(t *testing.T) {
		api := drivertest.New()
		api.OpenDeviceErr = drivertest.Errno("CreateFile", driver.ErrorAccessDenied)

		g, err := newTestGroup(t, testConfig(), api)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, driver.ErrPermissionDenied))
		assert.Equal(t, 1, api.Calls("OpenDevice"))
		assert.Empty(t, g.Hardware())
		assert.Zero(t, api.OpenHandles())
	})
}

func TestNewGroup_StartFailure(t *testing.T) {
	api := drivertest.New()
	api.StartServiceErr = drivertest.Errno("StartService", 577)
	ledger := &fakeLedger{}

	cfg := testConfig()
	cfg.UninstallOnClose = true

	g, err := newTestGroup(t, cfg, api, smm.WithLedger(ledger))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, driver.ErrStartFailed))
	assert.Empty(t, g.Hardware())
	assert.Zero(t, api.OpenHandles())
	assert.False(t, api.Installed, "freshly created service is removed again")
	assert.Empty(t, ledger.installs)
}

func TestNewGroup_Disabled(t *testing.T) {
	api := drivertest.New()
	cfg := testConfig()
	cfg.Enabled = false

	g, err := newTestGroup(t, cfg, api)
	require.NoError(t, err)
	assert.Empty(t, g.Hardware())
	assert.Zero(t, api.Calls("OpenManager"))
	assert.NoError(t, g.Close())
}

func TestNewGroup_InvalidStartType(t *testing.T) {
	api := drivertest.New()
	cfg := testConfig()
	cfg.StartType = "sometimes"

	_, err := newTestGroup(t, cfg, api)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, smm.ErrInvalidConfig))
	assert.Zero(t, api.Calls("OpenManager"))
}

func TestClient_Responses(t *testing.T) {
	api := drivertest.New()
	api.Respond = newMachine().respond

	ch := driver.NewChannel(api, config.DefaultIOCTLCode)
	require.NoError(t, ch.OpenDevice(`\\.\hwctltest`, driver.GenericRead, 0))
	defer ch.Close()

	client := smm.NewClient(ch)
	_, err := client.FanLevel(7)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, smm.ErrNoResponse))

	_, err = client.Temperature(2)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, smm.ErrInvalidValue))

	temp, err := client.Temperature(0)
	require.NoError(t, err)
	assert.Equal(t, 45, temp)

	rpm, err := client.FanSpeed(0)
	require.NoError(t, err)
	assert.Equal(t, 2400, rpm)
}
