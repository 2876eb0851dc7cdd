package memory_test

import (
	"context"
	stderrors "errors"
	"testing"

	"codeberg.org/mutker/hwctl/internal/hardware"
	"codeberg.org/mutker/hwctl/internal/memory"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gb = 1 << 30

type fakeStats struct {
	vm      *mem.VirtualMemoryStat
	swap    *mem.SwapMemoryStat
	vmErr   error
	swapErr error
}

func (f *fakeStats) VirtualMemory(context.Context) (*mem.VirtualMemoryStat, error) {
	return f.vm, f.vmErr
}

func (f *fakeStats) SwapMemory(context.Context) (*mem.SwapMemoryStat, error) {
	return f.swap, f.swapErr
}

func values(t *testing.T, sensors []hardware.Sensor) map[string]float64 {
	t.Helper()

	out := make(map[string]float64)
	for _, s := range sensors {
		if v, ok := s.Value(); ok {
			out[s.Name()] = v
		}
	}

	return out
}

func TestMemory_Update(t *testing.T) {
	stats := &fakeStats{
		vm:   &mem.VirtualMemoryStat{Total: 16 * gb, Used: 4 * gb, Available: 12 * gb, UsedPercent: 25},
		swap: &mem.SwapMemoryStat{Total: 8 * gb, Used: 4 * gb, Free: 4 * gb},
	}
	m := memory.New("Generic Memory", stats)

	assert.Empty(t, values(t, m.Sensors()))

	m.Update()
	got := values(t, m.Sensors())
	assert.InDelta(t, 25.0, got["Memory"], 1e-9)
	assert.InDelta(t, 4.0, got["Memory Used"], 1e-9)
	assert.InDelta(t, 12.0, got["Memory Available"], 1e-9)
	assert.InDelta(t, 8.0, got["Virtual Memory Used"], 1e-9)
	assert.InDelta(t, 16.0, got["Virtual Memory Available"], 1e-9)
	assert.InDelta(t, 100.0/3, got["Virtual Memory"], 1e-9)
	assert.Equal(t, hardware.TypeMemory, m.HardwareType())
}

func TestMemory_FailuresKeepReadings(t *testing.T) {
	stats := &fakeStats{
		vm:   &mem.VirtualMemoryStat{Used: 4 * gb, Available: 12 * gb, UsedPercent: 25},
		swap: &mem.SwapMemoryStat{},
	}
	m := memory.New("Generic Memory", stats)
	m.Update()

	stats.vmErr = stderrors.New("sysinfo failed")
	stats.vm = nil
	assert.NotPanics(t, m.Update)
	assert.InDelta(t, 25.0, values(t, m.Sensors())["Memory"], 1e-9)

	stats.vmErr = nil
	stats.vm = &mem.VirtualMemoryStat{Used: 8 * gb, Available: 8 * gb, UsedPercent: 50}
	stats.swapErr = stderrors.New("no swap info")
	m.Update()
	assert.InDelta(t, 50.0, values(t, m.Sensors())["Memory"], 1e-9)
}

func TestNewGroup(t *testing.T) {
	stats := &fakeStats{vm: &mem.VirtualMemoryStat{}, swap: &mem.SwapMemoryStat{}}

	t.Run("no report", func(t *testing.T) {
		g := memory.NewGroup(memory.WithStats(stats))
		require.Len(t, g.Hardware(), 1)
		_, ok := g.Report()
		assert.False(t, ok)
		assert.NoError(t, g.Close())
	})

	t.Run("dimm report", func(t *testing.T) {
		g := memory.NewGroup(memory.WithStats(stats), memory.WithDIMMReport(func() ([]memory.DIMM, error) {
			return []memory.DIMM{{Locator: "DIMM A1", SizeMB: 8192}}, nil
		}))
		report, ok := g.Report()
		require.True(t, ok)
		assert.Contains(t, report, "DIMM A1")
	})

	t.Run("smbios unreadable", func(t *testing.T) {
		g := memory.NewGroup(memory.WithStats(stats), memory.WithDIMMReport(func() ([]memory.DIMM, error) {
			return nil, stderrors.New("permission denied")
		}))
		_, ok := g.Report()
		assert.False(t, ok)
	})
}
