// Package memory reports physical and virtual memory usage.
package memory

import (
	"context"

	"codeberg.org/mutker/hwctl/internal/errors"
	"codeberg.org/mutker/hwctl/internal/hardware"
	"codeberg.org/mutker/hwctl/internal/logger"
	"github.com/shirou/gopsutil/v3/mem"
)

const bytesPerGB = 1 << 30

// Stats reads memory counters.
type Stats interface {
	VirtualMemory(ctx context.Context) (*mem.VirtualMemoryStat, error)
	SwapMemory(ctx context.Context) (*mem.SwapMemoryStat, error)
}

type psutilStats struct{}

func (psutilStats) VirtualMemory(ctx context.Context) (*mem.VirtualMemoryStat, error) {
	return mem.VirtualMemoryWithContext(ctx)
}

func (psutilStats) SwapMemory(ctx context.Context) (*mem.SwapMemoryStat, error) {
	return mem.SwapMemoryWithContext(ctx)
}

// DefaultStats reads counters through gopsutil.
func DefaultStats() Stats {
	return psutilStats{}
}

// Memory is the machine's memory as a single piece of hardware. Virtual
// figures combine physical memory and swap.
type Memory struct {
	id    hardware.Identifier
	name  string
	stats Stats

	used             *hardware.Reading
	available        *hardware.Reading
	load             *hardware.Reading
	virtualUsed      *hardware.Reading
	virtualAvailable *hardware.Reading
	virtualLoad      *hardware.Reading
}

func New(name string, stats Stats) *Memory {
	id := hardware.NewIdentifier("ram")

	return &Memory{
		id:               id,
		name:             name,
		stats:            stats,
		load:             hardware.NewReading(id.Append("load", "0"), "Memory", 0, hardware.SensorLoad),
		virtualLoad:      hardware.NewReading(id.Append("load", "1"), "Virtual Memory", 1, hardware.SensorLoad),
		used:             hardware.NewReading(id.Append("data", "0"), "Memory Used", 0, hardware.SensorData),
		available:        hardware.NewReading(id.Append("data", "1"), "Memory Available", 1, hardware.SensorData),
		virtualUsed:      hardware.NewReading(id.Append("data", "2"), "Virtual Memory Used", 2, hardware.SensorData),
		virtualAvailable: hardware.NewReading(id.Append("data", "3"), "Virtual Memory Available", 3, hardware.SensorData),
	}
}

func (m *Memory) Identifier() hardware.Identifier     { return m.id }
func (m *Memory) Name() string                        { return m.name }
func (m *Memory) HardwareType() hardware.HardwareType { return hardware.TypeMemory }
func (m *Memory) Controls() []hardware.Control        { return nil }
func (m *Memory) Close() error                        { return nil }

func (m *Memory) Sensors() []hardware.Sensor {
	return []hardware.Sensor{
		m.load, m.virtualLoad,
		m.used, m.available, m.virtualUsed, m.virtualAvailable,
	}
}

// Update refreshes the readings. Physical and virtual figures are read
// separately; a failure of one leaves the other intact.
func (m *Memory) Update() {
	ctx := context.Background()
	errFactory := errors.New()

	vm, err := m.stats.VirtualMemory(ctx)
	if err != nil {
		logger.Debug().Err(errFactory.Wrap(ErrStatFailed, err)).Msg("Memory statistics unavailable")
		return
	}

	m.used.Set(float64(vm.Used) / bytesPerGB)
	m.available.Set(float64(vm.Available) / bytesPerGB)
	m.load.Set(hardware.Clamp(vm.UsedPercent, 0, 100))

	swap, err := m.stats.SwapMemory(ctx)
	if err != nil {
		logger.Debug().Err(errFactory.Wrap(ErrStatFailed, err)).Msg("Swap statistics unavailable")
		return
	}

	used := vm.Used + swap.Used
	available := vm.Available + swap.Free
	m.virtualUsed.Set(float64(used) / bytesPerGB)
	m.virtualAvailable.Set(float64(available) / bytesPerGB)
	if total := used + available; total > 0 {
		m.virtualLoad.Set(100 * float64(used) / float64(total))
	}
}

// Group holds the generic memory hardware and, when enabled, a DIMM report
// built once at discovery.
type Group struct {
	*hardware.Collection
	report string
}

// GroupOption configures NewGroup.
type GroupOption func(*groupOptions)

type groupOptions struct {
	stats  Stats
	dimms  func() ([]DIMM, error)
	report bool
}

func WithStats(s Stats) GroupOption {
	return func(o *groupOptions) { o.stats = s }
}

// WithDIMMReport enables the DIMM report, read through read.
func WithDIMMReport(read func() ([]DIMM, error)) GroupOption {
	return func(o *groupOptions) {
		o.report = true
		o.dimms = read
	}
}

func NewGroup(opts ...GroupOption) *Group {
	o := groupOptions{stats: DefaultStats()}
	for _, opt := range opts {
		opt(&o)
	}

	g := &Group{Collection: hardware.NewCollection(New("Generic Memory", o.stats))}

	if o.report {
		dimms, err := o.dimms()
		if err != nil {
			logger.Debug().Err(err).Msg("DIMM report unavailable")
		} else if len(dimms) > 0 {
			g.report = FormatReport(dimms)
		}
	}

	return g
}

func (g *Group) Report() (string, bool) {
	return g.report, g.report != ""
}
