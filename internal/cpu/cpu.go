// Package cpu samples per-thread processor load and exposes it as CPU
// hardware in the inventory.
package cpu

import (
	"context"
	"fmt"
	"runtime"
	"strconv"

	"codeberg.org/mutker/hwctl/internal/hardware"
	"codeberg.org/mutker/hwctl/internal/logger"
)

// CPU is one processor package with a total load sensor and one load
// sensor per logical thread.
type CPU struct {
	id       hardware.Identifier
	name     string
	sampler  *Sampler
	total    *hardware.Reading
	threads  []*hardware.Reading
	failures int
}

// New builds CPU hardware over a sampler sized for topo.
func New(index int, topo Topology, source CounterSource) *CPU {
	id := hardware.NewIdentifier("cpu", strconv.Itoa(index))
	c := &CPU{
		id:      id,
		name:    topo.Name,
		sampler: NewSampler(topo.Threads(), source),
		total:   hardware.NewReading(id.Append("load", "0"), "CPU Total", 0, hardware.SensorLoad),
	}

	for core, threads := range topo.Cores {
		for n, thread := range threads {
			name := fmt.Sprintf("CPU Core #%d", core+1)
			if len(threads) > 1 {
				name = fmt.Sprintf("CPU Core #%d Thread #%d", core+1, n+1)
			}
			c.threads = append(c.threads, hardware.NewReading(
				id.Append("load", strconv.Itoa(thread+1)), name, thread+1, hardware.SensorLoad))
		}
	}

	return c
}

func (c *CPU) Identifier() hardware.Identifier     { return c.id }
func (c *CPU) Name() string                        { return c.name }
func (c *CPU) HardwareType() hardware.HardwareType { return hardware.TypeCPU }
func (c *CPU) Controls() []hardware.Control        { return nil }
func (c *CPU) Close() error                        { return nil }

// Sampler exposes the underlying load sampler.
func (c *CPU) Sampler() *Sampler {
	return c.sampler
}

func (c *CPU) Sensors() []hardware.Sensor {
	sensors := make([]hardware.Sensor, 0, len(c.threads)+1)
	sensors = append(sensors, c.total)
	for _, r := range c.threads {
		sensors = append(sensors, r)
	}

	return sensors
}

// Update samples the counters. Readings stay empty until the first delta
// has been computed and keep their last value when a capture fails.
func (c *CPU) Update() {
	if !c.sampler.IsAvailable() {
		return
	}

	if err := c.sampler.Update(); err != nil {
		c.failures++
		logger.Debug().Err(err).Int("failures", c.failures).Msg("CPU load sample skipped")
		return
	}
	c.failures = 0

	c.total.Set(c.sampler.GetTotalLoad())
	for _, r := range c.threads {
		if load, err := c.sampler.GetThreadLoad(r.Index() - 1); err == nil {
			r.Set(load)
		}
	}
}

// Group holds the processors of the machine.
type Group struct {
	*hardware.Collection
}

// NewGroup detects the topology and starts sampling with the platform's
// counter source.
func NewGroup(ctx context.Context) *Group {
	return NewGroupWithSource(ctx, DefaultSource())
}

func NewGroupWithSource(ctx context.Context, source CounterSource) *Group {
	topo, err := DetectTopology(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to detect CPU topology, assuming one thread per core")
		topo = FlatTopology(runtime.GOARCH, runtime.NumCPU())
	}

	logger.Debug().
		Str("cpu", topo.Name).
		Int("cores", len(topo.Cores)).
		Int("threads", topo.Threads()).
		Str("source", source.Name()).
		Msg("Detected CPU")

	return &Group{Collection: hardware.NewCollection(New(0, topo, source))}
}
