package cpu

import (
	"context"
	"runtime"

	"codeberg.org/mutker/hwctl/internal/errors"
	"github.com/shirou/gopsutil/v3/cpu"
)

// Topology groups logical thread ids under physical cores.
type Topology struct {
	Name  string
	Cores [][]int
}

// Threads returns the number of logical threads.
func (t Topology) Threads() int {
	n := 0
	for _, core := range t.Cores {
		n += len(core)
	}

	return n
}

// FlatTopology puts each of n threads on its own core.
func FlatTopology(name string, n int) Topology {
	t := Topology{Name: name, Cores: make([][]int, n)}
	for i := range t.Cores {
		t.Cores[i] = []int{i}
	}

	return t
}

// DetectTopology reads the processor layout through gopsutil.
func DetectTopology(ctx context.Context) (Topology, error) {
	errFactory := errors.New()

	logical, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return Topology{}, errFactory.Wrap(ErrTopology, err)
	}
	physical, err := cpu.CountsWithContext(ctx, false)
	if err != nil {
		physical = logical
	}

	infos, err := cpu.InfoWithContext(ctx)
	if err != nil {
		return Topology{}, errFactory.Wrap(ErrTopology, err)
	}

	return buildTopology(infos, logical, physical), nil
}

// buildTopology uses per-thread core ids when gopsutil reports one entry per
// logical thread, and spreads threads evenly over physical cores otherwise.
func buildTopology(infos []cpu.InfoStat, logical, physical int) Topology {
	name := runtime.GOARCH
	if len(infos) > 0 && infos[0].ModelName != "" {
		name = infos[0].ModelName
	}

	if logical <= 0 {
		logical = max(len(infos), 1)
	}

	if len(infos) == logical {
		t := Topology{Name: name}
		cores := make(map[string]int)
		for i, info := range infos {
			key := info.PhysicalID + "/" + info.CoreID
			idx, ok := cores[key]
			if !ok {
				idx = len(t.Cores)
				cores[key] = idx
				t.Cores = append(t.Cores, nil)
			}
			t.Cores[idx] = append(t.Cores[idx], i)
		}

		return t
	}

	if physical <= 0 || physical > logical || logical%physical != 0 {
		return FlatTopology(name, logical)
	}

	perCore := logical / physical
	t := Topology{Name: name, Cores: make([][]int, physical)}
	for c := range t.Cores {
		for j := 0; j < perCore; j++ {
			t.Cores[c] = append(t.Cores[c], c*perCore+j)
		}
	}

	return t
}
