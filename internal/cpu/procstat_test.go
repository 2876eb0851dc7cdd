package cpu

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"codeberg.org/mutker/hwctl/internal/errors"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const statT0 = `cpu  150 0 80 300 0 0 0 0 0 0
cpu0 60 0 40 100 0 0 0 0 0 0
cpu1 90 0 40 200 0 0 0 0 0 0
intr 12345
ctxt 6789
`

const statT1 = `cpu  270 0 140 400 0 0 0 0 0 0
cpu0 90 0 60 150 0 0 0 0 0 0
cpu1 120 0 80 200 0 0 0 0 0 0
intr 12399
`

func TestParseProcStat(t *testing.T) {
	sample, err := parseProcStat(strings.NewReader(statT0))
	require.NoError(t, err)
	require.Len(t, sample, 2)
	assert.Equal(t, Ticks{Idle: 100, Total: 200}, sample[0])
	assert.Equal(t, Ticks{Idle: 130, Total: 330}, sample[1])
}

func TestParseProcStat_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no rows", "intr 1\n"},
		{"aggregate only", "cpu  1 2 3 4\n"},
		{"short row", "cpu  1 2 3 4\ncpu0 1 2\n"},
		{"not a number", "cpu  1 2 3 4\ncpu0 1 2 x 4\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseProcStat(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, ErrMalformedCounters))
		})
	}
}

func TestProcStatSource_TwoThreadScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stat")
	require.NoError(t, os.WriteFile(path, []byte(statT0), 0o600))

	source := NewProcStatSource(path)
	s := NewSampler(2, source)
	require.True(t, s.IsAvailable())

	require.NoError(t, os.WriteFile(path, []byte(statT1), 0o600))
	require.NoError(t, s.Update())

	load, err := s.GetThreadLoad(0)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, load, 1e-9)

	// cpu1: idle 130 -> 200, total 330 -> 400
	load, err = s.GetThreadLoad(1)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, load, 1e-9)
}

func TestProcStatSource_MissingFile(t *testing.T) {
	source := NewProcStatSource(filepath.Join(t.TempDir(), "missing"))

	_, err := source.Capture()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrCaptureFailed))
}

func perfRecord(idle, kernel, user uint64) []byte {
	rec := make([]byte, perfRecordSize)
	binary.LittleEndian.PutUint64(rec[perfOffsetIdle:], idle)
	binary.LittleEndian.PutUint64(rec[perfOffsetKernel:], kernel)
	binary.LittleEndian.PutUint64(rec[perfOffsetUser:], user)

	return rec
}

func TestDecodeProcessorPerformance(t *testing.T) {
	buf := make([]byte, maxProcessors*perfRecordSize)
	copy(buf, perfRecord(700, 900, 100))
	copy(buf[perfRecordSize:], perfRecord(50, 300, 700))

	sample, err := decodeProcessorPerformance(buf, 2*perfRecordSize)
	require.NoError(t, err)
	require.Len(t, sample, 2)
	assert.Equal(t, Ticks{Idle: 700, Total: 1000}, sample[0])
	assert.Equal(t, Ticks{Idle: 50, Total: 1000}, sample[1])
}

func TestDecodeProcessorPerformance_BadLength(t *testing.T) {
	buf := make([]byte, 2*perfRecordSize)

	for _, n := range []int{0, perfRecordSize + 1, 3 * perfRecordSize} {
		_, err := decodeProcessorPerformance(buf, n)
		assert.True(t, errors.HasCode(err, ErrMalformedCounters), "n=%d", n)
	}
}

func TestBuildTopology(t *testing.T) {
	t.Run("per thread info", func(t *testing.T) {
		infos := []cpu.InfoStat{
			{ModelName: "Test CPU", PhysicalID: "0", CoreID: "0"},
			{ModelName: "Test CPU", PhysicalID: "0", CoreID: "1"},
			{ModelName: "Test CPU", PhysicalID: "0", CoreID: "0"},
			{ModelName: "Test CPU", PhysicalID: "0", CoreID: "1"},
		}

		topo := buildTopology(infos, 4, 2)
		assert.Equal(t, "Test CPU", topo.Name)
		assert.Equal(t, [][]int{{0, 2}, {1, 3}}, topo.Cores)
		assert.Equal(t, 4, topo.Threads())
	})

	t.Run("per package info", func(t *testing.T) {
		topo := buildTopology([]cpu.InfoStat{{ModelName: "Test CPU", Cores: 8}}, 8, 4)
		assert.Equal(t, [][]int{{0, 1}, {2, 3}, {4, 5}, {6, 7}}, topo.Cores)
	})

	t.Run("uneven counts", func(t *testing.T) {
		topo := buildTopology(nil, 6, 4)
		assert.Len(t, topo.Cores, 6)
		assert.Equal(t, 6, topo.Threads())
	})
}
