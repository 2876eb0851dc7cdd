package cpu

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"codeberg.org/mutker/hwctl/internal/errors"
)

const DefaultProcStatPath = "/proc/stat"

// Column positions in a per-thread "cpuN" row.
const (
	colUser   = 1
	colSystem = 3
	colIdle   = 4
)

// ProcStatSource reads per-thread rows from a /proc/stat style file.
//
// The first statistic of each row is user+system ticks and the total adds
// idle ticks, so RatioLoad yields the busy share.
type ProcStatSource struct {
	path string
}

func NewProcStatSource(path string) *ProcStatSource {
	return &ProcStatSource{path: path}
}

func (s *ProcStatSource) Name() string {
	return "procstat"
}

func (s *ProcStatSource) Load(prev, cur Ticks) float64 {
	return RatioLoad(prev, cur)
}

func (s *ProcStatSource) Capture() (Sample, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, errors.New().Wrap(ErrCaptureFailed, err)
	}
	defer f.Close()

	return parseProcStat(f)
}

// parseProcStat skips the aggregate "cpu" row and returns one Ticks per
// remaining "cpu" row. Any unparsable row fails the whole capture.
func parseProcStat(r io.Reader) (Sample, error) {
	errFactory := errors.New()

	var sample Sample
	seenAggregate := false

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "cpu") {
			continue
		}
		if !seenAggregate {
			seenAggregate = true
			continue
		}

		fields := strings.Fields(line)
		if len(fields) <= colIdle {
			return nil, errFactory.WithData(ErrMalformedCounters, fmt.Sprintf("short row %q", fields[0]))
		}

		var cols [colIdle + 1]uint64
		for _, c := range []int{colUser, colSystem, colIdle} {
			v, err := strconv.ParseUint(fields[c], 10, 64)
			if err != nil {
				return nil, errFactory.Wrap(ErrMalformedCounters, err).WithData(fields[0])
			}
			cols[c] = v
		}

		busy := cols[colUser] + cols[colSystem]
		sample = append(sample, Ticks{Idle: busy, Total: busy + cols[colIdle]})
	}
	if err := scanner.Err(); err != nil {
		return nil, errFactory.Wrap(ErrCaptureFailed, err)
	}

	if len(sample) == 0 {
		return nil, errFactory.WithMessage(ErrMalformedCounters, "no per-thread rows")
	}

	return sample, nil
}
