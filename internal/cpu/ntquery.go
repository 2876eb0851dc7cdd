package cpu

import (
	"encoding/binary"
	"fmt"

	"codeberg.org/mutker/hwctl/internal/errors"
)

// SYSTEM_PROCESSOR_PERFORMANCE_INFORMATION record layout.
const (
	perfRecordSize   = 48
	perfOffsetIdle   = 0
	perfOffsetKernel = 8
	perfOffsetUser   = 16

	// maxProcessors is the number of records requested per query.
	maxProcessors = 64

	systemProcessorPerformanceInformation = 8
)

// decodeProcessorPerformance decodes the records in the first n bytes of b.
// Kernel time includes idle time; total is kernel plus user.
func decodeProcessorPerformance(b []byte, n int) (Sample, error) {
	if n <= 0 || n > len(b) || n%perfRecordSize != 0 {
		return nil, errors.New().WithData(ErrMalformedCounters,
			fmt.Sprintf("returned %d bytes, record size %d", n, perfRecordSize))
	}

	sample := make(Sample, n/perfRecordSize)
	for i := range sample {
		rec := b[i*perfRecordSize : (i+1)*perfRecordSize]
		idle := binary.LittleEndian.Uint64(rec[perfOffsetIdle:])
		kernel := binary.LittleEndian.Uint64(rec[perfOffsetKernel:])
		user := binary.LittleEndian.Uint64(rec[perfOffsetUser:])
		sample[i] = Ticks{Idle: idle, Total: kernel + user}
	}

	return sample, nil
}
