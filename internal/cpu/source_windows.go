//go:build windows

package cpu

import (
	"unsafe"

	"codeberg.org/mutker/hwctl/internal/errors"
	"golang.org/x/sys/windows"
)

// processorPerformanceSource queries NtQuerySystemInformation for one
// performance record per logical processor.
type processorPerformanceSource struct {
	buf []byte
}

// DefaultSource returns the counter source of the running platform.
func DefaultSource() CounterSource {
	return &processorPerformanceSource{buf: make([]byte, maxProcessors*perfRecordSize)}
}

func (s *processorPerformanceSource) Name() string {
	return "ntquery"
}

func (s *processorPerformanceSource) Load(prev, cur Ticks) float64 {
	return ComplementLoad(prev, cur)
}

func (s *processorPerformanceSource) Capture() (Sample, error) {
	var returned uint32
	err := windows.NtQuerySystemInformation(
		systemProcessorPerformanceInformation,
		unsafe.Pointer(&s.buf[0]),
		uint32(len(s.buf)),
		&returned,
	)
	if err != nil {
		return nil, errors.New().Wrap(ErrCaptureFailed, err)
	}

	return decodeProcessorPerformance(s.buf, int(returned))
}
