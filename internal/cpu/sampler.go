package cpu

import (
	"fmt"

	"codeberg.org/mutker/hwctl/internal/errors"
	"codeberg.org/mutker/hwctl/internal/logger"
)

// Sampler keeps a per-thread load percentage computed from successive
// counter samples. It is not safe for concurrent use; the caller's poll loop
// drives it.
type Sampler struct {
	source    CounterSource
	loads     []float64
	baseline  Sample
	available bool
}

// NewSampler sizes the sampler for threads logical threads and takes the
// baseline sample. When that capture fails the sampler is permanently
// unavailable and Update does nothing.
func NewSampler(threads int, source CounterSource) *Sampler {
	s := &Sampler{
		source: source,
		loads:  make([]float64, threads),
	}

	baseline, err := source.Capture()
	if err != nil {
		logger.Warn().Err(err).Str("source", source.Name()).Msg("CPU load counters unavailable")
		return s
	}

	s.baseline = baseline
	s.available = true

	return s
}

func (s *Sampler) IsAvailable() bool {
	return s.available
}

// Threads returns the number of threads the sampler tracks.
func (s *Sampler) Threads() int {
	return len(s.loads)
}

// Update captures a new sample and recomputes loads. A failed capture leaves
// loads and baseline untouched and returns a transient read failure.
func (s *Sampler) Update() error {
	if !s.available {
		return nil
	}

	sample, err := s.source.Capture()
	if err != nil {
		return errors.New().Wrap(ErrTransientReadFailure, err).WithData(s.source.Name())
	}

	for i := 0; i < len(s.loads) && i < len(s.baseline) && i < len(sample); i++ {
		s.loads[i] = s.source.Load(s.baseline[i], sample[i])
	}
	s.baseline = sample

	return nil
}

// GetTotalLoad returns the mean of all thread loads, or 0 with no threads.
func (s *Sampler) GetTotalLoad() float64 {
	if len(s.loads) == 0 {
		return 0
	}

	var sum float64
	for _, l := range s.loads {
		sum += l
	}

	return sum / float64(len(s.loads))
}

// GetThreadLoad returns the load of thread i.
func (s *Sampler) GetThreadLoad(i int) (float64, error) {
	if i < 0 || i >= len(s.loads) {
		return 0, errors.New().WithData(ErrThreadOutOfRange, fmt.Sprintf("thread %d of %d", i, len(s.loads)))
	}

	return s.loads[i], nil
}
