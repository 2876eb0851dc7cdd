//go:build !windows

package cpu

// DefaultSource returns the counter source of the running platform.
func DefaultSource() CounterSource {
	return NewProcStatSource(DefaultProcStatPath)
}
