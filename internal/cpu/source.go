package cpu

// Ticks is one logical thread's counter pair.
type Ticks struct {
	Idle  uint64
	Total uint64
}

// Sample holds one Ticks per logical thread, indexed by thread id.
type Sample []Ticks

// LoadFunc turns two successive readings of a thread into a load percentage.
type LoadFunc func(prev, cur Ticks) float64

// CounterSource captures per-thread counters from one OS mechanism.
// Capture returns either a complete sample or an error, never a partial one.
type CounterSource interface {
	Name() string
	Capture() (Sample, error)
	Load(prev, cur Ticks) float64
}

func deltas(prev, cur Ticks) (idle, total float64) {
	return float64(cur.Idle) - float64(prev.Idle), float64(cur.Total) - float64(prev.Total)
}

// RatioLoad is the share of the first counter in the total delta.
func RatioLoad(prev, cur Ticks) float64 {
	idle, total := deltas(prev, cur)
	if total <= 0 {
		return 0
	}

	return clampPercent(idle / total * 100)
}

// ComplementLoad is the busy share left over by the idle counter.
func ComplementLoad(prev, cur Ticks) float64 {
	idle, total := deltas(prev, cur)
	if total <= 0 {
		return 0
	}

	return clampPercent(100 * (1 - min(idle/total, 1)))
}

func clampPercent(v float64) float64 {
	return max(0, min(v, 100))
}
