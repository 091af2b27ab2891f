// Package counter turns cumulative OS counters into interval rates.
package counter

import (
	"math"
	"time"
)

// CPUSnapshot is a pair of cumulative tick counters captured at one instant
type CPUSnapshot struct {
	IdleTicks  uint64
	TotalTicks uint64
}

// ComputeUtilization returns the busy percentage between previous and current
// together with the baseline for the next call, which is always current.
// A nil previous is a cold start and yields 0. ok is false when no usable
// delta exists (cold start, equal totals or a counter that went backwards).
func ComputeUtilization(previous *CPUSnapshot, current CPUSnapshot) (pct float64, next CPUSnapshot, ok bool) {
	if previous == nil {
		return 0, current, false
	}
	if current.TotalTicks <= previous.TotalTicks || current.IdleTicks < previous.IdleTicks {
		return 0, current, false
	}

	totalDelta := float64(current.TotalTicks - previous.TotalTicks)
	idleDelta := float64(current.IdleTicks - previous.IdleTicks)
	return Clamp(100-(100*idleDelta/totalDelta), 0, 100), current, true
}

// Reader owns the CPU baseline. It is not safe for concurrent use; one
// sampler task calls Read.
type Reader struct {
	baseline *CPUSnapshot
	last     float64
}

// NewReader creates a reader with no baseline
func NewReader() *Reader {
	return &Reader{}
}

// Read feeds a new snapshot and returns the current percentage. Degenerate
// intervals return the previous percentage.
func (r *Reader) Read(current CPUSnapshot) float64 {
	pct, next, ok := ComputeUtilization(r.baseline, current)
	r.baseline = &next
	if ok {
		r.last = pct
	}
	return r.last
}

// Last returns the most recent percentage without sampling
func (r *Reader) Last() float64 {
	return r.last
}

// RateMeter converts a monotonically increasing counter into units per second
type RateMeter struct {
	prev   uint64
	prevAt time.Time
	primed bool
	last   float64
}

// NewRateMeter creates an unprimed meter
func NewRateMeter() *RateMeter {
	return &RateMeter{}
}

// Rate returns the rate since the previous call. The first call returns 0.
// A non-positive elapsed time keeps the last rate; a counter reset rebases.
func (m *RateMeter) Rate(counter uint64, at time.Time) float64 {
	if !m.primed {
		m.prev, m.prevAt, m.primed = counter, at, true
		return 0
	}

	elapsed := at.Sub(m.prevAt).Seconds()
	if elapsed <= 0 {
		return m.last
	}
	if counter < m.prev {
		m.prev, m.prevAt = counter, at
		return m.last
	}

	m.last = float64(counter-m.prev) / elapsed
	m.prev, m.prevAt = counter, at
	return m.last
}

// Clamp bounds v to [lo, hi]. NaN maps to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Round1 rounds to one decimal place
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Percent returns part/whole as a clamped percentage, 0 when whole is 0
func Percent(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	return Clamp(100*part/whole, 0, 100)
}
