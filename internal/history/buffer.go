// Package history keeps bounded rolling series for charts.
package history

// DefaultCapacity is one minute of per-second samples
const DefaultCapacity = 60

// SeriesBuffer is a fixed-capacity ring that evicts the oldest value.
// It is not safe for concurrent use; Registry guards its buffers.
type SeriesBuffer struct {
	values []float64
	start  int
	size   int
}

// NewSeriesBuffer creates a buffer. Capacity below one uses DefaultCapacity.
func NewSeriesBuffer(capacity int) *SeriesBuffer {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &SeriesBuffer{values: make([]float64, capacity)}
}

// Push appends v, dropping the oldest value when full
func (b *SeriesBuffer) Push(v float64) {
	capacity := len(b.values)
	if b.size < capacity {
		b.values[(b.start+b.size)%capacity] = v
		b.size++
		return
	}
	b.values[b.start] = v
	b.start = (b.start + 1) % capacity
}

// Values returns a new slice, oldest first
func (b *SeriesBuffer) Values() []float64 {
	out := make([]float64, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.values[(b.start+i)%len(b.values)]
	}
	return out
}

// Last returns the most recent value
func (b *SeriesBuffer) Last() (float64, bool) {
	if b.size == 0 {
		return 0, false
	}
	return b.values[(b.start+b.size-1)%len(b.values)], true
}

func (b *SeriesBuffer) Len() int { return b.size }

func (b *SeriesBuffer) Cap() int { return len(b.values) }
