package history

import (
	"sort"
	"strings"
	"sync"

	"github.com/VividCortex/ewma"
)

// Series keys in use by the sampler
const (
	SeriesCPU         = "cpu"
	SeriesRAM         = "ram"
	SeriesGPU         = "gpu"
	SeriesNetDownload = "net.download"
	SeriesNetUpload   = "net.upload"
	// AppSeriesPrefix prefixes per-application smoothed memory series
	AppSeriesPrefix = "app."
)

// AppSeriesKey returns the series key for a process key
func AppSeriesKey(processKey string) string {
	return AppSeriesPrefix + processKey
}

// Registry holds one buffer and one smoothing state per series key
type Registry struct {
	mu           sync.RWMutex
	capacity     int
	smoothingAge float64
	buffers      map[string]*SeriesBuffer
	averages     map[string]ewma.MovingAverage
}

// NewRegistry creates a registry. smoothingAge is the EWMA window in samples;
// zero selects the library default.
func NewRegistry(capacity int, smoothingAge float64) *Registry {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Registry{
		capacity:     capacity,
		smoothingAge: smoothingAge,
		buffers:      make(map[string]*SeriesBuffer),
		averages:     make(map[string]ewma.MovingAverage),
	}
}

func (r *Registry) bufferLocked(key string) *SeriesBuffer {
	buf, ok := r.buffers[key]
	if !ok {
		buf = NewSeriesBuffer(r.capacity)
		r.buffers[key] = buf
	}
	return buf
}

// Push appends a raw value to key, creating the series on first use
func (r *Registry) Push(key string, v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bufferLocked(key).Push(v)
}

// PushSmoothed feeds v into the series' moving average and appends the
// smoothed value, which it also returns.
func (r *Registry) PushSmoothed(key string, v float64) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	avg, ok := r.averages[key]
	if !ok {
		if r.smoothingAge > 0 {
			avg = ewma.NewMovingAverage(r.smoothingAge)
		} else {
			avg = ewma.NewMovingAverage()
		}
		// Set seeds the average so the series does not start from the warmup zero
		avg.Set(v)
		r.averages[key] = avg
	} else {
		avg.Add(v)
	}

	smoothed := avg.Value()
	r.bufferLocked(key).Push(smoothed)
	return smoothed
}

// Read returns the series values oldest first
func (r *Registry) Read(key string) ([]float64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	buf, ok := r.buffers[key]
	if !ok {
		return nil, false
	}
	return buf.Values(), true
}

// Drop discards a series and its smoothing state
func (r *Registry) Drop(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.buffers, key)
	delete(r.averages, key)
}

// Retain drops every series under prefix whose suffix is not in live.
// It returns the dropped keys.
func (r *Registry) Retain(prefix string, live map[string]struct{}) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var dropped []string
	for key := range r.buffers {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if _, ok := live[strings.TrimPrefix(key, prefix)]; ok {
			continue
		}
		delete(r.buffers, key)
		delete(r.averages, key)
		dropped = append(dropped, key)
	}
	sort.Strings(dropped)
	return dropped
}

// Keys returns all series keys in ascending order
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.buffers))
	for k := range r.buffers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot copies every series
func (r *Registry) Snapshot() map[string][]float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string][]float64, len(r.buffers))
	for k, buf := range r.buffers {
		out[k] = buf.Values()
	}
	return out
}

// Capacity is the per-series length limit
func (r *Registry) Capacity() int {
	return r.capacity
}

func (r *Registry) smoothingStates() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.averages)
}
