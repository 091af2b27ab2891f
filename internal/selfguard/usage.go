package selfguard

import (
	"context"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/process"
)

// Usage is a point-in-time view of the agent's own footprint.
type Usage struct {
	HeapMB     int64 // live heap allocated by the Go runtime
	SysMB      int64 // memory obtained from the OS by the runtime
	RSSMB      int64 // resident set size as seen by the OS, 0 if unknown
	Goroutines int
	GCCount    int64
}

// UsageFunc returns the current usage. Tests replace it.
type UsageFunc func(ctx context.Context) Usage

// CurrentUsage reads runtime statistics and the process RSS.
func CurrentUsage(ctx context.Context) Usage {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	usage := Usage{
		HeapMB:     int64(m.HeapAlloc / 1024 / 1024),
		SysMB:      int64(m.Sys / 1024 / 1024),
		Goroutines: runtime.NumGoroutine(),
		GCCount:    int64(m.NumGC),
	}

	if proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if info, err := proc.MemoryInfoWithContext(ctx); err == nil && info != nil {
			usage.RSSMB = int64(info.RSS / 1024 / 1024)
		}
	}
	return usage
}
