package selfguard

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aleister1102/hostpulse/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedUsage(u Usage) UsageFunc {
	return func(context.Context) Usage { return u }
}

func TestGuard_New_AppliesDefaults(t *testing.T) {
	g := New(config.SelfGuardConfig{}, zerolog.Nop())

	assert.Equal(t, int64(config.DefaultSelfGuardMaxHeapMB), g.cfg.MaxHeapMB)
	assert.Equal(t, config.DefaultSelfGuardMaxGoroutines, g.cfg.MaxGoroutines)
	assert.Equal(t, time.Duration(config.DefaultSelfGuardCheckIntervalSecs)*time.Second, g.interval)
	assert.Equal(t, int64(204), g.heapWarningMB)
}

func TestGuard_StartStopIdempotent(t *testing.T) {
	g := New(config.NewDefaultSelfGuardConfig(), zerolog.Nop())

	g.Start(context.Background())
	g.Start(context.Background())
	assert.True(t, g.IsRunning())

	g.Stop()
	g.Stop()
	assert.False(t, g.IsRunning())
}

func TestGuard_Check_WithinLimits(t *testing.T) {
	g := New(config.SelfGuardConfig{MaxHeapMB: 100, MaxGoroutines: 100, EnableAutoShutdown: true}, zerolog.Nop())
	var calls int32
	g.SetShutdownCallback(func() { atomic.AddInt32(&calls, 1) })
	g.SetUsageFunc(fixedUsage(Usage{HeapMB: 90, Goroutines: 95}))

	assert.Empty(t, g.Check(context.Background()))
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestGuard_Check_HeapExceeded(t *testing.T) {
	g := New(config.SelfGuardConfig{MaxHeapMB: 100, MaxGoroutines: 100, EnableAutoShutdown: true}, zerolog.Nop())
	var calls int32
	g.SetShutdownCallback(func() { atomic.AddInt32(&calls, 1) })
	g.SetUsageFunc(fixedUsage(Usage{HeapMB: 101, Goroutines: 10}))

	assert.Contains(t, g.Check(context.Background()), "heap limit exceeded")
	assert.Contains(t, g.Check(context.Background()), "heap limit exceeded")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "shutdown callback fires once")
}

func TestGuard_Check_GoroutinesExceededWithoutAutoShutdown(t *testing.T) {
	g := New(config.SelfGuardConfig{MaxHeapMB: 100, MaxGoroutines: 100}, zerolog.Nop())
	var calls int32
	g.SetShutdownCallback(func() { atomic.AddInt32(&calls, 1) })
	g.SetUsageFunc(fixedUsage(Usage{HeapMB: 1, Goroutines: 500}))

	assert.Contains(t, g.Check(context.Background()), "goroutine limit exceeded")
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestGuard_MonitorLoopTriggersShutdown(t *testing.T) {
	g := New(config.SelfGuardConfig{MaxHeapMB: 100, MaxGoroutines: 100, EnableAutoShutdown: true}, zerolog.Nop())
	g.SetInterval(5 * time.Millisecond)
	g.SetUsageFunc(fixedUsage(Usage{HeapMB: 500}))

	fired := make(chan struct{})
	g.SetShutdownCallback(func() { close(fired) })

	g.Start(context.Background())
	defer g.Stop()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown callback was not invoked")
	}
}

func TestCurrentUsage(t *testing.T) {
	usage := CurrentUsage(context.Background())
	require.NotZero(t, usage.Goroutines)
	assert.NotZero(t, usage.SysMB)
}
