package selfguard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aleister1102/hostpulse/internal/config"
	"github.com/rs/zerolog"
)

// Guard watches the agent's heap and goroutine count and can ask the
// process to shut down when either limit is exceeded.
type Guard struct {
	cfg              config.SelfGuardConfig
	interval         time.Duration
	heapWarningMB    int64
	goroutineWarning int
	usage            UsageFunc
	logger           zerolog.Logger

	mu               sync.RWMutex
	isRunning        bool
	cancel           context.CancelFunc
	wg               sync.WaitGroup
	shutdownCallback func()
	shutdownFired    bool
}

// New creates a guard. Zero fields in cfg take the package defaults.
func New(cfg config.SelfGuardConfig, logger zerolog.Logger) *Guard {
	if cfg.MaxHeapMB <= 0 {
		cfg.MaxHeapMB = config.DefaultSelfGuardMaxHeapMB
	}
	if cfg.MaxGoroutines <= 0 {
		cfg.MaxGoroutines = config.DefaultSelfGuardMaxGoroutines
	}
	if cfg.CheckIntervalSecs <= 0 {
		cfg.CheckIntervalSecs = config.DefaultSelfGuardCheckIntervalSecs
	}
	if cfg.WarningFraction <= 0 || cfg.WarningFraction > 1 {
		cfg.WarningFraction = config.DefaultSelfGuardWarningFraction
	}

	return &Guard{
		cfg:              cfg,
		interval:         time.Duration(cfg.CheckIntervalSecs) * time.Second,
		heapWarningMB:    int64(float64(cfg.MaxHeapMB) * cfg.WarningFraction),
		goroutineWarning: int(float64(cfg.MaxGoroutines) * cfg.WarningFraction),
		usage:            CurrentUsage,
		logger:           logger.With().Str("component", "SelfGuard").Logger(),
	}
}

// SetShutdownCallback sets the function invoked when a limit is exceeded
// and auto shutdown is enabled.
func (g *Guard) SetShutdownCallback(callback func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.shutdownCallback = callback
}

// SetUsageFunc replaces the usage source.
func (g *Guard) SetUsageFunc(fn UsageFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.usage = fn
}

// SetInterval overrides the check interval. It must be called before Start.
func (g *Guard) SetInterval(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if d > 0 {
		g.interval = d
	}
}

// Start begins monitoring. Calling it twice is a no-op.
func (g *Guard) Start(ctx context.Context) {
	g.mu.Lock()
	if g.isRunning {
		g.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	g.isRunning = true
	interval := g.interval
	g.mu.Unlock()

	g.wg.Add(1)
	go g.monitor(runCtx, interval)

	g.logger.Info().
		Int64("max_heap_mb", g.cfg.MaxHeapMB).
		Int("max_goroutines", g.cfg.MaxGoroutines).
		Dur("check_interval", interval).
		Bool("auto_shutdown_enabled", g.cfg.EnableAutoShutdown).
		Msg("Self guard started")
}

// Stop stops monitoring and waits for the loop to exit. Calling it twice
// is a no-op.
func (g *Guard) Stop() {
	g.mu.Lock()
	if !g.isRunning {
		g.mu.Unlock()
		return
	}
	g.isRunning = false
	cancel := g.cancel
	g.mu.Unlock()

	cancel()
	g.wg.Wait()
	g.logger.Info().Msg("Self guard stopped")
}

// IsRunning reports whether the monitor loop is active.
func (g *Guard) IsRunning() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.isRunning
}

func (g *Guard) monitor(ctx context.Context, interval time.Duration) {
	defer g.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.Check(ctx)
		}
	}
}

// Check evaluates the current usage once. It returns the reason when a
// limit is exceeded, otherwise an empty string.
func (g *Guard) Check(ctx context.Context) string {
	g.mu.RLock()
	usageFn := g.usage
	g.mu.RUnlock()

	usage := usageFn(ctx)
	g.logWarnings(usage)

	reason := g.exceededReason(usage)
	if reason == "" {
		g.logger.Debug().
			Int64("heap_mb", usage.HeapMB).
			Int64("sys_mb", usage.SysMB).
			Int64("rss_mb", usage.RSSMB).
			Int("goroutines", usage.Goroutines).
			Int64("gc_count", usage.GCCount).
			Msg("Current resource usage")
		return ""
	}

	g.logger.Error().
		Str("reason", reason).
		Int64("heap_mb", usage.HeapMB).
		Int("goroutines", usage.Goroutines).
		Msg("Resource limit exceeded")

	if g.cfg.EnableAutoShutdown {
		g.triggerShutdown()
	}
	return reason
}

func (g *Guard) logWarnings(usage Usage) {
	if usage.HeapMB > g.heapWarningMB && usage.HeapMB <= g.cfg.MaxHeapMB {
		g.logger.Warn().
			Int64("current_mb", usage.HeapMB).
			Int64("threshold_mb", g.heapWarningMB).
			Int64("limit_mb", g.cfg.MaxHeapMB).
			Msg("Heap usage approaching limit")
	}
	if usage.Goroutines > g.goroutineWarning && usage.Goroutines <= g.cfg.MaxGoroutines {
		g.logger.Warn().
			Int("current", usage.Goroutines).
			Int("warning_threshold", g.goroutineWarning).
			Int("limit", g.cfg.MaxGoroutines).
			Msg("Goroutine count approaching limit")
	}
}

func (g *Guard) exceededReason(usage Usage) string {
	if usage.HeapMB > g.cfg.MaxHeapMB {
		return fmt.Sprintf("heap limit exceeded: current %dMB > limit %dMB", usage.HeapMB, g.cfg.MaxHeapMB)
	}
	if usage.Goroutines > g.cfg.MaxGoroutines {
		return fmt.Sprintf("goroutine limit exceeded: current %d > limit %d", usage.Goroutines, g.cfg.MaxGoroutines)
	}
	return ""
}

// triggerShutdown calls the shutdown callback at most once.
func (g *Guard) triggerShutdown() {
	g.mu.Lock()
	callback := g.shutdownCallback
	fired := g.shutdownFired
	g.shutdownFired = true
	g.mu.Unlock()

	if fired {
		return
	}
	if callback == nil {
		g.logger.Warn().Msg("No shutdown callback set, cannot trigger graceful shutdown")
		return
	}
	g.logger.Info().Msg("Calling shutdown callback due to resource limits")
	callback()
}
