// Package alerts evaluates storage, CPU and update rules.
package alerts

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/aleister1102/hostpulse/internal/config"
	"github.com/aleister1102/hostpulse/internal/models"
	"github.com/aleister1102/hostpulse/internal/provider"
	"github.com/dustin/go-humanize"
)

// Rules are the thresholds the checker applies
type Rules struct {
	LowStorageGB      float64
	HighCPUPercent    float64
	HighCPUSustain    int
	HighCPUCooldown   time.Duration
	PrimaryMountpoint string
}

// RulesFromConfig converts the alert section
func RulesFromConfig(cfg config.AlertConfig) Rules {
	return Rules{
		LowStorageGB:      cfg.LowStorageGB,
		HighCPUPercent:    cfg.HighCPUPercent,
		HighCPUSustain:    cfg.HighCPUSustainSamples,
		HighCPUCooldown:   cfg.HighCPUCooldown(),
		PrimaryMountpoint: cfg.PrimaryMountpoint,
	}
}

// Checker raises each alert key at most once per session. It is safe for
// concurrent use by the sampler tasks.
type Checker struct {
	rules Rules
	now   func() time.Time

	mu          sync.Mutex
	shown       map[string]struct{}
	cpuRun      int
	lastCPUFire time.Time
}

// NewChecker creates a checker, filling unset rules with defaults
func NewChecker(rules Rules) *Checker {
	if rules.LowStorageGB <= 0 {
		rules.LowStorageGB = config.DefaultLowStorageGB
	}
	if rules.HighCPUPercent <= 0 {
		rules.HighCPUPercent = config.DefaultHighCPUPercent
	}
	if rules.HighCPUSustain < 1 {
		rules.HighCPUSustain = config.DefaultHighCPUSustainSamples
	}
	if rules.HighCPUCooldown <= 0 {
		rules.HighCPUCooldown = config.DefaultHighCPUCooldownMins * time.Minute
	}
	// cooldown windows are keyed in whole seconds
	if rules.HighCPUCooldown < time.Second {
		rules.HighCPUCooldown = time.Second
	}
	return &Checker{
		rules: rules,
		now:   time.Now,
		shown: make(map[string]struct{}),
	}
}

// markLocked records key and reports whether it is new
func (c *Checker) markLocked(key string) bool {
	if _, seen := c.shown[key]; seen {
		return false
	}
	c.shown[key] = struct{}{}
	return true
}

// CheckStorage alerts when the primary drive has little space left
func (c *Checker) CheckStorage(drives []models.Drive) (models.Alert, bool) {
	drive, ok := provider.PrimaryDrive(drives, c.rules.PrimaryMountpoint)
	if !ok || drive.FreeGB <= 0 || drive.FreeGB > c.rules.LowStorageGB {
		return models.Alert{}, false
	}

	key := fmt.Sprintf("storage-%d", int(math.Floor(drive.FreeGB)))
	c.mu.Lock()
	fresh := c.markLocked(key)
	c.mu.Unlock()
	if !fresh {
		return models.Alert{}, false
	}

	free := humanize.IBytes(uint64(drive.FreeGB * (1 << 30)))
	return models.Alert{
		Key:   key,
		Kind:  models.AlertLowStorage,
		Title: "Low storage",
		Body:  fmt.Sprintf("Only %s free on %s (%.0f%% used)", free, drive.Mountpoint, drive.UsedPercent),
		At:    c.now(),
	}, true
}

// ObserveCPU tracks sustained load. It fires once the CPU has stayed at or
// above the threshold for the configured run of samples, then waits out
// the cooldown.
func (c *Checker) ObserveCPU(pct float64) (models.Alert, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if pct < c.rules.HighCPUPercent {
		c.cpuRun = 0
		return models.Alert{}, false
	}
	c.cpuRun++
	if c.cpuRun < c.rules.HighCPUSustain {
		return models.Alert{}, false
	}

	now := c.now()
	if !c.lastCPUFire.IsZero() && now.Sub(c.lastCPUFire) < c.rules.HighCPUCooldown {
		return models.Alert{}, false
	}

	window := now.Unix() / int64(c.rules.HighCPUCooldown/time.Second)
	key := fmt.Sprintf("cpu-%d", window)
	if !c.markLocked(key) {
		return models.Alert{}, false
	}
	c.lastCPUFire = now
	c.cpuRun = 0

	return models.Alert{
		Key:   key,
		Kind:  models.AlertHighCPU,
		Title: "High CPU usage",
		Body:  fmt.Sprintf("CPU has been at %.0f%% or more for %d samples (now %.1f%%)", c.rules.HighCPUPercent, c.rules.HighCPUSustain, pct),
		At:    now,
	}, true
}

// ResetCPU clears the sustained-load run
func (c *Checker) ResetCPU() {
	c.mu.Lock()
	c.cpuRun = 0
	c.mu.Unlock()
}

// CheckUpdate alerts once per newer version
func (c *Checker) CheckUpdate(info models.UpdateInfo) (models.Alert, bool) {
	if !info.HasUpdate || info.LatestVersion == "" {
		return models.Alert{}, false
	}

	key := "update-" + info.LatestVersion
	c.mu.Lock()
	fresh := c.markLocked(key)
	c.mu.Unlock()
	if !fresh {
		return models.Alert{}, false
	}

	body := fmt.Sprintf("Version %s is available (running %s)", info.LatestVersion, info.CurrentVersion)
	for _, note := range info.ReleaseNotes {
		body += "\n- " + note
	}
	return models.Alert{
		Key:   key,
		Kind:  models.AlertUpdate,
		Title: "Update available",
		Body:  body,
		At:    c.now(),
	}, true
}
