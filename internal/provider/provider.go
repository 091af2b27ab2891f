// Package provider reads raw host metrics.
package provider

import (
	"context"
	"runtime"
	"strings"

	"github.com/aleister1102/hostpulse/internal/common/errors"
	"github.com/aleister1102/hostpulse/internal/counter"
	"github.com/aleister1102/hostpulse/internal/models"
)

// ErrGPUUnavailable means no supported GPU query tool is installed
var ErrGPUUnavailable = errors.NewError("gpu utilization: %w", errors.ErrUnavailable)

// Provider is the OS metrics source consumed by the sampler tasks
type Provider interface {
	CPUTimes(ctx context.Context) (counter.CPUSnapshot, error)
	Memory(ctx context.Context) (models.MemoryStat, error)
	GPUUtilization(ctx context.Context) (float64, error)
	Processes(ctx context.Context) ([]models.RawProcess, error)
	Storage(ctx context.Context) ([]models.Drive, error)
	NetCounters(ctx context.Context) (models.NetCounters, error)
}

// IsPrimaryMountpoint reports whether mountpoint is the system drive.
// An explicit override wins over the platform default.
func IsPrimaryMountpoint(mountpoint, override string) bool {
	if override != "" {
		return strings.EqualFold(strings.TrimRight(mountpoint, `\/`), strings.TrimRight(override, `\/`)) ||
			mountpoint == override
	}
	if runtime.GOOS == "windows" {
		return strings.EqualFold(strings.TrimRight(mountpoint, `\`), "C:")
	}
	return mountpoint == "/"
}

// PrimaryDrive picks the system drive from drives
func PrimaryDrive(drives []models.Drive, override string) (models.Drive, bool) {
	for _, d := range drives {
		if IsPrimaryMountpoint(d.Mountpoint, override) {
			return d, true
		}
	}
	return models.Drive{}, false
}
