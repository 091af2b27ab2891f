package provider

import (
	"context"
	"math"

	"github.com/aleister1102/hostpulse/internal/cmdexec"
	"github.com/aleister1102/hostpulse/internal/common/errors"
	"github.com/aleister1102/hostpulse/internal/counter"
	"github.com/aleister1102/hostpulse/internal/models"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

const (
	// ticksPerSecond converts gopsutil's float seconds into integer ticks
	ticksPerSecond = 100
	bytesPerGB     = 1024 * 1024 * 1024
)

// pseudoFilesystems are skipped when listing drives
var pseudoFilesystems = map[string]struct{}{
	"squashfs": {}, "tmpfs": {}, "devtmpfs": {}, "overlay": {}, "proc": {}, "sysfs": {},
}

// SystemProvider reads metrics through gopsutil and nvidia-smi
type SystemProvider struct {
	runner cmdexec.Runner
	logger zerolog.Logger
}

// NewSystemProvider creates the host provider
func NewSystemProvider(runner cmdexec.Runner, logger zerolog.Logger) *SystemProvider {
	if runner == nil {
		runner = cmdexec.NewRunner()
	}
	return &SystemProvider{
		runner: runner,
		logger: logger.With().Str("component", "SystemProvider").Logger(),
	}
}

// CPUTimes sums every CPU state into total ticks; idle ticks count the idle state only
func (p *SystemProvider) CPUTimes(ctx context.Context) (counter.CPUSnapshot, error) {
	times, err := cpu.TimesWithContext(ctx, false)
	if err != nil {
		return counter.CPUSnapshot{}, errors.NewSourceError("cpu", err)
	}
	if len(times) == 0 {
		return counter.CPUSnapshot{}, errors.NewSourceError("cpu", errors.ErrNotFound)
	}
	return snapshotFromTimes(times[0]), nil
}

func snapshotFromTimes(t cpu.TimesStat) counter.CPUSnapshot {
	// Guest time is already part of User on Linux
	total := t.User + t.System + t.Idle + t.Nice + t.Iowait + t.Irq + t.Softirq + t.Steal
	return counter.CPUSnapshot{
		IdleTicks:  toTicks(t.Idle),
		TotalTicks: toTicks(total),
	}
}

func toTicks(seconds float64) uint64 {
	if seconds <= 0 {
		return 0
	}
	return uint64(math.Round(seconds * ticksPerSecond))
}

// Memory returns total and available physical memory
func (p *SystemProvider) Memory(ctx context.Context) (models.MemoryStat, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return models.MemoryStat{}, errors.NewSourceError("memory", err)
	}
	return models.MemoryStat{TotalBytes: vm.Total, AvailableBytes: vm.Available}, nil
}

// Processes lists running processes with resident memory in KB. Processes
// that vanish or deny access mid-enumeration are skipped.
func (p *SystemProvider) Processes(ctx context.Context) ([]models.RawProcess, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, errors.NewSourceError("processes", err)
	}

	out := make([]models.RawProcess, 0, len(procs))
	for _, proc := range procs {
		if ctx.Err() != nil {
			return nil, errors.NewSourceError("processes", ctx.Err())
		}
		name, err := proc.NameWithContext(ctx)
		if err != nil || name == "" {
			continue
		}
		memInfo, err := proc.MemoryInfoWithContext(ctx)
		if err != nil || memInfo == nil {
			continue
		}
		out = append(out, models.RawProcess{Name: name, MemoryKB: memInfo.RSS / 1024})
	}
	return out, nil
}

// Storage lists physical volumes with usage in GB
func (p *SystemProvider) Storage(ctx context.Context) ([]models.Drive, error) {
	parts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, errors.NewSourceError("storage", err)
	}

	seen := make(map[string]struct{}, len(parts))
	drives := make([]models.Drive, 0, len(parts))
	for _, part := range parts {
		if _, pseudo := pseudoFilesystems[part.Fstype]; pseudo {
			continue
		}
		if _, dup := seen[part.Mountpoint]; dup {
			continue
		}
		usage, err := disk.UsageWithContext(ctx, part.Mountpoint)
		if err != nil || usage.Total == 0 {
			p.logger.Debug().Err(err).Str("mountpoint", part.Mountpoint).Msg("Skipping unreadable volume")
			continue
		}
		seen[part.Mountpoint] = struct{}{}
		drives = append(drives, driveFromUsage(part.Device, part.Mountpoint, usage.Total, usage.Used, usage.Free))
	}
	return drives, nil
}

func driveFromUsage(device, mountpoint string, total, used, free uint64) models.Drive {
	return models.Drive{
		Name:        device,
		Mountpoint:  mountpoint,
		TotalGB:     counter.Round1(float64(total) / bytesPerGB),
		UsedGB:      counter.Round1(float64(used) / bytesPerGB),
		FreeGB:      counter.Round1(float64(free) / bytesPerGB),
		UsedPercent: counter.Round1(counter.Percent(float64(used), float64(total))),
	}
}

// NetCounters sums byte counters over all interfaces
func (p *SystemProvider) NetCounters(ctx context.Context) (models.NetCounters, error) {
	stats, err := psnet.IOCountersWithContext(ctx, false)
	if err != nil {
		return models.NetCounters{}, errors.NewSourceError("network", err)
	}
	var total models.NetCounters
	for _, s := range stats {
		total.BytesRecv += s.BytesRecv
		total.BytesSent += s.BytesSent
	}
	return total, nil
}
