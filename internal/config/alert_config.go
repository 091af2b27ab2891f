package config

import "time"

// AlertConfig holds alert rule thresholds
type AlertConfig struct {
	LowStorageGB          float64 `json:"low_storage_gb,omitempty" yaml:"low_storage_gb,omitempty" validate:"omitempty,min=0"`
	HighCPUPercent        float64 `json:"high_cpu_percent,omitempty" yaml:"high_cpu_percent,omitempty" validate:"omitempty,min=1,max=100"`
	HighCPUSustainSamples int     `json:"high_cpu_sustain_samples,omitempty" yaml:"high_cpu_sustain_samples,omitempty" validate:"omitempty,min=1"`
	HighCPUCooldownMins   int     `json:"high_cpu_cooldown_mins,omitempty" yaml:"high_cpu_cooldown_mins,omitempty" validate:"omitempty,min=1"`
	// PrimaryMountpoint picks the drive checked for low storage; empty means the system drive
	PrimaryMountpoint string `json:"primary_mountpoint,omitempty" yaml:"primary_mountpoint,omitempty"`
}

// NewDefaultAlertConfig creates default alert configuration
func NewDefaultAlertConfig() AlertConfig {
	return AlertConfig{
		LowStorageGB:          DefaultLowStorageGB,
		HighCPUPercent:        DefaultHighCPUPercent,
		HighCPUSustainSamples: DefaultHighCPUSustainSamples,
		HighCPUCooldownMins:   DefaultHighCPUCooldownMins,
	}
}

func (c AlertConfig) HighCPUCooldown() time.Duration {
	return time.Duration(c.HighCPUCooldownMins) * time.Minute
}
