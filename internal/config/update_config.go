package config

import "time"

// UpdateConfig controls the release manifest check. An empty ManifestURL disables it.
type UpdateConfig struct {
	ManifestURL       string `json:"manifest_url,omitempty" yaml:"manifest_url,omitempty" validate:"omitempty,url"`
	CheckIntervalMins int    `json:"check_interval_mins,omitempty" yaml:"check_interval_mins,omitempty" validate:"omitempty,min=1"`
	TimeoutSecs       int    `json:"timeout_secs,omitempty" yaml:"timeout_secs,omitempty" validate:"omitempty,min=1"`
}

// NewDefaultUpdateConfig creates default update configuration
func NewDefaultUpdateConfig() UpdateConfig {
	return UpdateConfig{
		CheckIntervalMins: DefaultUpdateCheckIntervalMins,
		TimeoutSecs:       DefaultUpdateTimeoutSecs,
	}
}

func (c UpdateConfig) CheckInterval() time.Duration {
	if c.CheckIntervalMins <= 0 {
		return DefaultUpdateCheckIntervalMins * time.Minute
	}
	return time.Duration(c.CheckIntervalMins) * time.Minute
}
