package config

import "time"

// SamplerConfig holds task intervals and history sizing
type SamplerConfig struct {
	UtilizationIntervalSecs int     `json:"utilization_interval_secs,omitempty" yaml:"utilization_interval_secs,omitempty" validate:"omitempty,min=1"`
	NetworkIntervalSecs     int     `json:"network_interval_secs,omitempty" yaml:"network_interval_secs,omitempty" validate:"omitempty,min=1"`
	CensusIntervalSecs      int     `json:"census_interval_secs,omitempty" yaml:"census_interval_secs,omitempty" validate:"omitempty,min=1"`
	ProfileIntervalSecs     int     `json:"profile_interval_secs,omitempty" yaml:"profile_interval_secs,omitempty" validate:"omitempty,min=1"`
	QueryTimeoutSecs        int     `json:"query_timeout_secs" yaml:"query_timeout_secs" validate:"min=0"`
	HistoryCapacity         int     `json:"history_capacity,omitempty" yaml:"history_capacity,omitempty" validate:"omitempty,min=1,max=86400"`
	TopN                    int     `json:"top_n,omitempty" yaml:"top_n,omitempty" validate:"omitempty,min=1"`
	SmoothingAge            float64 `json:"smoothing_age,omitempty" yaml:"smoothing_age,omitempty" validate:"omitempty,min=1"`
}

// NewDefaultSamplerConfig creates default sampler configuration
func NewDefaultSamplerConfig() SamplerConfig {
	return SamplerConfig{
		UtilizationIntervalSecs: DefaultUtilizationIntervalSecs,
		NetworkIntervalSecs:     DefaultNetworkIntervalSecs,
		CensusIntervalSecs:      DefaultCensusIntervalSecs,
		ProfileIntervalSecs:     DefaultProfileIntervalSecs,
		QueryTimeoutSecs:        DefaultQueryTimeoutSecs,
		HistoryCapacity:         DefaultHistoryCapacity,
		TopN:                    DefaultTopN,
		SmoothingAge:            DefaultSmoothingAge,
	}
}

// QueryTimeout is zero when per-tick queries are not bounded
func (c SamplerConfig) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutSecs) * time.Second
}

func secondsOr(v, fallback int) time.Duration {
	if v <= 0 {
		v = fallback
	}
	return time.Duration(v) * time.Second
}

func (c SamplerConfig) UtilizationInterval() time.Duration {
	return secondsOr(c.UtilizationIntervalSecs, DefaultUtilizationIntervalSecs)
}

func (c SamplerConfig) NetworkInterval() time.Duration {
	return secondsOr(c.NetworkIntervalSecs, DefaultNetworkIntervalSecs)
}

func (c SamplerConfig) CensusInterval() time.Duration {
	return secondsOr(c.CensusIntervalSecs, DefaultCensusIntervalSecs)
}

func (c SamplerConfig) ProfileInterval() time.Duration {
	return secondsOr(c.ProfileIntervalSecs, DefaultProfileIntervalSecs)
}
