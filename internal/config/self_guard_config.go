package config

// SelfGuardConfig bounds the agent's own memory and goroutine footprint
type SelfGuardConfig struct {
	Enabled            bool    `json:"enabled" yaml:"enabled"`
	MaxHeapMB          int64   `json:"max_heap_mb,omitempty" yaml:"max_heap_mb,omitempty" validate:"omitempty,min=16"`
	MaxGoroutines      int     `json:"max_goroutines,omitempty" yaml:"max_goroutines,omitempty" validate:"omitempty,min=50"`
	CheckIntervalSecs  int     `json:"check_interval_secs,omitempty" yaml:"check_interval_secs,omitempty" validate:"omitempty,min=1"`
	WarningFraction    float64 `json:"warning_fraction,omitempty" yaml:"warning_fraction,omitempty" validate:"omitempty,min=0.1,max=1.0"`
	EnableAutoShutdown bool    `json:"enable_auto_shutdown" yaml:"enable_auto_shutdown"`
}

// NewDefaultSelfGuardConfig creates default self guard configuration
func NewDefaultSelfGuardConfig() SelfGuardConfig {
	return SelfGuardConfig{
		Enabled:            true,
		MaxHeapMB:          DefaultSelfGuardMaxHeapMB,
		MaxGoroutines:      DefaultSelfGuardMaxGoroutines,
		CheckIntervalSecs:  DefaultSelfGuardCheckIntervalSecs,
		WarningFraction:    DefaultSelfGuardWarningFraction,
		EnableAutoShutdown: false,
	}
}
