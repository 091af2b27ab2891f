package config

// CensusConfig controls which processes count as application activity
type CensusConfig struct {
	// NoiseFloorKB drops processes using at most this much memory; 0 keeps the default
	NoiseFloorKB uint64 `json:"noise_floor_kb,omitempty" yaml:"noise_floor_kb,omitempty"`
	// Denylist replaces the built-in system process set when non-empty
	Denylist      []string          `json:"denylist,omitempty" yaml:"denylist,omitempty" validate:"omitempty,dive,required"`
	ExtraDenylist []string          `json:"extra_denylist,omitempty" yaml:"extra_denylist,omitempty" validate:"omitempty,dive,required"`
	DisplayNames  map[string]string `json:"display_names,omitempty" yaml:"display_names,omitempty"`
}

// NewDefaultCensusConfig creates default census configuration
func NewDefaultCensusConfig() CensusConfig {
	return CensusConfig{
		NoiseFloorKB:  DefaultNoiseFloorKB,
		Denylist:      []string{},
		ExtraDenylist: []string{},
		DisplayNames:  map[string]string{},
	}
}
