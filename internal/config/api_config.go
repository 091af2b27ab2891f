package config

// APIConfig holds the HTTP presentation server settings
type APIConfig struct {
	Enabled             bool   `json:"enabled" yaml:"enabled"`
	ListenAddress       string `json:"listen_address,omitempty" yaml:"listen_address,omitempty" validate:"omitempty,hostname_port"`
	ReadTimeoutSecs     int    `json:"read_timeout_secs,omitempty" yaml:"read_timeout_secs,omitempty" validate:"omitempty,min=1"`
	ShutdownTimeoutSecs int    `json:"shutdown_timeout_secs,omitempty" yaml:"shutdown_timeout_secs,omitempty" validate:"omitempty,min=1"`
}

// NewDefaultAPIConfig creates default API configuration
func NewDefaultAPIConfig() APIConfig {
	return APIConfig{
		Enabled:             true,
		ListenAddress:       DefaultAPIListenAddress,
		ReadTimeoutSecs:     DefaultAPIReadTimeoutSecs,
		ShutdownTimeoutSecs: DefaultAPIShutdownTimeoutSecs,
	}
}
