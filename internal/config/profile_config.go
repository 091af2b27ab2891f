package config

// ProfileConfig holds the category token tables and mode defaults
type ProfileConfig struct {
	GamingTokens         []string `json:"gaming_tokens,omitempty" yaml:"gaming_tokens,omitempty" validate:"omitempty,dive,required"`
	CreativeTokens       []string `json:"creative_tokens,omitempty" yaml:"creative_tokens,omitempty" validate:"omitempty,dive,required"`
	BrowserTokens        []string `json:"browser_tokens,omitempty" yaml:"browser_tokens,omitempty" validate:"omitempty,dive,required"`
	BrowsingThreshold    int      `json:"browsing_threshold,omitempty" yaml:"browsing_threshold,omitempty" validate:"omitempty,min=0"`
	DefaultMode          string   `json:"default_mode,omitempty" yaml:"default_mode,omitempty" validate:"omitempty,profilemode"`
	DefaultManualProfile string   `json:"default_manual_profile,omitempty" yaml:"default_manual_profile,omitempty" validate:"omitempty,profilename"`
}

// NewDefaultProfileConfig creates default profile configuration
func NewDefaultProfileConfig() ProfileConfig {
	return ProfileConfig{
		GamingTokens:         append([]string(nil), DefaultGamingTokens...),
		CreativeTokens:       append([]string(nil), DefaultCreativeTokens...),
		BrowserTokens:        append([]string(nil), DefaultBrowserTokens...),
		BrowsingThreshold:    DefaultBrowsingThreshold,
		DefaultMode:          DefaultProfileMode,
		DefaultManualProfile: DefaultManualProfile,
	}
}
