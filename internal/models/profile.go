package models

// UsageProfile is the coarse workload classification used to pick a preset
type UsageProfile string

const (
	ProfileGaming   UsageProfile = "gaming"
	ProfileCreative UsageProfile = "creative"
	ProfileBrowsing UsageProfile = "browsing"
	ProfileBalanced UsageProfile = "balanced"
)

// ParseUsageProfile accepts the lowercase profile names
func ParseUsageProfile(s string) (UsageProfile, bool) {
	switch p := UsageProfile(s); p {
	case ProfileGaming, ProfileCreative, ProfileBrowsing, ProfileBalanced:
		return p, true
	default:
		return "", false
	}
}

// ProfileMode says whether the profile is detected or chosen by the user
type ProfileMode string

const (
	ModeAuto   ProfileMode = "auto"
	ModeManual ProfileMode = "manual"
)

// ParseProfileMode accepts "auto" and "manual"
func ParseProfileMode(s string) (ProfileMode, bool) {
	switch m := ProfileMode(s); m {
	case ModeAuto, ModeManual:
		return m, true
	default:
		return "", false
	}
}

// ProfileState is what the presentation layer shows for the current profile.
// Detected is nil in manual mode, Manual is nil in auto mode.
type ProfileState struct {
	Mode     ProfileMode   `json:"mode"`
	Detected *UsageProfile `json:"detected,omitempty"`
	Manual   *UsageProfile `json:"manual,omitempty"`
}

// Active returns the profile that is in effect
func (s ProfileState) Active() UsageProfile {
	if s.Mode == ModeManual && s.Manual != nil {
		return *s.Manual
	}
	if s.Detected != nil {
		return *s.Detected
	}
	return ProfileBalanced
}
