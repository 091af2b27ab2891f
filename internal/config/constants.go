package config

const (
	// ConfigPathEnv overrides the config file lookup
	ConfigPathEnv = "HOSTPULSE_CONFIG_PATH"

	appConfigDirName = "hostpulse"

	// Sampler Defaults
	DefaultUtilizationIntervalSecs = 1
	DefaultNetworkIntervalSecs     = 1
	DefaultCensusIntervalSecs      = 10
	DefaultProfileIntervalSecs     = 5
	DefaultQueryTimeoutSecs        = 5
	DefaultHistoryCapacity         = 60
	DefaultTopN                    = 10
	DefaultSmoothingAge            = 10.0

	// Census Defaults
	DefaultNoiseFloorKB = 10000

	// Profile Defaults
	DefaultBrowsingThreshold = 2
	DefaultProfileMode       = "auto"
	DefaultManualProfile     = "balanced"

	// Alert Defaults
	DefaultLowStorageGB          = 15.0
	DefaultHighCPUPercent        = 90.0
	DefaultHighCPUSustainSamples = 5
	DefaultHighCPUCooldownMins   = 20

	// Notification Defaults
	DefaultNotificationTimeoutSecs = 10

	// Storage Defaults
	DefaultSQLiteDBPath            = "data/hostpulse.db"
	DefaultStorageParquetBasePath  = "data"
	DefaultStorageCompressionCodec = "zstd"
	DefaultExportIntervalSecs      = 300

	// Update Defaults
	DefaultUpdateCheckIntervalMins = 360
	DefaultUpdateTimeoutSecs       = 10

	// API Defaults
	DefaultAPIListenAddress       = "127.0.0.1:8787"
	DefaultAPIReadTimeoutSecs     = 10
	DefaultAPIShutdownTimeoutSecs = 5

	// Self Guard Defaults
	DefaultSelfGuardMaxHeapMB         = 256
	DefaultSelfGuardMaxGoroutines     = 1000
	DefaultSelfGuardCheckIntervalSecs = 30
	DefaultSelfGuardWarningFraction   = 0.8
)

// Profile names accepted by profile_config and the mode command
var ProfileNames = []string{"gaming", "creative", "browsing", "balanced"}

// Default category tokens, matched by substring against process keys
var (
	DefaultGamingTokens = []string{
		"steam", "epicgameslauncher", "origin", "battle.net", "discord",
		"valorant", "riotclient", "leagueclient", "cs2", "fortniteclient", "minecraft",
	}
	DefaultCreativeTokens = []string{
		"photoshop", "illustrator", "premiere", "aftereffects", "blender", "resolve", "lightroom",
	}
	DefaultBrowserTokens = []string{
		"chrome", "firefox", "msedge", "brave", "opera",
	}
)
