package config

// NotificationConfig holds alert sink settings and per-kind toggles
type NotificationConfig struct {
	DiscordWebhookURL string `json:"discord_webhook_url,omitempty" yaml:"discord_webhook_url,omitempty" validate:"omitempty,url"`
	TelegramBotToken  string `json:"telegram_bot_token,omitempty" yaml:"telegram_bot_token,omitempty"`
	TelegramChatID    int64  `json:"telegram_chat_id,omitempty" yaml:"telegram_chat_id,omitempty" validate:"required_with=TelegramBotToken"`
	TimeoutSecs       int    `json:"timeout_secs,omitempty" yaml:"timeout_secs,omitempty" validate:"omitempty,min=1"`

	LowStorageEnabled bool `json:"low_storage_enabled" yaml:"low_storage_enabled"`
	HighCPUEnabled    bool `json:"high_cpu_enabled" yaml:"high_cpu_enabled"`
	UpdatesEnabled    bool `json:"updates_enabled" yaml:"updates_enabled"`
}

// NewDefaultNotificationConfig creates default notification configuration
func NewDefaultNotificationConfig() NotificationConfig {
	return NotificationConfig{
		TimeoutSecs:       DefaultNotificationTimeoutSecs,
		LowStorageEnabled: true,
		HighCPUEnabled:    true,
		UpdatesEnabled:    true,
	}
}
