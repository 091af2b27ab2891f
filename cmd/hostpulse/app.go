package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aleister1102/hostpulse/internal/alerts"
	"github.com/aleister1102/hostpulse/internal/census"
	"github.com/aleister1102/hostpulse/internal/cmdexec"
	"github.com/aleister1102/hostpulse/internal/config"
	"github.com/aleister1102/hostpulse/internal/datastore"
	"github.com/aleister1102/hostpulse/internal/models"
	"github.com/aleister1102/hostpulse/internal/notifier"
	"github.com/aleister1102/hostpulse/internal/notifier/discord"
	"github.com/aleister1102/hostpulse/internal/notifier/telegram"
	"github.com/aleister1102/hostpulse/internal/profile"
	"github.com/aleister1102/hostpulse/internal/provider"
	"github.com/aleister1102/hostpulse/internal/sampler"
	"github.com/aleister1102/hostpulse/internal/updater"
	"github.com/rs/zerolog"
)

// app holds the long-lived components built from the configuration
type app struct {
	cfg     *config.GlobalConfig
	logger  zerolog.Logger
	store   *datastore.PreferenceStore
	engine  *sampler.Engine
	alerts  *alerts.Manager
	updater *updater.Checker
}

// newApp builds every component. The caller must Close it.
func newApp(ctx context.Context, gCfg *config.GlobalConfig, appLogger zerolog.Logger) (*app, error) {
	store, err := datastore.NewPreferenceStore(gCfg.StorageConfig.SQLiteDBPath, appLogger)
	if err != nil {
		return nil, fmt.Errorf("could not open preference store: %w", err)
	}
	a := &app{cfg: gCfg, logger: appLogger, store: store}

	table := profile.NewTableFromLists(
		gCfg.ProfileConfig.GamingTokens,
		gCfg.ProfileConfig.CreativeTokens,
		gCfg.ProfileConfig.BrowserTokens,
	)
	builder := census.NewBuilder(census.Options{
		NoiseFloorKB:  gCfg.CensusConfig.NoiseFloorKB,
		Denylist:      gCfg.CensusConfig.Denylist,
		ExtraDenylist: gCfg.CensusConfig.ExtraDenylist,
		DisplayNames:  gCfg.CensusConfig.DisplayNames,
	}, table)
	detector := profile.NewDetector(table, gCfg.ProfileConfig.BrowsingThreshold)

	mode := profile.NewController(store,
		models.ProfileMode(gCfg.ProfileConfig.DefaultMode),
		models.UsageProfile(gCfg.ProfileConfig.DefaultManualProfile),
		appLogger)
	if err := mode.Load(ctx); err != nil {
		appLogger.Warn().Err(err).Msg("Could not restore profile mode, using defaults")
	}

	a.alerts = alerts.NewManager(
		alerts.NewChecker(alerts.RulesFromConfig(gCfg.AlertConfig)),
		buildDispatcher(gCfg.NotificationConfig, appLogger),
		store,
		store,
		map[models.AlertKind]bool{
			models.AlertLowStorage: gCfg.NotificationConfig.LowStorageEnabled,
			models.AlertHighCPU:    gCfg.NotificationConfig.HighCPUEnabled,
			models.AlertUpdate:     gCfg.NotificationConfig.UpdatesEnabled,
		},
		appLogger,
	)
	if err := a.alerts.LoadToggles(ctx); err != nil {
		appLogger.Warn().Err(err).Msg("Could not restore notification toggles, using defaults")
	}

	deps := sampler.Deps{
		Provider: provider.NewSystemProvider(cmdexec.NewRunner(), appLogger),
		Census:   builder,
		Detector: detector,
		Mode:     mode,
		Alerts:   a.alerts,
	}

	checker, err := updater.NewChecker(gCfg.UpdateConfig, version, appLogger)
	if err != nil {
		a.alerts.Close()
		_ = store.Close()
		return nil, fmt.Errorf("could not create update checker: %w", err)
	}
	a.updater = checker
	if checker.Enabled() {
		deps.Updater = checker
	}

	if gCfg.StorageConfig.ParquetBasePath != "" {
		exporter, err := datastore.NewSeriesExporter(gCfg.StorageConfig, appLogger)
		if err != nil {
			a.alerts.Close()
			_ = store.Close()
			return nil, fmt.Errorf("could not create history exporter: %w", err)
		}
		deps.Exporter = exporter
	}

	engine, err := sampler.NewEngine(deps, sampler.OptionsFromConfig(gCfg), appLogger)
	if err != nil {
		a.alerts.Close()
		_ = store.Close()
		return nil, fmt.Errorf("could not create sampler engine: %w", err)
	}
	a.engine = engine
	return a, nil
}

func buildDispatcher(cfg config.NotificationConfig, appLogger zerolog.Logger) *notifier.Dispatcher {
	dispatcher := notifier.NewDispatcher(appLogger)
	dispatcher.Add("log", notifier.NewLogNotifier(appLogger))

	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = config.DefaultNotificationTimeoutSecs * time.Second
	}

	if cfg.DiscordWebhookURL != "" {
		sink, err := discord.NewNotifier(cfg.DiscordWebhookURL, &http.Client{Timeout: timeout}, appLogger)
		if err != nil {
			appLogger.Error().Err(err).Msg("Discord notifications disabled")
		} else {
			dispatcher.Add("discord", sink)
		}
	}
	if cfg.TelegramBotToken != "" {
		sink, err := telegram.NewNotifierFromToken(cfg.TelegramBotToken, cfg.TelegramChatID, appLogger)
		if err != nil {
			appLogger.Error().Err(err).Msg("Telegram notifications disabled")
		} else {
			dispatcher.Add("telegram", sink)
		}
	}
	appLogger.Debug().Int("sinks", dispatcher.Len()).Msg("Notification sinks configured")
	return dispatcher
}

// Close stops the engine and closes the preference store
func (a *app) Close() {
	if a.engine != nil {
		a.engine.Stop()
	}
	if a.alerts != nil {
		a.alerts.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to close preference store")
		}
	}
}
