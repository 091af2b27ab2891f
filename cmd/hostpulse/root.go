package main

import (
	"fmt"

	"github.com/aleister1102/hostpulse/internal/config"
	"github.com/aleister1102/hostpulse/internal/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configFile string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "hostpulse",
		Short: "Host telemetry agent",
		Long: `hostpulse samples CPU, memory, GPU, network and storage usage,
keeps a short history of every series, classifies the running workload
into a usage profile and raises alerts when the host needs attention.`,
		Version:      version,
		SilenceUsage: true,
	}
	cmd.CompletionOptions.DisableDefaultCmd = true
	cmd.SetVersionTemplate(fmt.Sprintf("hostpulse version %s\n", version))

	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "Path to the YAML/JSON configuration file. If not set, searches default locations.")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")

	cmd.AddCommand(
		newRunCmd(opts),
		newSnapshotCmd(opts),
		newAppsCmd(opts),
		newModeCmd(opts),
		newNotificationsCmd(opts),
		newAlertsCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// load reads and validates the configuration and builds the logger
func (o *rootOptions) load() (*config.GlobalConfig, zerolog.Logger, error) {
	gCfg, err := config.LoadGlobalConfig(o.configFile, zerolog.Nop())
	if err != nil {
		return nil, zerolog.Logger{}, fmt.Errorf("could not load config: %w", err)
	}
	if o.logLevel != "" {
		gCfg.LogConfig.LogLevel = o.logLevel
	}
	if err := config.ValidateConfig(gCfg); err != nil {
		return nil, zerolog.Logger{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	appLogger, err := logger.NewLoggerBuilder().WithConfig(gCfg.LogConfig).WithComponent("hostpulse").Build()
	if err != nil {
		return nil, zerolog.Logger{}, fmt.Errorf("could not initialize logger: %w", err)
	}
	return gCfg, *appLogger.GetZerolog(), nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the agent version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hostpulse version %s\n", version)
		},
	}
}
