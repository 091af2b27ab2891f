package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/aleister1102/hostpulse/internal/api"
	"github.com/aleister1102/hostpulse/internal/selfguard"
	"github.com/spf13/cobra"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the agent until interrupted",
		Long: `Start every sampling task, the HTTP API and the self guard.
The agent stops on SIGINT or SIGTERM, writing a final history export when
export_on_shutdown is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(cmd.Context(), opts)
		},
	}
}

func runAgent(parent context.Context, opts *rootOptions) error {
	gCfg, appLogger, err := opts.load()
	if err != nil {
		return err
	}
	if parent == nil {
		parent = context.Background()
	}

	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, gCfg, appLogger)
	if err != nil {
		appLogger.Error().Err(err).Msg("Startup failed")
		return err
	}
	defer a.Close()

	appLogger.Info().Str("version", version).Msg("hostpulse starting")
	a.engine.Start(ctx)

	var wg sync.WaitGroup

	if gCfg.SelfGuardConfig.Enabled {
		guard := selfguard.New(gCfg.SelfGuardConfig, appLogger)
		guard.SetShutdownCallback(func() {
			appLogger.Error().Msg("Self guard limit exceeded, shutting down")
			cancel()
		})
		guard.Start(ctx)
		defer guard.Stop()
	}

	if gCfg.APIConfig.Enabled {
		server := api.NewServer(gCfg.APIConfig, a.engine, a.store, appLogger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := server.Run(ctx); err != nil {
				appLogger.Error().Err(err).Msg("API server stopped with error")
				cancel()
			}
		}()
	}

	<-ctx.Done()
	appLogger.Info().Msg("Shutdown requested, stopping agent")
	wg.Wait()
	a.engine.Stop()
	appLogger.Info().Msg("hostpulse stopped")
	return nil
}
