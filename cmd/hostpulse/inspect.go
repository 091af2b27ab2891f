package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/aleister1102/hostpulse/internal/models"
	"github.com/aleister1102/hostpulse/internal/sampler"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// cpuSettleDelay separates the two CPU reads a one-shot snapshot needs
const cpuSettleDelay = 500 * time.Millisecond

func newSnapshotCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Sample the host once and print the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app) error {
				if err := collectOnce(ctx, a); err != nil {
					a.logger.Warn().Err(err).Msg("Some readings are unavailable")
				}
				printSnapshot(cmd.OutOrStdout(), a.engine.Latest())
				return nil
			})
		},
	}
}

func newAppsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "apps",
		Short: "List the applications using the most memory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app) error {
				if err := a.engine.RunOnce(ctx, sampler.TaskCensus, sampler.TaskProfile); err != nil {
					return err
				}
				printApps(cmd.OutOrStdout(), a.engine.GetAppActivity())
				return nil
			})
		},
	}
}

func withApp(parent context.Context, opts *rootOptions, fn func(ctx context.Context, a *app) error) error {
	gCfg, appLogger, err := opts.load()
	if err != nil {
		return err
	}
	if parent == nil {
		parent = context.Background()
	}
	a, err := newApp(parent, gCfg, appLogger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(parent, a)
}

// collectOnce runs every reading task. CPU needs a second read after a delay
// because the first one only primes the counter.
func collectOnce(ctx context.Context, a *app) error {
	if err := a.engine.RunOnce(ctx, sampler.TaskUtilization, sampler.TaskNetwork); err != nil {
		a.logger.Debug().Err(err).Msg("Priming read failed")
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(cpuSettleDelay):
	}
	return a.engine.RunOnce(ctx,
		sampler.TaskUtilization,
		sampler.TaskNetwork,
		sampler.TaskCensus,
		sampler.TaskStorage,
		sampler.TaskProfile,
	)
}

func printSnapshot(w io.Writer, s models.Snapshot) {
	fmt.Fprintf(w, "CPU      %5.1f%%\n", s.Utilization.CPU)
	fmt.Fprintf(w, "RAM      %5.1f%%\n", s.Utilization.RAM)
	fmt.Fprintf(w, "GPU      %5.1f%%\n", s.Utilization.GPU)
	fmt.Fprintf(w, "Network  %.2f Mbps down, %.2f Mbps up\n", s.Network.DownloadMbps, s.Network.UploadMbps)
	fmt.Fprintf(w, "Profile  %s (%s)\n", s.Profile.Active(), s.Profile.Mode)

	if len(s.Storage) > 0 {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "MOUNT\tFREE\tTOTAL\tUSED")
		for _, d := range s.Storage {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%.1f%%\n", d.Mountpoint, gibString(d.FreeGB), gibString(d.TotalGB), d.UsedPercent)
		}
		_ = tw.Flush()
	}

	if len(s.Activity) > 0 {
		fmt.Fprintln(w)
		printApps(w, s.Activity)
	}
}

func printApps(w io.Writer, apps []models.AppActivity) {
	if len(apps) == 0 {
		fmt.Fprintln(w, "No active applications")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "APP\tCATEGORY\tMEMORY\tINSTANCES")
	for _, app := range apps {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", app.Name, app.Category, humanize.IBytes(uint64(app.MemoryMB*(1<<20))), app.Instances)
	}
	_ = tw.Flush()
}

func gibString(gb float64) string {
	if gb <= 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(gb * (1 << 30)))
}
