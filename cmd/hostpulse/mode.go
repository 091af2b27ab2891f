package main

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/aleister1102/hostpulse/internal/models"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newModeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mode [auto | manual <profile>]",
		Short: "Show or change the usage profile mode",
		Long: `Without arguments, print the saved mode. "auto" detects the profile
from running applications; "manual" pins one of gaming, creative,
browsing or balanced.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app) error {
				if len(args) > 0 {
					mode, ok := models.ParseProfileMode(args[0])
					if !ok {
						return fmt.Errorf("unknown mode %q, expected auto or manual", args[0])
					}
					var manual models.UsageProfile
					if len(args) == 2 {
						p, ok := models.ParseUsageProfile(args[1])
						if !ok {
							return fmt.Errorf("unknown profile %q", args[1])
						}
						manual = p
					}
					if err := a.engine.SetMode(ctx, mode, manual); err != nil {
						return err
					}
				}
				state := a.engine.GetCurrentProfile()
				fmt.Fprintf(cmd.OutOrStdout(), "mode: %s\n", state.Mode)
				if state.Manual != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "profile: %s\n", *state.Manual)
				}
				return nil
			})
		},
	}
	return cmd
}

func newNotificationsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "notifications [<kind> <on|off>]",
		Short: "Show or change the notification toggles",
		Args:  toggleArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app) error {
				if len(args) == 2 {
					kind, ok := models.ParseAlertKind(args[0])
					if !ok {
						return fmt.Errorf("unknown notification kind %q", args[0])
					}
					enabled, err := parseSwitch(args[1])
					if err != nil {
						return err
					}
					if err := a.engine.SetNotificationToggle(ctx, kind, enabled); err != nil {
						return err
					}
				}
				toggles, err := a.engine.NotificationToggles()
				if err != nil {
					return err
				}
				for _, kind := range models.AlertKinds {
					state := "off"
					if toggles[kind] {
						state = "on"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%-12s %s\n", kind, state)
				}
				return nil
			})
		},
	}
}

func toggleArgs(cmd *cobra.Command, args []string) error {
	if len(args) != 0 && len(args) != 2 {
		return fmt.Errorf("expected a kind and on or off")
	}
	return nil
}

func parseSwitch(s string) (bool, error) {
	switch s {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("expected on or off, got %q", s)
	}
	return v, nil
}

func newAlertsCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List recently raised alerts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app) error {
				entries, err := a.store.RecentAlerts(ctx, limit)
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No alerts recorded")
					return nil
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "WHEN\tKIND\tTITLE")
				for _, e := range entries {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", humanize.Time(e.RaisedAt), e.Kind, e.Title)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of alerts to show")
	return cmd
}
