package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/orbital-guard/internal/config"
	"github.com/signalsfoundry/orbital-guard/internal/logging"
	"github.com/signalsfoundry/orbital-guard/internal/observability"
	"github.com/signalsfoundry/orbital-guard/model"
)

func newSimulateCmd(c *cli) *cobra.Command {
	var (
		focus    string
		duration time.Duration
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the clock in-process and print the focus object's hazards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := c.load()
			if err != nil {
				return err
			}
			return simulate(cmd.Context(), cfg, log, cmd.OutOrStdout(), focus, duration)
		},
	}
	cmd.Flags().StringVar(&focus, "focus", "", "Key or name of the focus object (required)")
	cmd.Flags().DurationVar(&duration, "duration", 10*time.Second, "Wall-clock duration of the run")
	cmd.Flags().Float64("scale", 1, "Simulated seconds per wall second")
	_ = cmd.MarkFlagRequired("focus")
	bindFlags(c.v, cmd.Flags().Lookup, map[string]string{"clock.scale": "scale"})
	return cmd
}

// simulate runs the session loops for duration and prints the hazard list
// after every hazard refresh.
func simulate(ctx context.Context, cfg config.Config, log logging.Logger, out io.Writer, focus string, duration time.Duration) error {
	cfg.Clock.AutoStart = true
	rt, err := buildRuntime(ctx, cfg, log, (*observability.HazardCollector)(nil))
	if err != nil {
		return err
	}
	defer rt.Close(context.Background(), log)

	obj, err := rt.session.Select(focus)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()
	if err := rt.session.Start(ctx); err != nil {
		return err
	}

	fmt.Fprintf(out, "Starting simulation: focus=%s duration=%s tick=%s scale=%g\n",
		obj.DisplayName(), duration, rt.clock.TickInterval(), rt.clock.Scale())

	ticker := time.NewTicker(cfg.Session.HazardInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "Simulation complete.")
			return nil
		case <-ticker.C:
			st, ok := rt.session.HazardState()
			if !ok || st.SimTime.IsZero() {
				continue
			}
			printHazards(out, st.SimTime, st.Hazards)
		}
	}
}

func printHazards(out io.Writer, at time.Time, hazards []model.HazardRecord) {
	sum := model.Summarize(hazards)
	fmt.Fprintf(out, "[%s] %d hazards (satellites=%d critical=%d moderate=%d)\n",
		at.Format(time.RFC3339), sum.Total, sum.Satellites, sum.Critical, sum.Moderate)
	for _, h := range hazards {
		ttc := "-"
		if h.TimeToCollision != nil {
			ttc = fmt.Sprintf("%.0fs", *h.TimeToCollision)
		}
		flag := ""
		if h.Collision {
			flag = " COLLISION"
		}
		fmt.Fprintf(out, "  %-9s %-8s %-28s %9.3f km  ttc=%s%s\n",
			h.Type, h.Severity, h.DebrisName, h.Distance, ttc, flag)
	}
}
