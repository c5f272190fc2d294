package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/orbital-guard/core"
	"github.com/signalsfoundry/orbital-guard/internal/catalog"
	"github.com/signalsfoundry/orbital-guard/internal/config"
	"github.com/signalsfoundry/orbital-guard/internal/logging"
	"github.com/signalsfoundry/orbital-guard/internal/nbi"
	"github.com/signalsfoundry/orbital-guard/kb"
	"github.com/signalsfoundry/orbital-guard/model"
)

func newEvaluateCmd(c *cli) *cobra.Command {
	var focus, at string
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate the hazards to one object once and print them as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := c.load()
			if err != nil {
				return err
			}
			req := nbi.PredictRequest{TargetName: focus}
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("--time: %w", err)
				}
				req.Time = &t
			}
			return evaluate(cmd.Context(), cfg, log, cmd.OutOrStdout(), req)
		},
	}
	cmd.Flags().StringVar(&focus, "focus", "", "Key or name of the object to evaluate (required)")
	cmd.Flags().StringVar(&at, "time", "", "RFC 3339 evaluation time (default: now)")
	_ = cmd.MarkFlagRequired("focus")
	return cmd
}

type evaluation struct {
	Target  string               `json:"target"`
	Time    time.Time            `json:"time"`
	Hazards []model.HazardRecord `json:"hazards"`
	Summary model.HazardSummary  `json:"summary"`
}

// evaluate runs a single prediction, remotely when configured.
func evaluate(ctx context.Context, cfg config.Config, log logging.Logger, out io.Writer, req nbi.PredictRequest) error {
	if req.Time == nil {
		now := time.Now().UTC()
		req.Time = &now
	}

	var predictor interface {
		Predict(context.Context, nbi.PredictRequest) ([]model.HazardRecord, error)
	}
	if cfg.Remote.Enabled {
		client, err := nbi.Dial(cfg.Remote.Target, nbi.WithClientTimeout(cfg.Remote.Timeout), nbi.WithClientLogger(log))
		if err != nil {
			return err
		}
		defer client.Close()
		predictor = client
	} else {
		cat := kb.NewCatalog()
		cat.Replace(catalog.LoadOrEmpty(ctx, newCatalogSource(cfg.Catalog, log), log, nil))
		predictor = nbi.NewHazardService(cat, core.NewEvaluator(cfg.Hazard.Thresholds()), nil, log)
	}

	hazards, err := predictor.Predict(ctx, req)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(evaluation{
		Target:  req.TargetName,
		Time:    *req.Time,
		Hazards: hazards,
		Summary: model.Summarize(hazards),
	})
}
