package main

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/smart-sustain/sustain-cli/internal/monitoring"
	"github.com/smart-sustain/sustain-cli/internal/scoring"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Compute domain scores and the composite from stored readings",
	Long: "Runs one dashboard cycle: each domain is scored from its latest readings, " +
		"failed domains are shown as 0 and left out of the composite.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		format, _ := cmd.Flags().GetString("format")
		if err := validFormat(format); err != nil {
			return err
		}
		outPath, _ := cmd.Flags().GetString("output")
		save, _ := cmd.Flags().GetBool("save")
		alert, _ := cmd.Flags().GetBool("alert")
		rawWeights, _ := cmd.Flags().GetStringArray("weight")

		override, err := parseWeightOverrides(rawWeights)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		dash, err := buildDashboard(st, nil)
		if err != nil {
			return err
		}

		snap, err := dash.CollectWith(ctx, override)
		if err != nil {
			return eris.Wrap(err, "score")
		}

		if save {
			if err := st.SaveSnapshot(ctx, snap); err != nil {
				return eris.Wrap(err, "score: save snapshot")
			}
			zap.L().Info("snapshot saved", zap.String("id", snap.ID))
		}

		if alert {
			alerter := monitoring.NewAlerter(cfg.Monitoring, nil)
			alerter.SendAlerts(ctx, alerter.Evaluate(snap))
		}

		out, closeFn, err := openOutput(cmd.OutOrStdout(), outPath)
		if err != nil {
			return err
		}
		if err := formatScore(out, format, snap); err != nil {
			closeFn() //nolint:errcheck
			return eris.Wrap(err, "score: write output")
		}
		return closeFn()
	},
}

// parseWeightOverrides parses repeated domain=weight flags into a call-time
// weight table. Overrides need not sum to 1.
func parseWeightOverrides(raw []string) (scoring.Weights, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(scoring.Weights, len(raw))
	for _, kv := range raw {
		key, val, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, eris.Errorf("invalid --weight %q (want domain=weight)", kv)
		}
		w, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil || w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, eris.Errorf("invalid --weight %q: weight must be a finite number >= 0", kv)
		}
		out[key] = w
	}
	return out, nil
}

func init() {
	scoreCmd.Flags().String("format", formatTable, "output format: table, csv, json, yaml")
	scoreCmd.Flags().StringP("output", "o", "", "write output to file instead of stdout")
	scoreCmd.Flags().Bool("save", false, "persist the snapshot to the store")
	scoreCmd.Flags().Bool("alert", true, "evaluate alert thresholds after scoring")
	scoreCmd.Flags().StringArray("weight", nil, "call-time weight override, repeatable (e.g. --weight health=0.5)")
	rootCmd.AddCommand(scoreCmd)
}
