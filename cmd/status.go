package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/smart-sustain/sustain-cli/internal/model"
	"github.com/smart-sustain/sustain-cli/internal/monitoring"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored reading counts and the latest snapshot",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		asJSON, _ := cmd.Flags().GetBool("json")

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, err := monitoring.NewCollector(st, model.Domains).Collect(ctx)
		if err != nil {
			return eris.Wrap(err, "status")
		}

		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(status)
		}
		return printStatus(cmd.OutOrStdout(), status)
	},
}

func printStatus(out io.Writer, status *monitoring.Status) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "DOMAIN\tREADINGS")
	for _, d := range model.Domains {
		_, _ = fmt.Fprintf(w, "%s\t%d\n", d, status.ReadingCounts[d])
	}
	_, _ = fmt.Fprintf(w, "TOTAL\t%d\n", status.TotalReadings)
	if err := w.Flush(); err != nil {
		return err
	}

	if snap := status.LatestSnapshot; snap != nil {
		_, _ = fmt.Fprintf(out, "\nLatest snapshot %s at %s: composite %s (weights %s)\n",
			shortID(snap.ID), snap.ComputedAt.Format("2006-01-02 15:04:05Z"),
			formatFloat(snap.Composite), shortID(snap.WeightsHash))
	} else {
		_, _ = fmt.Fprintln(out, "\nNo snapshots saved yet.")
	}
	return nil
}

func init() {
	statusCmd.Flags().Bool("json", false, "output as JSON")
	rootCmd.AddCommand(statusCmd)
}
