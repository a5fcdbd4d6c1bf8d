package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List saved dashboard snapshots, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		format, _ := cmd.Flags().GetString("format")
		if err := validFormat(format); err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		snaps, err := st.ListSnapshots(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "history")
		}
		return formatHistory(cmd.OutOrStdout(), format, snaps)
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum number of snapshots")
	historyCmd.Flags().String("format", formatTable, "output format: table, csv, json, yaml")
	rootCmd.AddCommand(historyCmd)
}
