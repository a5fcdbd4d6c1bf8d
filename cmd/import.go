package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/smart-sustain/sustain-cli/internal/ingest"
	"github.com/smart-sustain/sustain-cli/internal/model"
)

var importCmd = &cobra.Command{
	Use:   "import FILE...",
	Short: "Import raw metric readings from CSV or XLSX files",
	Long: "Each file needs domain, metric and value columns (observed_at is optional). " +
		"All files are validated before anything is written; one bad row rejects the import.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		source, _ := cmd.Flags().GetString("source")

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		results, err := ingest.NewImporter(st, nil, nil).Import(ctx, args, source)
		if err != nil {
			return eris.Wrap(err, "import")
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "FILE\tREADINGS\tDOMAINS")
		total := 0
		for _, res := range results {
			total += res.Readings
			_, _ = fmt.Fprintf(w, "%s\t%d\t%s\n", res.Path, res.Readings, domainCounts(res.ByDomain))
		}
		_, _ = fmt.Fprintf(w, "TOTAL\t%d\t\n", total)
		return w.Flush()
	},
}

func domainCounts(byDomain map[string]int) string {
	var out string
	for _, d := range model.Domains {
		n, ok := byDomain[d]
		if !ok {
			continue
		}
		if out != "" {
			out += " "
		}
		out += fmt.Sprintf("%s=%d", d, n)
	}
	return out
}

func init() {
	importCmd.Flags().String("source", "", "provenance tag stored with each reading (default: file name)")
	rootCmd.AddCommand(importCmd)
}
