package main

import (
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/smart-sustain/sustain-cli/internal/scoring"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize [VALUE]",
	Short: "Normalize a raw value or a series onto a score scale",
	Long: "With VALUE, maps it from [--min, --max] onto 0-100 (inverted with --reverse). " +
		"With --series, maps the series from its own range onto [--low, --high]. " +
		"A degenerate range yields the midpoint.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		if cmd.Flags().Changed("series") {
			series, _ := cmd.Flags().GetFloat64Slice("series")
			low, _ := cmd.Flags().GetFloat64("low")
			high, _ := cmd.Flags().GetFloat64("high")
			for _, v := range scoring.NormalizeSeries(series, low, high) {
				_, _ = fmt.Fprintln(out, formatFloat(v))
			}
			return nil
		}

		if len(args) != 1 {
			return eris.New("normalize: VALUE is required unless --series is given")
		}
		if !cmd.Flags().Changed("min") || !cmd.Flags().Changed("max") {
			return eris.New("normalize: --min and --max are required with VALUE")
		}
		value, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return eris.Wrapf(err, "normalize: invalid value %q", args[0])
		}
		minValue, _ := cmd.Flags().GetFloat64("min")
		maxValue, _ := cmd.Flags().GetFloat64("max")
		reverse, _ := cmd.Flags().GetBool("reverse")
		clamp, _ := cmd.Flags().GetBool("clamp")

		score := scoring.Normalize(value, minValue, maxValue, reverse)
		if clamp {
			score = scoring.ClampScore(score)
		}
		_, _ = fmt.Fprintln(out, formatFloat(score))
		return nil
	},
}

func init() {
	normalizeCmd.Flags().Float64("min", 0, "lower bound of the raw range")
	normalizeCmd.Flags().Float64("max", 0, "upper bound of the raw range")
	normalizeCmd.Flags().Bool("reverse", false, "lower raw values are better")
	normalizeCmd.Flags().Bool("clamp", false, "clamp the score to [0, 100]")
	normalizeCmd.Flags().Float64Slice("series", nil, "comma-separated values normalized against their own range")
	normalizeCmd.Flags().Float64("low", 0, "lower bound of the series output range")
	normalizeCmd.Flags().Float64("high", 100, "upper bound of the series output range")
	rootCmd.AddCommand(normalizeCmd)
}
