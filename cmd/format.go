package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/smart-sustain/sustain-cli/internal/model"
)

// Output formats accepted by --format.
const (
	formatTable = "table"
	formatCSV   = "csv"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func validFormat(f string) error {
	switch f {
	case formatTable, formatCSV, formatJSON, formatYAML:
		return nil
	default:
		return eris.Errorf("unknown format %q (want table, csv, json or yaml)", f)
	}
}

// domainRow is the printable view of one domain result.
type domainRow struct {
	Domain    string  `json:"domain" yaml:"domain"`
	Label     string  `json:"label" yaml:"label"`
	Score     float64 `json:"score" yaml:"score"`
	Available bool    `json:"available" yaml:"available"`
	Error     string  `json:"error,omitempty" yaml:"error,omitempty"`
}

// scoreReport is the printable view of a snapshot.
type scoreReport struct {
	ID          string      `json:"id" yaml:"id"`
	Composite   float64     `json:"composite" yaml:"composite"`
	WeightsHash string      `json:"weights_hash" yaml:"weights_hash"`
	ComputedAt  time.Time   `json:"computed_at" yaml:"computed_at"`
	Domains     []domainRow `json:"domains" yaml:"domains"`
}

func newScoreReport(snap *model.Snapshot) scoreReport {
	r := scoreReport{
		ID:          snap.ID,
		Composite:   snap.Composite,
		WeightsHash: snap.WeightsHash,
		ComputedAt:  snap.ComputedAt,
		Domains:     make([]domainRow, 0, len(snap.Domains)),
	}
	for _, d := range snap.Domains {
		r.Domains = append(r.Domains, domainRow{
			Domain:    d.Domain,
			Label:     d.Label,
			Score:     d.Display,
			Available: d.Available,
			Error:     d.Error,
		})
	}
	return r
}

// writeStructured encodes v as JSON or YAML.
func writeStructured(out io.Writer, format string, v any) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return eris.Errorf("format %q is not structured", format)
	}
}

// formatScore writes a single snapshot in the requested format.
func formatScore(out io.Writer, format string, snap *model.Snapshot) error {
	report := newScoreReport(snap)
	switch format {
	case formatTable:
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "DOMAIN\tSCORE\tSTATUS")
		for _, d := range report.Domains {
			_, _ = fmt.Fprintf(w, "%s\t%.1f\t%s\n", d.Label, d.Score, domainStatus(d))
		}
		_, _ = fmt.Fprintf(w, "COMPOSITE\t%.1f\t\n", report.Composite)
		return w.Flush()
	case formatCSV:
		cw := csv.NewWriter(out)
		_ = cw.Write([]string{"domain", "label", "score", "available", "error"})
		for _, d := range report.Domains {
			_ = cw.Write([]string{d.Domain, d.Label, formatFloat(d.Score), strconv.FormatBool(d.Available), d.Error})
		}
		_ = cw.Write([]string{"composite", "Composite", formatFloat(report.Composite), "true", ""})
		cw.Flush()
		return cw.Error()
	default:
		return writeStructured(out, format, report)
	}
}

// formatHistory writes a list of snapshots in the requested format.
func formatHistory(out io.Writer, format string, snaps []model.Snapshot) error {
	reports := make([]scoreReport, 0, len(snaps))
	for i := range snaps {
		reports = append(reports, newScoreReport(&snaps[i]))
	}

	switch format {
	case formatTable:
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tCOMPUTED\tCOMPOSITE\tAVAILABLE\tWEIGHTS")
		for _, r := range reports {
			available := 0
			for _, d := range r.Domains {
				if d.Available {
					available++
				}
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%.1f\t%d/%d\t%s\n",
				shortID(r.ID), r.ComputedAt.Format("2006-01-02 15:04"), r.Composite,
				available, len(r.Domains), shortID(r.WeightsHash))
		}
		return w.Flush()
	case formatCSV:
		cw := csv.NewWriter(out)
		_ = cw.Write([]string{"id", "computed_at", "composite", "weights_hash"})
		for _, r := range reports {
			_ = cw.Write([]string{r.ID, r.ComputedAt.Format(time.RFC3339), formatFloat(r.Composite), r.WeightsHash})
		}
		cw.Flush()
		return cw.Error()
	default:
		return writeStructured(out, format, reports)
	}
}

func domainStatus(d domainRow) string {
	if d.Available {
		return "ok"
	}
	return "unavailable: " + d.Error
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// openOutput returns stdout, or a created file when path is set.
func openOutput(stdout io.Writer, path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "create output %s", path)
	}
	return f, f.Close, nil
}
