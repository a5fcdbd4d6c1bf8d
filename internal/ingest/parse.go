// Package ingest reads raw metric readings from CSV and XLSX files.
package ingest

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/smart-sustain/sustain-cli/internal/model"
)

// Column names recognized in the header row. observed_at is optional.
const (
	ColDomain     = "domain"
	ColMetric     = "metric"
	ColValue      = "value"
	ColObservedAt = "observed_at"
)

var dateLayouts = []string{time.RFC3339, "2006-01-02"}

// RowError describes one rejected row.
type RowError struct {
	Line int    `json:"line"`
	Msg  string `json:"message"`
}

func (e RowError) String() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// ValidationError lists every rejected row of a file. Nothing from the file
// is written when it is returned.
type ValidationError struct {
	File string
	Rows []RowError
}

func (e *ValidationError) Error() string {
	const maxShown = 5
	parts := make([]string, 0, maxShown)
	for i, r := range e.Rows {
		if i == maxShown {
			parts = append(parts, fmt.Sprintf("... and %d more", len(e.Rows)-maxShown))
			break
		}
		parts = append(parts, r.String())
	}
	return fmt.Sprintf("ingest: %s: %d invalid row(s): %s", e.File, len(e.Rows), strings.Join(parts, "; "))
}

type columns struct {
	domain, metric, value, observedAt int
}

func parseHeader(header []string) (columns, error) {
	cols := columns{domain: -1, metric: -1, value: -1, observedAt: -1}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case ColDomain:
			cols.domain = i
		case ColMetric:
			cols.metric = i
		case ColValue:
			cols.value = i
		case ColObservedAt:
			cols.observedAt = i
		}
	}
	var missing []string
	if cols.domain < 0 {
		missing = append(missing, ColDomain)
	}
	if cols.metric < 0 {
		missing = append(missing, ColMetric)
	}
	if cols.value < 0 {
		missing = append(missing, ColValue)
	}
	if len(missing) > 0 {
		return cols, fmt.Errorf("header missing column(s): %s", strings.Join(missing, ", "))
	}
	return cols, nil
}

// ParseRows converts tabular rows (header first) into readings. Every row is
// validated; if any row is invalid the returned error is a *ValidationError
// listing all of them and no readings are returned. Rows without an
// observed_at are stamped with now.
func ParseRows(file string, rows [][]string, source string, now time.Time) ([]model.Reading, error) {
	if len(rows) == 0 {
		return nil, &ValidationError{File: file, Rows: []RowError{{Line: 1, Msg: "file is empty"}}}
	}
	cols, err := parseHeader(rows[0])
	if err != nil {
		return nil, &ValidationError{File: file, Rows: []RowError{{Line: 1, Msg: err.Error()}}}
	}

	var (
		readings []model.Reading
		problems []RowError
	)
	for i, row := range rows[1:] {
		line := i + 2
		if blank(row) {
			continue
		}
		r, msg := parseRow(row, cols, now)
		if msg != "" {
			problems = append(problems, RowError{Line: line, Msg: msg})
			continue
		}
		r.Source = source
		readings = append(readings, r)
	}

	if len(problems) > 0 {
		return nil, &ValidationError{File: file, Rows: problems}
	}
	return readings, nil
}

func parseRow(row []string, cols columns, now time.Time) (model.Reading, string) {
	var r model.Reading

	r.Domain = NormalizeDomain(cell(row, cols.domain))
	if r.Domain == "" {
		return r, "domain is empty"
	}
	if !model.IsDomain(r.Domain) {
		return r, fmt.Sprintf("unknown domain %q", r.Domain)
	}

	r.Metric = strings.TrimSpace(cell(row, cols.metric))
	if r.Metric == "" {
		return r, "metric is empty"
	}

	raw := strings.TrimSpace(cell(row, cols.value))
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return r, fmt.Sprintf("value %q is not a finite number", raw)
	}
	r.Value = v

	r.ObservedAt = now
	if ts := strings.TrimSpace(cell(row, cols.observedAt)); ts != "" {
		t, ok := parseTime(ts)
		if !ok {
			return r, fmt.Sprintf("observed_at %q is not RFC3339 or YYYY-MM-DD", ts)
		}
		r.ObservedAt = t
	}
	return r, ""
}

// NormalizeDomain maps user spellings such as "Smart City" to domain keys.
func NormalizeDomain(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == '-' || r == '_' }), "_")
}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
