package ingest

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/smart-sustain/sustain-cli/internal/model"
	"github.com/smart-sustain/sustain-cli/internal/observability"
)

// ReadingWriter persists readings.
type ReadingWriter interface {
	InsertReadings(ctx context.Context, readings []model.Reading) (int, error)
}

// FileResult summarizes one imported file.
type FileResult struct {
	Path     string         `json:"path"`
	Readings int            `json:"readings"`
	ByDomain map[string]int `json:"by_domain"`
}

// Importer parses reading files and writes them to a store.
type Importer struct {
	writer      ReadingWriter
	clock       clockwork.Clock
	metrics     *observability.Metrics
	concurrency int
}

// NewImporter creates an Importer. metrics may be nil.
func NewImporter(w ReadingWriter, clock clockwork.Clock, metrics *observability.Metrics) *Importer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Importer{writer: w, clock: clock, metrics: metrics, concurrency: 4}
}

// ParseFile reads and validates one CSV or XLSX file. source defaults to the
// file's base name.
func ParseFile(path, source string, now time.Time) ([]model.Reading, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		rows, err = ReadCSV(path)
	case ".xlsx":
		rows, err = ReadXLSX(path, XLSXOptions{})
	default:
		return nil, eris.Errorf("ingest: unsupported file type %q (want .csv or .xlsx)", filepath.Ext(path))
	}
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read %s", path)
	}
	if source == "" {
		source = filepath.Base(path)
	}
	return ParseRows(path, rows, source, now)
}

// Import parses every file concurrently, then writes them in argument order.
// If any file fails to parse or validate nothing is written.
func (im *Importer) Import(ctx context.Context, paths []string, source string) ([]FileResult, error) {
	now := im.clock.Now().UTC()
	parsed := make([][]model.Reading, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(im.concurrency)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			readings, err := ParseFile(path, source, now)
			if err != nil {
				return err
			}
			parsed[i] = readings
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]FileResult, 0, len(paths))
	for i, path := range paths {
		n, err := im.writer.InsertReadings(ctx, parsed[i])
		if err != nil {
			return results, eris.Wrapf(err, "ingest: write %s", path)
		}
		res := FileResult{Path: path, Readings: n, ByDomain: countByDomain(parsed[i])}
		im.record(res)
		zap.L().Info("ingest: file imported",
			zap.String("path", path),
			zap.Int("readings", n),
		)
		results = append(results, res)
	}
	return results, nil
}

func (im *Importer) record(res FileResult) {
	if im.metrics == nil {
		return
	}
	for domain, n := range res.ByDomain {
		im.metrics.ReadingsImported.WithLabelValues(domain).Add(float64(n))
	}
}

func countByDomain(readings []model.Reading) map[string]int {
	out := make(map[string]int)
	for _, r := range readings {
		out[r.Domain]++
	}
	return out
}
