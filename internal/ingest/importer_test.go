package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/smart-sustain/sustain-cli/internal/model"
	"github.com/smart-sustain/sustain-cli/internal/observability"
)

type memWriter struct {
	batches [][]model.Reading
	err     error
}

func (m *memWriter) InsertReadings(_ context.Context, readings []model.Reading) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.batches = append(m.batches, readings)
	return len(readings), nil
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func createTestXLSX(t *testing.T, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Readings")
	require.NoError(t, err)
	for _, rowData := range rows {
		row := sheet.AddRow()
		for _, cellData := range rowData {
			row.AddCell().SetString(cellData)
		}
	}
	path := filepath.Join(t.TempDir(), "readings.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestImport_CSVAndXLSX(t *testing.T) {
	csvPath := writeFile(t, "env.csv", "domain,metric,value,observed_at\nenvironment,aqi,180,2026-03-01\nenvironment,green_cover_pct,30,2026-03-01\n")
	xlsxPath := createTestXLSX(t, [][]string{
		{"domain", "metric", "value"},
		{"health", "life_expectancy", "72"},
	})

	w := &memWriter{}
	metrics := observability.NewMetricsForTesting()
	im := NewImporter(w, clockwork.NewFakeClockAt(importTime), metrics)

	res, err := im.Import(context.Background(), []string{csvPath, xlsxPath}, "")
	require.NoError(t, err)
	require.Len(t, res, 2)

	assert.Equal(t, 2, res[0].Readings)
	assert.Equal(t, map[string]int{"environment": 2}, res[0].ByDomain)
	assert.Equal(t, 1, res[1].Readings)

	require.Len(t, w.batches, 2)
	assert.Equal(t, "env.csv", w.batches[0][0].Source)
	assert.Equal(t, "readings.xlsx", w.batches[1][0].Source)
	assert.Equal(t, importTime, w.batches[1][0].ObservedAt)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.ReadingsImported.WithLabelValues("environment")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ReadingsImported.WithLabelValues("health")))
}

func TestImport_InvalidFileWritesNothing(t *testing.T) {
	good := writeFile(t, "good.csv", "domain,metric,value\nhealth,life_expectancy,72\n")
	bad := writeFile(t, "bad.csv", "domain,metric,value\nhealth,life_expectancy,abc\n")

	w := &memWriter{}
	im := NewImporter(w, clockwork.NewFakeClockAt(importTime), nil)

	_, err := im.Import(context.Background(), []string{good, bad}, "manual")
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, 2, verr.Rows[0].Line)
	assert.Empty(t, w.batches)
}

func TestImport_UnsupportedExtension(t *testing.T) {
	path := writeFile(t, "readings.json", "[]")
	im := NewImporter(&memWriter{}, nil, nil)

	_, err := im.Import(context.Background(), []string{path}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
}

func TestImport_MissingFile(t *testing.T) {
	im := NewImporter(&memWriter{}, nil, nil)
	_, err := im.Import(context.Background(), []string{filepath.Join(t.TempDir(), "nope.csv")}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv: open file")
}

func TestImport_WriteError(t *testing.T) {
	path := writeFile(t, "good.csv", "domain,metric,value\nhealth,life_expectancy,72\n")
	im := NewImporter(&memWriter{err: errors.New("disk full")}, nil, nil)

	_, err := im.Import(context.Background(), []string{path}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingest: write")
}

func TestReadXLSX_SheetSelection(t *testing.T) {
	path := createTestXLSX(t, [][]string{{"domain"}, {"health"}})

	rows, err := ReadXLSX(path, XLSXOptions{SheetName: "Readings"})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	_, err = ReadXLSX(path, XLSXOptions{SheetName: "Missing"})
	assert.Error(t, err)

	_, err = ReadXLSX(path, XLSXOptions{SheetIndex: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}
