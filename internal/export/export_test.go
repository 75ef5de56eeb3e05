package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testRows() []Row {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return []Row{
		{Address: "pos3", Owner: "OwnerBBBBBBBBBB", Pool: "main", Side: "short",
			EntryPrice: decimal.RequireFromString("3000"), SizeUsd: decimal.NewFromInt(600), CollateralUsd: decimal.NewFromInt(200),
			OpenTime: base.Add(2 * time.Hour)},
		{Address: "pos1", Owner: "OwnerAAAAAAAAAA", Pool: "main", Side: "long",
			EntryPrice: decimal.RequireFromString("150.25"), SizeUsd: decimal.NewFromInt(1000), CollateralUsd: decimal.NewFromInt(100),
			OpenTime: base},
		{Address: "pos2", Owner: "OwnerAAAAAAAAAA", Pool: "main", Side: "long",
			EntryPrice: decimal.RequireFromString("151"), SizeUsd: decimal.NewFromInt(400), CollateralUsd: decimal.NewFromInt(200),
			OpenTime: base.Add(time.Hour)},
	}
}

func newTestExporter() *Exporter {
	e := NewExporter(zap.NewNop())
	e.now = func() time.Time { return time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC) }
	return e
}

func TestExportCSV(t *testing.T) {
	dir := t.TempDir()
	path, err := newTestExporter().Export(testRows(), Options{Format: FormatCSV, OutputDir: dir})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "positions_all_20240601_083000.csv"), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 4)
	assert.Equal(t, csvHeaders, records[0])
	// сортировка по времени открытия
	assert.Equal(t, "pos1", records[1][0])
	assert.Equal(t, "10.00", records[1][7])
	assert.Equal(t, "pos3", records[3][0])
}

func TestExportJSONWithFilters(t *testing.T) {
	dir := t.TempDir()
	path, err := newTestExporter().Export(testRows(), Options{
		Format:    FormatJSON,
		Side:      "LONG",
		Owner:     "OwnerAAAAAAAAAA",
		OutputDir: dir,
	})
	require.NoError(t, err)
	assert.Equal(t, "positions_long_OwnerAAA_20240601_083000.json", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc struct {
		Summary   Summary `json:"summary"`
		Positions []Row   `json:"positions"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Positions, 2)
	assert.Equal(t, 2, doc.Summary.LongCount)
	assert.True(t, doc.Summary.TotalSizeUsd.Equal(decimal.NewFromInt(1400)))
}

func TestExportNoMatches(t *testing.T) {
	_, err := newTestExporter().Export(testRows(), Options{Format: FormatCSV, Owner: "nobody", OutputDir: t.TempDir()})
	assert.Error(t, err)

	_, err = newTestExporter().Export(testRows(), Options{Format: "xml", OutputDir: t.TempDir()})
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	s := Summarize(testRows())
	assert.Equal(t, 3, s.Positions)
	assert.Equal(t, 2, s.LongCount)
	assert.Equal(t, 1, s.ShortCount)
	assert.True(t, s.ShortSizeUsd.Equal(decimal.NewFromInt(600)))
	assert.True(t, s.TotalCollateralUsd.Equal(decimal.NewFromInt(500)))
	assert.True(t, s.AvgLeverage.Equal(decimal.RequireFromString("4")))
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), s.OldestOpen)
	assert.Equal(t, time.Date(2024, 5, 1, 14, 0, 0, 0, time.UTC), s.NewestOpen)

	assert.Equal(t, Summary{}, Summarize(nil))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" CSV ")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)
	_, err = ParseFormat("xlsx")
	assert.Error(t, err)
}
