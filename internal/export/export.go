// internal/export/export.go
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Format - формат файла выгрузки.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat принимает csv или json.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("unsupported export format %q (expected csv or json)", s)
}

// Row - одна позиция в выгрузке. Суммы и цены в USD.
type Row struct {
	Address       string          `json:"address"`
	Owner         string          `json:"owner"`
	Pool          string          `json:"pool"`
	Side          string          `json:"side"`
	EntryPrice    decimal.Decimal `json:"entry_price"`
	SizeUsd       decimal.Decimal `json:"size_usd"`
	CollateralUsd decimal.Decimal `json:"collateral_usd"`
	OpenTime      time.Time       `json:"open_time"`
}

// Leverage - SizeUsd / CollateralUsd, 0 без залога.
func (r Row) Leverage() decimal.Decimal {
	if !r.CollateralUsd.IsPositive() {
		return decimal.Zero
	}
	return r.SizeUsd.Div(r.CollateralUsd)
}

var csvHeaders = []string{"address", "owner", "pool", "side", "entry_price", "size_usd", "collateral_usd", "leverage", "open_time"}

func (r Row) csv() []string {
	return []string{
		r.Address,
		r.Owner,
		r.Pool,
		r.Side,
		r.EntryPrice.String(),
		r.SizeUsd.StringFixed(2),
		r.CollateralUsd.StringFixed(2),
		r.Leverage().StringFixed(2),
		r.OpenTime.UTC().Format(time.RFC3339),
	}
}

// Options - формат, фильтры и каталог выгрузки.
type Options struct {
	Format    Format
	Side      string // long / short, пусто - все
	Owner     string
	OutputDir string
}

// Summary - агрегаты по выгруженным позициям.
type Summary struct {
	Positions          int             `json:"positions"`
	LongCount          int             `json:"long_count"`
	ShortCount         int             `json:"short_count"`
	TotalSizeUsd       decimal.Decimal `json:"total_size_usd"`
	LongSizeUsd        decimal.Decimal `json:"long_size_usd"`
	ShortSizeUsd       decimal.Decimal `json:"short_size_usd"`
	TotalCollateralUsd decimal.Decimal `json:"total_collateral_usd"`
	AvgLeverage        decimal.Decimal `json:"avg_leverage"`
	OldestOpen         time.Time       `json:"oldest_open"`
	NewestOpen         time.Time       `json:"newest_open"`
}

// Exporter пишет позиции в CSV или JSON.
type Exporter struct {
	logger *zap.Logger
	now    func() time.Time
}

func NewExporter(logger *zap.Logger) *Exporter {
	return &Exporter{logger: logger.Named("export"), now: time.Now}
}

// Export фильтрует rows, сортирует по времени открытия и пишет файл.
// Возвращает путь к файлу.
func (e *Exporter) Export(rows []Row, opts Options) (string, error) {
	filtered := filterRows(rows, opts)
	if len(filtered) == 0 {
		return "", fmt.Errorf("no positions match the export criteria")
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].OpenTime.Before(filtered[j].OpenTime)
	})

	dir := opts.OutputDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(dir, e.filename(opts))

	var err error
	switch opts.Format {
	case FormatCSV:
		err = writeCSV(filtered, path)
	case FormatJSON:
		err = e.writeJSON(filtered, path)
	default:
		err = fmt.Errorf("unsupported format: %s", opts.Format)
	}
	if err != nil {
		return "", err
	}

	e.logger.Info("Positions exported",
		zap.String("file", path),
		zap.Int("count", len(filtered)),
		zap.String("format", string(opts.Format)))
	return path, nil
}

func filterRows(rows []Row, opts Options) []Row {
	var out []Row
	for _, r := range rows {
		if opts.Side != "" && !strings.EqualFold(r.Side, opts.Side) {
			continue
		}
		if opts.Owner != "" && r.Owner != opts.Owner {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (e *Exporter) filename(opts Options) string {
	prefix := "positions_all"
	if opts.Side != "" {
		prefix = "positions_" + strings.ToLower(opts.Side)
	}
	if len(opts.Owner) >= 8 {
		prefix += "_" + opts.Owner[:8]
	}
	return fmt.Sprintf("%s_%s.%s", prefix, e.now().Format("20060102_150405"), opts.Format)
}

func writeCSV(rows []Row, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(csvHeaders); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, r := range rows {
		if err := w.Write(r.csv()); err != nil {
			return fmt.Errorf("failed to write position %s: %w", r.Address, err)
		}
	}
	w.Flush()
	return w.Error()
}

func (e *Exporter) writeJSON(rows []Row, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	doc := struct {
		ExportTime time.Time `json:"export_time"`
		Summary    Summary   `json:"summary"`
		Positions  []Row     `json:"positions"`
	}{
		ExportTime: e.now().UTC(),
		Summary:    Summarize(rows),
		Positions:  rows,
	}
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// Summarize считает агрегаты; AvgLeverage взвешено по залогу.
func Summarize(rows []Row) Summary {
	s := Summary{Positions: len(rows)}
	for i, r := range rows {
		s.TotalSizeUsd = s.TotalSizeUsd.Add(r.SizeUsd)
		s.TotalCollateralUsd = s.TotalCollateralUsd.Add(r.CollateralUsd)
		switch strings.ToLower(r.Side) {
		case "long":
			s.LongCount++
			s.LongSizeUsd = s.LongSizeUsd.Add(r.SizeUsd)
		case "short":
			s.ShortCount++
			s.ShortSizeUsd = s.ShortSizeUsd.Add(r.SizeUsd)
		}
		if i == 0 || r.OpenTime.Before(s.OldestOpen) {
			s.OldestOpen = r.OpenTime
		}
		if r.OpenTime.After(s.NewestOpen) {
			s.NewestOpen = r.OpenTime
		}
	}
	if s.TotalCollateralUsd.IsPositive() {
		s.AvgLeverage = s.TotalSizeUsd.Div(s.TotalCollateralUsd).Round(4)
	}
	return s
}
