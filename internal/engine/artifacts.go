package engine

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// Stats is the engine's raw stats.json payload.
type Stats struct {
	TotalReturn float64 `json:"total_return"`
	SharpeRatio float64 `json:"sharpe_ratio"`
	MaxDrawdown float64 `json:"max_drawdown"`
	NumTrades   int     `json:"num_trades"`
}

// CRVReport is the engine's optional crv_report.json payload.
type CRVReport struct {
	Passed     bool     `json:"passed"`
	Violations []string `json:"violations"`
}

// TradeRow is one row of the engine's trades table.
type TradeRow struct {
	Timestamp string  `json:"timestamp"`
	Symbol    string  `json:"symbol"`
	Side      string  `json:"side"`
	Qty       float64 `json:"qty"`
	Price     float64 `json:"price"`
}

// EquityPoint is one row of the engine's equity curve.
type EquityPoint struct {
	Date   string  `json:"date"`
	Equity float64 `json:"equity"`
}

// RunArtifacts bundles everything one engine invocation produced.
type RunArtifacts struct {
	Stats       Stats
	CRV         CRVReport
	HasCRV      bool
	Trades      []TradeRow
	EquityCurve []EquityPoint
	OutDir      string
}

// ArtifactNames lists the output files as written by the engine.
func ArtifactNames() ArtifactLinks {
	return ArtifactLinks{
		Stats:       "stats.json",
		Trades:      "trades.csv",
		EquityCurve: "equity_curve.csv",
		CRV:         "crv_report.json",
	}
}

// ReadArtifacts loads engine output from an isolated run directory.
// A missing stats.json is an error; trades, equity curve, and the CRV
// report are optional.
func ReadArtifacts(outDir string) (RunArtifacts, error) {
	names := ArtifactNames()
	artifacts := RunArtifacts{OutDir: outDir}

	if err := readJSONFile(filepath.Join(outDir, names.Stats), &artifacts.Stats); err != nil {
		return artifacts, fmt.Errorf("engine run produced no stats: %w", err)
	}

	crvPath := filepath.Join(outDir, names.CRV)
	if _, err := os.Stat(crvPath); err == nil {
		if err := readJSONFile(crvPath, &artifacts.CRV); err != nil {
			return artifacts, fmt.Errorf("failed to read CRV report: %w", err)
		}
		artifacts.HasCRV = true
	}

	trades, err := readTrades(filepath.Join(outDir, names.Trades))
	if err != nil {
		return artifacts, err
	}
	artifacts.Trades = trades

	equity, err := readEquityCurve(filepath.Join(outDir, names.EquityCurve))
	if err != nil {
		return artifacts, err
	}
	artifacts.EquityCurve = equity

	return artifacts, nil
}

func readJSONFile(path string, dest interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("malformed JSON in %s: %w", path, err)
	}
	return nil
}

func readTrades(path string) ([]TradeRow, error) {
	records, header, err := readCSV(path)
	if err != nil || records == nil {
		return nil, err
	}

	idx := columnIndex(header)
	rows := make([]TradeRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, TradeRow{
			Timestamp: field(rec, idx, "timestamp"),
			Symbol:    field(rec, idx, "symbol"),
			Side:      field(rec, idx, "side"),
			Qty:       floatField(rec, idx, "qty"),
			Price:     floatField(rec, idx, "price"),
		})
	}
	return rows, nil
}

func readEquityCurve(path string) ([]EquityPoint, error) {
	records, header, err := readCSV(path)
	if err != nil || records == nil {
		return nil, err
	}

	idx := columnIndex(header)
	points := make([]EquityPoint, 0, len(records))
	for _, rec := range records {
		date := field(rec, idx, "date")
		if date == "" {
			date = field(rec, idx, "timestamp")
		}
		points = append(points, EquityPoint{
			Date:   date,
			Equity: floatField(rec, idx, "equity"),
		})
	}
	return points, nil
}

// readCSV returns (nil, nil, nil) for a missing file: absent optional
// artifacts are represented as empty row sets, never as errors.
func readCSV(path string) ([][]string, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s header: %w", path, err)
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s rows: %w", path, err)
	}
	return records, header, nil
}

func columnIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[name] = i
	}
	return idx
}

func field(record []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(record) {
		return ""
	}
	return record[i]
}

func floatField(record []string, idx map[string]int, name string) float64 {
	v, err := strconv.ParseFloat(field(record, idx, name), 64)
	if err != nil {
		return 0.0
	}
	return v
}
