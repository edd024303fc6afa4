package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArtifact(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestReadArtifactsFullRun(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "stats.json", `{"total_return":0.185,"sharpe_ratio":1.75,"max_drawdown":0.125,"num_trades":50}`)
	writeArtifact(t, dir, "crv_report.json", `{"passed":true,"violations":[]}`)
	writeArtifact(t, dir, "trades.csv", "timestamp,symbol,side,qty,price\n2024-01-02T10:00:00Z,SPY,buy,10,400.5\n")
	writeArtifact(t, dir, "equity_curve.csv", "date,equity\n2024-01-02,100000\n2024-01-03,100500\n")

	artifacts, err := ReadArtifacts(dir)
	require.NoError(t, err)

	assert.InDelta(t, 0.185, artifacts.Stats.TotalReturn, 1e-9)
	assert.Equal(t, 50, artifacts.Stats.NumTrades)
	assert.True(t, artifacts.HasCRV)
	assert.True(t, artifacts.CRV.Passed)
	require.Len(t, artifacts.Trades, 1)
	assert.Equal(t, "buy", artifacts.Trades[0].Side)
	assert.InDelta(t, 400.5, artifacts.Trades[0].Price, 1e-9)
	require.Len(t, artifacts.EquityCurve, 2)
	assert.Equal(t, "2024-01-02", artifacts.EquityCurve[0].Date)
}

func TestReadArtifactsMissingStatsIsError(t *testing.T) {
	_, err := ReadArtifacts(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no stats")
}

func TestReadArtifactsOptionalFilesAbsent(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "stats.json", `{"total_return":0.05,"sharpe_ratio":0.9,"max_drawdown":0.03,"num_trades":4}`)

	artifacts, err := ReadArtifacts(dir)
	require.NoError(t, err)

	assert.False(t, artifacts.HasCRV)
	assert.Nil(t, artifacts.Trades)
	assert.Nil(t, artifacts.EquityCurve)
}

func TestReadArtifactsEquityCurveTimestampColumn(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "stats.json", `{"total_return":0.01,"sharpe_ratio":0.2,"max_drawdown":0.01,"num_trades":1}`)
	writeArtifact(t, dir, "equity_curve.csv", "timestamp,equity\n2024-01-02T00:00:00Z,100000\n")

	artifacts, err := ReadArtifacts(dir)
	require.NoError(t, err)
	require.Len(t, artifacts.EquityCurve, 1)
	assert.Equal(t, "2024-01-02T00:00:00Z", artifacts.EquityCurve[0].Date)
}

func TestReadArtifactsMalformedStats(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "stats.json", `{"total_return": not-json`)

	_, err := ReadArtifacts(dir)
	require.Error(t, err)
}
