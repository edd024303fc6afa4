package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeConvertsUnits(t *testing.T) {
	stats := Stats{
		TotalReturn: 0.185,
		SharpeRatio: 1.75,
		MaxDrawdown: 0.125,
		NumTrades:   50,
	}

	metrics := Normalize(stats, nil, nil)

	assert.InDelta(t, 18.5, metrics.TotalReturn, 1e-9)
	assert.InDelta(t, 1.75, metrics.SharpeRatio, 1e-9)
	assert.InDelta(t, -12.5, metrics.MaxDrawdown, 1e-9, "drawdown is always reported negative")
	assert.InDelta(t, 1.925, metrics.SortinoRatio, 1e-9)
	assert.Equal(t, 50, metrics.TotalTrades)
	assert.InDelta(t, 0.37, metrics.AvgTrade, 1e-9)
	assert.InDelta(t, 18.5/12.5, metrics.CalmarRatio, 1e-9)
}

func TestNormalizeNegativeDrawdownInput(t *testing.T) {
	metrics := Normalize(Stats{TotalReturn: 0.10, MaxDrawdown: -0.08}, nil, nil)
	assert.InDelta(t, -8.0, metrics.MaxDrawdown, 1e-9, "signed input must not flip positive")
}

func TestNormalizeTradeCountFallsBackToRows(t *testing.T) {
	trades := []TradeRow{
		{Symbol: "SPY", Side: "buy", Qty: 10, Price: 400},
		{Symbol: "SPY", Side: "sell", Qty: 10, Price: 410},
	}
	metrics := Normalize(Stats{TotalReturn: 0.02}, nil, trades)
	assert.Equal(t, 2, metrics.TotalTrades)
	assert.InDelta(t, 1.0, metrics.AvgTrade, 1e-9)
}

func TestNormalizeWinRateAndProfitFactor(t *testing.T) {
	// Daily returns: +10%, -10%, +10%.
	curve := []EquityPoint{
		{Date: "2024-01-02", Equity: 100},
		{Date: "2024-01-03", Equity: 110},
		{Date: "2024-01-04", Equity: 99},
		{Date: "2024-01-05", Equity: 108.9},
	}

	metrics := Normalize(Stats{}, curve, nil)

	assert.InDelta(t, 200.0/3.0, metrics.WinRate, 1e-9)
	assert.InDelta(t, 2.0, metrics.ProfitFactor, 1e-9)
}

func TestNormalizeProfitFactorCapWithoutLosses(t *testing.T) {
	curve := []EquityPoint{
		{Date: "2024-01-02", Equity: 100},
		{Date: "2024-01-03", Equity: 105},
		{Date: "2024-01-04", Equity: 111},
	}
	metrics := Normalize(Stats{}, curve, nil)
	assert.InDelta(t, 99.0, metrics.ProfitFactor, 1e-9)
	assert.InDelta(t, 100.0, metrics.WinRate, 1e-9)
}

func TestNormalizeZeroActivity(t *testing.T) {
	metrics := Normalize(Stats{}, nil, nil)
	assert.Zero(t, metrics.TotalReturn)
	assert.Zero(t, metrics.WinRate)
	assert.Zero(t, metrics.ProfitFactor)
	assert.Zero(t, metrics.AvgTrade)
	assert.Zero(t, metrics.CalmarRatio)
}

func TestParityCheckSentinels(t *testing.T) {
	skipped := SkippedParityCheck()
	assert.False(t, skipped.Checked)
	assert.True(t, skipped.Passed)
	assert.Empty(t, skipped.Violations)

	failed := FailedReplayCheck()
	assert.True(t, failed.Checked)
	assert.False(t, failed.Passed)
	assert.Equal(t, "replay_failed", failed.Violations["engine"].Reason)
}
