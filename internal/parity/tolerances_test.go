package parity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurelius/promotion/internal/engine"
)

func baseMetrics() engine.NormalizedMetrics {
	return engine.NormalizedMetrics{
		TotalReturn: 18.5,
		SharpeRatio: 1.75,
		MaxDrawdown: -12.5,
	}
}

func TestCompareIdenticalRuns(t *testing.T) {
	check := Compare(baseMetrics(), baseMetrics(), DefaultTolerances())

	assert.True(t, check.Checked)
	assert.True(t, check.Passed)
	assert.Empty(t, check.Violations)
}

func TestCompareDeltaAtToleranceBoundaryPasses(t *testing.T) {
	a := baseMetrics()
	b := baseMetrics()
	// 0.01 - 0.0 reproduces the tolerance value bit for bit; adding 0.01
	// to an arbitrary base would not.
	a.SharpeRatio = 0.0
	b.SharpeRatio = 0.01

	check := Compare(a, b, DefaultTolerances())
	assert.True(t, check.Passed, "|a-b| == tolerance must pass")
	assert.Empty(t, check.Violations)
}

func TestCompareSingleMetricViolation(t *testing.T) {
	a := baseMetrics()
	b := baseMetrics()
	b.TotalReturn = a.TotalReturn + 0.02

	check := Compare(a, b, DefaultTolerances())

	assert.True(t, check.Checked)
	assert.False(t, check.Passed)
	require.Len(t, check.Violations, 1, "only the violating metric may appear")

	violation, ok := check.Violations["total_return"]
	require.True(t, ok)
	assert.InDelta(t, 18.5, violation.A, 1e-9)
	assert.InDelta(t, 18.52, violation.B, 1e-9)
	assert.InDelta(t, 0.02, violation.Delta, 1e-9)
	assert.InDelta(t, 0.01, violation.Tolerance, 1e-9)
}

func TestCompareAllMetricsViolated(t *testing.T) {
	a := baseMetrics()
	b := engine.NormalizedMetrics{TotalReturn: 20.0, SharpeRatio: 2.0, MaxDrawdown: -15.0}

	check := Compare(a, b, DefaultTolerances())
	assert.False(t, check.Passed)
	assert.Len(t, check.Violations, 3)
}

func TestTolerancesValidate(t *testing.T) {
	assert.NoError(t, DefaultTolerances().Validate())

	zero := DefaultTolerances()
	zero.SharpeRatio = 0
	assert.Error(t, zero.Validate())

	negative := DefaultTolerances()
	negative.MaxDrawdown = -0.01
	assert.Error(t, negative.Validate())
}
