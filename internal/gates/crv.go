package gates

import (
	"fmt"
	"math"
)

// EvaluateCRV runs the Cumulative Risk/Reward gate against thresholds.
// Missing backtest metrics block the gate outright rather than comparing
// thresholds against defaults that were never measured.
func EvaluateCRV(evidence Evidence) GateResult {
	thresholds := evidence.crvThresholds()

	if evidence.Backtest == nil {
		checks := []GateCheck{{
			CheckName:   "Backtest Metrics Available",
			Passed:      false,
			Description: "Risk metrics required for CRV gate",
			Message:     "missing backtest metrics",
			Severity:    SeverityError,
		}}
		return GateResult{
			StrategyID:      evidence.StrategyID,
			GateType:        GateCRV,
			Passed:          false,
			GateStatus:      StatusBlocked,
			Checks:          checks,
			Score:           0.0,
			Recommendations: []string{"Complete backtest to obtain risk metrics"},
		}
	}

	sharpe := evidence.Backtest.SharpeRatio
	drawdown := evidence.Backtest.MaxDrawdown
	totalReturn := evidence.Backtest.TotalReturn

	sharpePass := sharpe >= thresholds.MinSharpe
	drawdownPass := math.Abs(drawdown) <= math.Abs(thresholds.MaxDrawdown)
	returnPass := totalReturn >= thresholds.MinReturn

	checks := []GateCheck{
		{
			CheckName:   "Sharpe Ratio",
			Passed:      sharpePass,
			Description: fmt.Sprintf("Sharpe ratio must be >= %s", formatThreshold(thresholds.MinSharpe)),
			Message:     fmt.Sprintf("actual: %.2f", sharpe),
			Severity:    SeverityError,
		},
		{
			CheckName:   "Max Drawdown",
			Passed:      drawdownPass,
			Description: fmt.Sprintf("Max drawdown must be <= %s", formatThreshold(thresholds.MaxDrawdown)),
			Message:     fmt.Sprintf("actual: %.2f", drawdown),
			Severity:    SeverityError,
		},
		{
			CheckName:   "Total Return",
			Passed:      returnPass,
			Description: fmt.Sprintf("Total return must be >= %s", formatThreshold(thresholds.MinReturn)),
			Message:     fmt.Sprintf("actual: %.2f", totalReturn),
			Severity:    SeverityError,
		},
	}

	recommendations := []string{}
	if !sharpePass {
		recommendations = append(recommendations,
			fmt.Sprintf("Improve Sharpe ratio from %.2f to %s", sharpe, formatThreshold(thresholds.MinSharpe)))
	}
	if !drawdownPass {
		recommendations = append(recommendations,
			fmt.Sprintf("Reduce max drawdown from %.2f to %s", drawdown, formatThreshold(thresholds.MaxDrawdown)))
	}
	if !returnPass {
		recommendations = append(recommendations,
			fmt.Sprintf("Increase total return from %.2f to %s", totalReturn, formatThreshold(thresholds.MinReturn)))
	}

	passed := allPassed(checks)
	return GateResult{
		StrategyID:      evidence.StrategyID,
		GateType:        GateCRV,
		Passed:          passed,
		GateStatus:      statusFor(passed),
		Checks:          checks,
		Score:           scoreFromChecks(checks),
		Recommendations: recommendations,
	}
}
