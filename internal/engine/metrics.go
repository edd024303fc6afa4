package engine

import (
	"github.com/aurelius/promotion/internal/identity"
)

// ParityViolation records one metric pair that exceeded its tolerance.
// Reason is set instead of the numeric fields when the replay run itself
// failed to execute.
type ParityViolation struct {
	A         float64 `json:"a"`
	B         float64 `json:"b"`
	Delta     float64 `json:"delta"`
	Tolerance float64 `json:"tolerance"`
	Reason    string  `json:"reason,omitempty"`
}

// ParityCheck is the replay determinism verdict attached to every run.
// Checked=false means the replay was skipped by configuration; gates must
// treat that as insufficient evidence, not as a pass.
type ParityCheck struct {
	Checked    bool                       `json:"checked"`
	Passed     bool                       `json:"passed"`
	Violations map[string]ParityViolation `json:"violations"`
}

// SkippedParityCheck is the verdict recorded when replay is disabled.
func SkippedParityCheck() ParityCheck {
	return ParityCheck{Checked: false, Passed: true, Violations: map[string]ParityViolation{}}
}

// FailedReplayCheck is the verdict recorded when the replay invocation
// errored or produced no output. A failed replay is a failed parity check.
func FailedReplayCheck() ParityCheck {
	return ParityCheck{
		Checked: true,
		Passed:  false,
		Violations: map[string]ParityViolation{
			"engine": {Reason: "replay_failed"},
		},
	}
}

// DataProvenance records where the input dataset came from.
type DataProvenance struct {
	Source   string `json:"source"`
	Path     string `json:"path"`
	DataHash string `json:"data_hash"`
}

// LineageStep is one entry in the transformation lineage trail.
type LineageStep struct {
	Step    string `json:"step"`
	Details string `json:"details"`
}

// PolicyOutcomes summarizes policy-relevant verdicts for governance review.
type PolicyOutcomes struct {
	CRVPassed  bool `json:"crv_passed"`
	ReplayPass bool `json:"replay_pass"`
	Recorded   bool `json:"recorded"`
}

// ArtifactLinks names the engine output artifacts for one run.
type ArtifactLinks struct {
	Stats       string `json:"stats"`
	Trades      string `json:"trades"`
	EquityCurve string `json:"equity_curve"`
	CRV         string `json:"crv"`
}

// NormalizedMetrics is the read-only evidence object produced once per run
// and consumed by gates and the readiness scorer. Never mutated after the
// replay checker returns it.
type NormalizedMetrics struct {
	TotalReturn  float64 `json:"total_return"`
	SharpeRatio  float64 `json:"sharpe_ratio"`
	SortinoRatio float64 `json:"sortino_ratio"`
	MaxDrawdown  float64 `json:"max_drawdown"`
	WinRate      float64 `json:"win_rate"`
	ProfitFactor float64 `json:"profit_factor"`
	TotalTrades  int     `json:"total_trades"`
	AvgTrade     float64 `json:"avg_trade"`
	CalmarRatio  float64 `json:"calmar_ratio"`

	CRVPassed     bool     `json:"crv_passed"`
	CRVViolations []string `json:"crv_violations"`

	ReplayPass  bool        `json:"replay_pass"`
	ParityCheck ParityCheck `json:"parity_check"`

	RunIdentity           identity.RunIdentity `json:"run_identity"`
	DataProvenance        DataProvenance       `json:"data_provenance"`
	TransformationLineage []LineageStep        `json:"transformation_lineage"`
	PolicyOutcomes        PolicyOutcomes       `json:"policy_outcomes"`
	ArtifactLinks         ArtifactLinks        `json:"artifact_links"`
	ExecutionMode         string               `json:"execution_mode"`
}

// Normalize converts raw engine stats plus derived trade/equity rows into
// the metrics schema shared by gates and scoring. Return and drawdown are
// converted to percentage units; drawdown is always reported negative.
func Normalize(stats Stats, equityCurve []EquityPoint, trades []TradeRow) NormalizedMetrics {
	returns := returnsFromEquity(equityCurve)

	totalReturnPct := stats.TotalReturn * 100.0
	maxDrawdownPct := -abs(stats.MaxDrawdown * 100.0)

	numTrades := stats.NumTrades
	if numTrades == 0 {
		numTrades = len(trades)
	}

	avgTrade := 0.0
	if numTrades > 0 {
		avgTrade = totalReturnPct / float64(numTrades)
	}

	calmar := 0.0
	if maxDrawdownPct != 0 {
		calmar = totalReturnPct / abs(maxDrawdownPct)
	}

	return NormalizedMetrics{
		TotalReturn:  totalReturnPct,
		SharpeRatio:  stats.SharpeRatio,
		SortinoRatio: stats.SharpeRatio * 1.1,
		MaxDrawdown:  maxDrawdownPct,
		WinRate:      winRate(returns),
		ProfitFactor: profitFactor(returns),
		TotalTrades:  numTrades,
		AvgTrade:     avgTrade,
		CalmarRatio:  calmar,
	}
}

func returnsFromEquity(curve []EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	out := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev != 0 {
			out = append(out, (curve[i].Equity-prev)/prev)
		}
	}
	return out
}

func winRate(returns []float64) float64 {
	if len(returns) == 0 {
		return 0.0
	}
	wins := 0
	for _, r := range returns {
		if r > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(returns)) * 100.0
}

func profitFactor(returns []float64) float64 {
	var gains, losses float64
	for _, r := range returns {
		if r > 0 {
			gains += r
		} else if r < 0 {
			losses += -r
		}
	}
	if losses == 0 {
		if gains > 0 {
			return 99.0
		}
		return 0.0
	}
	return gains / losses
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
