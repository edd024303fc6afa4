package parity

import (
	"fmt"

	"github.com/aurelius/promotion/internal/engine"
)

// Tolerances holds per-metric absolute-difference tolerances in the
// metrics' native percentage/ratio units. Relative tolerances are
// deliberately not supported: a run that drifts 0.01 percentage points is
// equally suspect at 1% and at 40% total return.
type Tolerances struct {
	TotalReturn float64 `yaml:"total_return"`
	SharpeRatio float64 `yaml:"sharpe_ratio"`
	MaxDrawdown float64 `yaml:"max_drawdown"`
}

// DefaultTolerances returns the canonical parity tolerances.
func DefaultTolerances() Tolerances {
	return Tolerances{
		TotalReturn: 0.01,
		SharpeRatio: 0.01,
		MaxDrawdown: 0.01,
	}
}

// Validate rejects non-positive tolerances: a zero tolerance would make
// every float-identical replay a coin flip against serialization noise.
func (t Tolerances) Validate() error {
	for metric, tol := range t.byMetric() {
		if tol <= 0 {
			return fmt.Errorf("invalid parity tolerance for %s: %g (must be > 0)", metric, tol)
		}
	}
	return nil
}

func (t Tolerances) byMetric() map[string]float64 {
	return map[string]float64{
		"total_return": t.TotalReturn,
		"sharpe_ratio": t.SharpeRatio,
		"max_drawdown": t.MaxDrawdown,
	}
}

// trackedMetrics fixes the comparison order for stable violation reporting.
var trackedMetrics = []string{"total_return", "sharpe_ratio", "max_drawdown"}

func metricValue(m engine.NormalizedMetrics, name string) float64 {
	switch name {
	case "total_return":
		return m.TotalReturn
	case "sharpe_ratio":
		return m.SharpeRatio
	case "max_drawdown":
		return m.MaxDrawdown
	default:
		return 0.0
	}
}

// Compare checks the tracked metric set pairwise with |a-b| <= tolerance.
// Every violating metric, and only violating metrics, appears in the
// returned check's violations map.
func Compare(a, b engine.NormalizedMetrics, tolerances Tolerances) engine.ParityCheck {
	byMetric := tolerances.byMetric()
	violations := map[string]engine.ParityViolation{}

	for _, metric := range trackedMetrics {
		av := metricValue(a, metric)
		bv := metricValue(b, metric)
		delta := av - bv
		if delta < 0 {
			delta = -delta
		}
		tol := byMetric[metric]
		if delta > tol {
			violations[metric] = engine.ParityViolation{
				A:         av,
				B:         bv,
				Delta:     delta,
				Tolerance: tol,
			}
		}
	}

	return engine.ParityCheck{
		Checked:    true,
		Passed:     len(violations) == 0,
		Violations: violations,
	}
}
