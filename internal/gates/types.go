package gates

import (
	"github.com/aurelius/promotion/internal/engine"
)

// GateType identifies one of the three promotion trust gates.
type GateType string

const (
	GateDev     GateType = "dev"
	GateCRV     GateType = "crv"
	GateProduct GateType = "product"
)

// GateStatus is the overall verdict of one gate evaluation.
type GateStatus string

const (
	StatusPassed  GateStatus = "passed"
	StatusFailed  GateStatus = "failed"
	StatusBlocked GateStatus = "blocked"
)

// Check severities. Every promotion-relevant check is an error; warnings
// and infos exist for operator-facing annotations only.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// GateCheck is one fully formed check result. Value object: populated
// completely before it is appended to a result, never amended after.
type GateCheck struct {
	CheckName   string `json:"check_name"`
	Passed      bool   `json:"passed"`
	Description string `json:"description"`
	Message     string `json:"message,omitempty"`
	Severity    string `json:"severity"`
}

// GateResult is the immutable outcome of one gate evaluation call.
type GateResult struct {
	StrategyID      string      `json:"strategy_id"`
	GateType        GateType    `json:"gate_type"`
	Passed          bool        `json:"passed"`
	GateStatus      GateStatus  `json:"gate_status"`
	Checks          []GateCheck `json:"checks"`
	Score           float64     `json:"score"`
	Recommendations []string    `json:"recommendations"`
}

// ValidationMetrics is the stored walk-forward validation outcome. A
// strategy only counts as validated when Status is "completed".
type ValidationMetrics struct {
	Status            string  `json:"status"`
	Windows           int     `json:"windows,omitempty"`
	SharpeDegradation float64 `json:"sharpe_degradation,omitempty"`
	Overfitting       bool    `json:"overfitting,omitempty"`
}

// Completed reports whether walk-forward validation finished successfully.
func (v *ValidationMetrics) Completed() bool {
	return v != nil && v.Status == "completed"
}

// Evidence bundles everything a gate evaluator may inspect. Nil pointers
// are explicit missing-evidence sentinels; evaluators resolve them to
// failing or blocked checks, never to errors.
type Evidence struct {
	StrategyID     string
	StrategyExists bool
	Backtest       *engine.NormalizedMetrics
	Validation     *ValidationMetrics
	Thresholds     *CRVThresholds
}

func (e Evidence) crvThresholds() CRVThresholds {
	if e.Thresholds == nil {
		return DefaultCRVThresholds()
	}
	return *e.Thresholds
}

func scoreFromChecks(checks []GateCheck) float64 {
	if len(checks) == 0 {
		return 0.0
	}
	passed := 0
	for _, c := range checks {
		if c.Passed {
			passed++
		}
	}
	return round1(float64(passed) / float64(len(checks)) * 100.0)
}

func allPassed(checks []GateCheck) bool {
	for _, c := range checks {
		if !c.Passed {
			return false
		}
	}
	return true
}

func statusFor(passed bool) GateStatus {
	if passed {
		return StatusPassed
	}
	return StatusFailed
}
