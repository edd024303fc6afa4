package gates

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// CRVThresholds holds the risk/reward bars a strategy must clear at the
// CRV gate. MaxDrawdown is a magnitude cap: drawdowns are compared by
// absolute size so both fraction (0.20) and signed-percentage (-25.0)
// conventions evaluate identically.
type CRVThresholds struct {
	MinSharpe   float64 `yaml:"min_sharpe" json:"min_sharpe"`
	MaxDrawdown float64 `yaml:"max_drawdown" json:"max_drawdown"`
	MinReturn   float64 `yaml:"min_return" json:"min_return"`
}

// DefaultCRVThresholds returns the canonical promotion thresholds.
func DefaultCRVThresholds() CRVThresholds {
	return CRVThresholds{
		MinSharpe:   1.0,
		MaxDrawdown: 0.20,
		MinReturn:   0.10,
	}
}

// Validate rejects threshold combinations that would make the gate
// unconditionally pass or unconditionally fail.
func (t CRVThresholds) Validate() error {
	if math.IsNaN(t.MinSharpe) || math.IsNaN(t.MaxDrawdown) || math.IsNaN(t.MinReturn) {
		return fmt.Errorf("CRV thresholds must not be NaN")
	}
	if t.MaxDrawdown == 0 {
		return fmt.Errorf("invalid max_drawdown cap 0: no drawdown would ever pass")
	}
	return nil
}

// Override applies per-request threshold overrides. Each field is
// independently overridable; nil pointers keep the base value.
type Override struct {
	MinSharpe   *float64 `json:"min_sharpe,omitempty"`
	MaxDrawdown *float64 `json:"max_drawdown,omitempty"`
	MinReturn   *float64 `json:"min_return,omitempty"`
}

// Apply merges the override onto the base thresholds.
func (o *Override) Apply(base CRVThresholds) CRVThresholds {
	if o == nil {
		return base
	}
	if o.MinSharpe != nil {
		base.MinSharpe = *o.MinSharpe
	}
	if o.MaxDrawdown != nil {
		base.MaxDrawdown = *o.MaxDrawdown
	}
	if o.MinReturn != nil {
		base.MinReturn = *o.MinReturn
	}
	return base
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// formatThreshold renders a threshold the way operators configured it:
// shortest decimal form, but never without a decimal point.
func formatThreshold(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
