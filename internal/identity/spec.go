package identity

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// StrategyParams holds the engine-facing strategy parameterization.
type StrategyParams struct {
	Type        string  `json:"type"`
	Symbol      string  `json:"symbol"`
	Lookback    int     `json:"lookback"`
	VolTarget   float64 `json:"vol_target"`
	VolLookback int     `json:"vol_lookback"`
}

// CostModel describes execution cost assumptions passed to the engine.
type CostModel struct {
	Type              string  `json:"type"`
	CostPerShare      float64 `json:"cost_per_share"`
	MinimumCommission float64 `json:"minimum_commission"`
}

// CanonicalSpec is the hashable representation of one backtest request.
// Identical logical inputs must serialize byte-identically, so the only
// supported serialization is CanonicalJSON.
type CanonicalSpec struct {
	InitialCash  float64        `json:"initial_cash"`
	Seed         int64          `json:"seed"`
	DataPipeline string         `json:"data_pipeline"`
	Strategy     StrategyParams `json:"strategy"`
	CostModel    CostModel      `json:"cost_model"`
}

// DefaultCostModel returns the fixed per-share cost model used when a
// strategy definition does not override execution costs.
func DefaultCostModel() CostModel {
	return CostModel{
		Type:              "fixed_per_share",
		CostPerShare:      0.005,
		MinimumCommission: 1.0,
	}
}

// CanonicalJSON serializes the spec with lexicographically sorted keys and
// no insignificant whitespace. The double marshal forces every object into
// a map so key order is stable regardless of struct field order.
func (s CanonicalSpec) CanonicalJSON() ([]byte, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal spec: %w", err)
	}

	var generic interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber() // preserve numeric representation across the round trip
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("failed to canonicalize spec: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, fmt.Errorf("failed to encode canonical spec: %w", err)
	}

	// json.Encoder appends a trailing newline; the hash input must not
	// depend on encoder quirks.
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
