// Package readiness computes the weighted DROPS promotion-readiness
// scorecard: Determinism, Risk, Policy, Ops, User/contract.
package readiness

// Signals is the flattened evidence input for one scoring call. It is a
// stateless value with no identity of its own; callers assemble it fresh
// from gate, governance, and operational sources each time.
type Signals struct {
	RunIdentityPresent     bool     `json:"run_identity_present"`
	ParityChecked          bool     `json:"parity_checked"`
	ParityPassed           bool     `json:"parity_passed"`
	ValidationPassed       bool     `json:"validation_passed"`
	CRVAvailable           bool     `json:"crv_available"`
	RiskMetricsComplete    bool     `json:"risk_metrics_complete"`
	PolicyBlockReasons     []string `json:"policy_block_reasons"`
	LineageComplete        bool     `json:"lineage_complete"`
	StartupStatus          string   `json:"startup_status"`
	StartupReasons         []string `json:"startup_reasons"`
	EvidenceStale          bool     `json:"evidence_stale"`
	EnvironmentCaveat      string   `json:"environment_caveat,omitempty"`
	EvidenceClassification string   `json:"evidence_classification,omitempty"`
	EvidenceTimestamp      string   `json:"evidence_timestamp,omitempty"`
	ContractMismatch       bool     `json:"contract_mismatch"`
	MaturityLabelVisible   bool     `json:"maturity_label_visible"`
}

// HealthySignals returns a fully green signal set, useful as a test and
// documentation baseline.
func HealthySignals() Signals {
	return Signals{
		RunIdentityPresent:   true,
		ParityChecked:        true,
		ParityPassed:         true,
		ValidationPassed:     true,
		CRVAvailable:         true,
		RiskMetricsComplete:  true,
		PolicyBlockReasons:   []string{},
		LineageComplete:      true,
		StartupStatus:        "healthy",
		StartupReasons:       []string{},
		EvidenceStale:        false,
		ContractMismatch:     false,
		MaturityLabelVisible: true,
	}
}
