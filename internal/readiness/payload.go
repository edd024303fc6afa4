package readiness

import (
	"time"
)

// Band is the traffic-light decision band.
type Band string

const (
	BandGreen Band = "Green"
	BandAmber Band = "Amber"
	BandRed   Band = "Red"
)

// BandThresholds are the score cutoffs used for band assignment.
type BandThresholds struct {
	Green float64 `json:"green"`
	Amber float64 `json:"amber"`
}

// Transition reports movement relative to the previous scorecard. With no
// previous scorecard all deltas are zero.
type Transition struct {
	PreviousScore     float64            `json:"previous_score"`
	ScoreDelta        float64            `json:"score_delta"`
	ComponentDelta    map[string]float64 `json:"component_delta"`
	ChangedComponents []string           `json:"changed_components"`
}

// OperationalContext echoes the runtime signals the score was derived
// from, so operators can audit a verdict without re-querying sources.
type OperationalContext struct {
	StartupStatus          string   `json:"startup_status"`
	StartupReasons         []string `json:"startup_reasons"`
	EvidenceStale          bool     `json:"evidence_stale"`
	EnvironmentCaveat      string   `json:"environment_caveat,omitempty"`
	EvidenceClassification string   `json:"evidence_classification,omitempty"`
	EvidenceTimestamp      string   `json:"evidence_timestamp,omitempty"`
	ContractMismatch       bool     `json:"contract_mismatch"`
	MaturityLabelVisible   bool     `json:"maturity_label_visible"`
}

// KPIEvents are boolean-as-integer aggregates for monitoring pipelines.
// FalsePromotionProxy flags the dangerous case where the raw score alone
// would have said "ready" but a hard blocker vetoed it.
type KPIEvents struct {
	ReproducibilityPass   int `json:"reproducibility_pass"`
	OnboardingReliability int `json:"onboarding_reliability"`
	FalsePromotionProxy   int `json:"false_promotion_proxy"`
}

// Payload is the full promotion-readiness scorecard produced fresh on
// every scoring call.
type Payload struct {
	StrategyID         string             `json:"strategy_id"`
	ScorecardVersion   string             `json:"scorecard_version"`
	Weights            map[string]float64 `json:"weights"`
	Thresholds         BandThresholds     `json:"thresholds"`
	Components         map[string]float64 `json:"components"`
	Score              float64            `json:"score"`
	Band               Band               `json:"band"`
	Blocked            bool               `json:"blocked"`
	HardBlockers       []string           `json:"hard_blockers"`
	TopBlockers        []string           `json:"top_blockers"`
	NextActions        []string           `json:"next_actions"`
	Warnings           []string           `json:"warnings"`
	MaturityLabel      string             `json:"maturity_label"`
	Transition         Transition         `json:"transition"`
	OperationalContext OperationalContext `json:"operational_context"`
	KPIEvents          KPIEvents          `json:"kpi_events"`
	EvaluatedAt        time.Time          `json:"evaluated_at"`
}
