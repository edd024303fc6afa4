package readiness

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"
)

// ScorecardVersion is stamped on every payload so stored scorecards from
// older rule sets can be told apart.
const ScorecardVersion = "v1"

// ComponentKeys fixes the DROPS component order used everywhere: scoring,
// deltas, and serialization.
var ComponentKeys = []string{"D", "R", "P", "O", "U"}

// Config holds scorer weights and decision-band thresholds. Malformed
// configuration is the only fatal error class in this package: it is
// rejected at construction and never silently corrected.
type Config struct {
	Weights        map[string]float64 `yaml:"weights"`
	GreenThreshold float64            `yaml:"green"`
	AmberThreshold float64            `yaml:"amber"`
}

// DefaultConfig returns the canonical DROPS weights and bands.
func DefaultConfig() Config {
	return Config{
		Weights: map[string]float64{
			"D": 0.25,
			"R": 0.20,
			"P": 0.25,
			"O": 0.15,
			"U": 0.15,
		},
		GreenThreshold: 85,
		AmberThreshold: 70,
	}
}

// Validate enforces the configuration invariants: exactly the five DROPS
// keys, weights summing to 1.0, and ordered band thresholds.
func (c Config) Validate() error {
	if len(c.Weights) != len(ComponentKeys) {
		return fmt.Errorf("weights must contain exactly the keys %v, got %d entries", ComponentKeys, len(c.Weights))
	}
	sum := 0.0
	for _, key := range ComponentKeys {
		weight, ok := c.Weights[key]
		if !ok {
			return fmt.Errorf("weights missing component %q", key)
		}
		if weight < 0 {
			return fmt.Errorf("weight for %q is negative: %g", key, weight)
		}
		sum += weight
	}
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("weights must sum to 1.0, got %g", sum)
	}
	if c.GreenThreshold <= c.AmberThreshold {
		return fmt.Errorf("green threshold %g must exceed amber threshold %g", c.GreenThreshold, c.AmberThreshold)
	}
	if c.AmberThreshold <= 0 || c.GreenThreshold > 100 {
		return fmt.Errorf("band thresholds must lie in (0, 100], got green=%g amber=%g", c.GreenThreshold, c.AmberThreshold)
	}
	return nil
}

// Scorer computes readiness payloads. Stateless after construction; safe
// for concurrent use across strategies.
type Scorer struct {
	config Config
}

// NewScorer validates the configuration and returns a scorer. This is the
// only place a readiness evaluation can fail hard.
func NewScorer(config Config) (*Scorer, error) {
	if config.Weights == nil {
		config.Weights = DefaultConfig().Weights
	}
	if config.GreenThreshold == 0 && config.AmberThreshold == 0 {
		defaults := DefaultConfig()
		config.GreenThreshold = defaults.GreenThreshold
		config.AmberThreshold = defaults.AmberThreshold
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid readiness configuration: %w", err)
	}
	return &Scorer{config: config}, nil
}

// Score builds the readiness payload for one strategy. previous may be nil;
// transition deltas are then all zero.
func (s *Scorer) Score(strategyID string, signals Signals, previous *Payload) Payload {
	warnings := []string{}
	components := componentScores(signals, &warnings)

	score := 0.0
	for _, key := range ComponentKeys {
		score += s.config.Weights[key] * components[key]
	}
	score = round3(clampScore(score, "S", &warnings))

	hardBlockers := collectHardBlockers(signals)
	numericBand := s.band(score)
	blocked := len(hardBlockers) > 0

	// Hard-blocker precedence: the numeric band is diagnostic only once
	// any hard blocker is present.
	finalBand := numericBand
	if blocked {
		finalBand = BandRed
	}

	topBlockers := topBlockers(hardBlockers, components, signals)
	actions := nextActions(topBlockers)

	maturity := "experimental"
	if finalBand == BandGreen || finalBand == BandAmber {
		maturity = "validated"
	}

	payload := Payload{
		StrategyID:       strategyID,
		ScorecardVersion: ScorecardVersion,
		Weights:          copyWeights(s.config.Weights),
		Thresholds: BandThresholds{
			Green: s.config.GreenThreshold,
			Amber: s.config.AmberThreshold,
		},
		Components:    components,
		Score:         score,
		Band:          finalBand,
		Blocked:       blocked,
		HardBlockers:  hardBlockers,
		TopBlockers:   topBlockers,
		NextActions:   actions,
		Warnings:      warnings,
		MaturityLabel: maturity,
		Transition:    transition(score, components, previous),
		OperationalContext: OperationalContext{
			StartupStatus:          signals.StartupStatus,
			StartupReasons:         signals.StartupReasons,
			EvidenceStale:          signals.EvidenceStale,
			EnvironmentCaveat:      signals.EnvironmentCaveat,
			EvidenceClassification: signals.EvidenceClassification,
			EvidenceTimestamp:      signals.EvidenceTimestamp,
			ContractMismatch:       signals.ContractMismatch,
			MaturityLabelVisible:   signals.MaturityLabelVisible,
		},
		KPIEvents: KPIEvents{
			ReproducibilityPass:   boolToInt(signals.ParityChecked && signals.ParityPassed && signals.RunIdentityPresent),
			OnboardingReliability: boolToInt(signals.StartupStatus == "healthy"),
			FalsePromotionProxy:   boolToInt(blocked && score >= s.config.GreenThreshold),
		},
		EvaluatedAt: time.Now().UTC(),
	}

	log.Debug().
		Str("strategy_id", strategyID).
		Float64("score", score).
		Str("band", string(finalBand)).
		Bool("blocked", blocked).
		Msg("readiness scorecard computed")

	return payload
}

func (s *Scorer) band(score float64) Band {
	if score >= s.config.GreenThreshold {
		return BandGreen
	}
	if score >= s.config.AmberThreshold {
		return BandAmber
	}
	return BandRed
}

// componentScores applies the fixed penalty schedule per DROPS dimension.
// Each dimension starts at 100 and is clamped to [0,100] afterwards.
func componentScores(signals Signals, warnings *[]string) map[string]float64 {
	d := 100.0
	if !signals.ParityChecked {
		d -= 40.0
	}
	if !signals.RunIdentityPresent {
		d -= 30.0
	}
	if !signals.ParityPassed {
		d -= 30.0
	}

	r := 100.0
	if !signals.ValidationPassed {
		r -= 50.0
	}
	if !signals.CRVAvailable {
		r -= 25.0
	}
	if !signals.RiskMetricsComplete {
		r -= 25.0
	}

	p := 100.0
	if len(signals.PolicyBlockReasons) > 0 {
		p -= 60.0
	}
	if !signals.LineageComplete {
		p -= 40.0
	}

	o := 100.0
	if signals.StartupStatus != "healthy" {
		o -= 40.0
	}
	if signals.EvidenceStale {
		o -= 30.0
	}
	if len(signals.StartupReasons) >= 2 {
		o -= 30.0
	}

	u := 100.0
	if signals.ContractMismatch {
		u -= 60.0
	}
	if !signals.MaturityLabelVisible {
		u -= 40.0
	}

	return map[string]float64{
		"D": clampScore(d, "D", warnings),
		"R": clampScore(r, "R", warnings),
		"P": clampScore(p, "P", warnings),
		"O": clampScore(o, "O", warnings),
		"U": clampScore(u, "U", warnings),
	}
}

func collectHardBlockers(signals Signals) []string {
	blockers := []string{}
	if !signals.RunIdentityPresent {
		blockers = append(blockers, "missing_run_identity")
	}
	if !signals.ParityChecked {
		blockers = append(blockers, "missing_replay_check")
	}
	if !signals.ParityPassed {
		blockers = append(blockers, "parity_check_failed")
	}
	if !signals.LineageComplete {
		blockers = append(blockers, "missing_lineage_fields")
	}
	if len(signals.PolicyBlockReasons) > 0 {
		blockers = append(blockers, "policy_block_reasons")
	}
	return blockers
}

func topBlockers(hardBlockers []string, components map[string]float64, signals Signals) []string {
	if len(hardBlockers) > 0 {
		if len(hardBlockers) > 3 {
			return hardBlockers[:3]
		}
		return hardBlockers
	}

	blockers := []string{}
	if components["R"] < 80 && !signals.ValidationPassed {
		blockers = append(blockers, "validation_not_completed")
	}
	if components["R"] < 80 && !signals.CRVAvailable {
		blockers = append(blockers, "crv_unavailable")
	}
	if components["O"] < 80 && signals.StartupStatus != "healthy" {
		blockers = append(blockers, "ops_degraded")
	}
	if components["O"] < 80 && signals.EvidenceStale {
		blockers = append(blockers, "evidence_stale")
	}
	if signals.EnvironmentCaveat == "contract_invalid_gate_path" {
		blockers = append(blockers, "contract_invalid_gate_path")
	}
	if components["U"] < 80 && signals.ContractMismatch {
		blockers = append(blockers, "ui_contract_mismatch")
	}

	if len(blockers) == 0 {
		return []string{"monitor_inputs"}
	}

	deduped := dedupe(blockers)
	if len(deduped) > 3 {
		return deduped[:3]
	}
	return deduped
}

func transition(score float64, components map[string]float64, previous *Payload) Transition {
	delta := make(map[string]float64, len(ComponentKeys))
	for _, key := range ComponentKeys {
		delta[key] = 0.0
	}

	t := Transition{
		ComponentDelta:    delta,
		ChangedComponents: []string{},
	}
	if previous == nil {
		return t
	}

	t.PreviousScore = previous.Score
	t.ScoreDelta = round3(score - previous.Score)
	for _, key := range ComponentKeys {
		delta[key] = round3(components[key] - previous.Components[key])
		if math.Abs(delta[key]) >= 0.001 {
			t.ChangedComponents = append(t.ChangedComponents, key)
		}
	}
	return t
}

func clampScore(value float64, field string, warnings *[]string) float64 {
	if value < 0 {
		*warnings = append(*warnings, field+"_below_zero_clamped")
		return 0.0
	}
	if value > 100 {
		*warnings = append(*warnings, field+"_above_hundred_clamped")
		return 100.0
	}
	return value
}

func copyWeights(weights map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(weights))
	for k, v := range weights {
		out[k] = v
	}
	return out
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := []string{}
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
