package gates

import (
	"fmt"

	"github.com/aurelius/promotion/internal/governance"
	"github.com/aurelius/promotion/internal/release"
)

// EvaluateProduct runs the product gate: every dev check, every CRV check,
// plus walk-forward validation. It re-evaluates the constituent gates from
// the same evidence instead of trusting prior results, so repeated calls
// with identical inputs are idempotent.
func EvaluateProduct(evidence Evidence) GateResult {
	devResult := EvaluateDev(evidence)
	crvResult := EvaluateCRV(evidence)

	checks := make([]GateCheck, 0, len(devResult.Checks)+len(crvResult.Checks)+1)
	checks = append(checks, devResult.Checks...)
	checks = append(checks, crvResult.Checks...)

	validationPassed := evidence.Validation.Completed()
	validationMsg := "validation missing or failed"
	if validationPassed {
		validationMsg = "validation passed"
	}
	checks = append(checks, GateCheck{
		CheckName:   "Walk-Forward Validation",
		Passed:      validationPassed,
		Description: "Strategy must pass walk-forward validation",
		Message:     validationMsg,
		Severity:    SeverityError,
	})

	recommendations := []string{}
	if !devResult.Passed {
		recommendations = append(recommendations, "Complete dev gate requirements first")
	}
	if !crvResult.Passed {
		recommendations = append(recommendations, crvResult.Recommendations...)
	}
	if !validationPassed {
		recommendations = append(recommendations, "Complete walk-forward validation")
	}

	passed := allPassed(checks)
	return GateResult{
		StrategyID:      evidence.StrategyID,
		GateType:        GateProduct,
		Passed:          passed,
		GateStatus:      statusFor(passed),
		Checks:          checks,
		Score:           scoreFromChecks(checks),
		Recommendations: recommendations,
	}
}

// ProductDecision is the richer product-gate verdict surfaced over HTTP:
// the aggregated gate result plus parity block reasons, lineage
// completeness, and the release-maturity classification.
type ProductDecision struct {
	Result              GateResult        `json:"result"`
	DevPassed           bool              `json:"dev_passed"`
	CRVPassed           bool              `json:"crv_passed"`
	ValidationPassed    bool              `json:"validation_passed"`
	ParityPassed        bool              `json:"parity_passed"`
	BlockReasons        []string          `json:"promotion_block_reasons"`
	LineageComplete     bool              `json:"lineage_complete"`
	MissingLineage      []string          `json:"missing_lineage_fields,omitempty"`
	MaturityLabel       release.Label     `json:"maturity_label"`
	ReleaseGatePassed   bool              `json:"release_gate_passed"`
	ReleaseBlockReasons []string          `json:"release_block_reasons"`
	Governance          governance.Report `json:"governance"`
	ProductionReady     bool              `json:"production_ready"`
	Recommendation      string            `json:"recommendation"`
}

// DecideProduct computes the full production-readiness decision.
// production_ready requires dev, CRV, validation, parity, and lineage
// simultaneously; block reasons are enumerated in detection order.
func DecideProduct(evidence Evidence) ProductDecision {
	result := EvaluateProduct(evidence)
	devResult := EvaluateDev(evidence)
	crvResult := EvaluateCRV(evidence)

	blockReasons := parityBlockReasons(evidence)
	parityPassed := len(blockReasons) == 0

	lineageComplete, missingLineage := governance.CheckLineage(evidence.Backtest)
	if !lineageComplete {
		blockReasons = append(blockReasons, "missing_lineage_fields")
	}

	validationPassed := evidence.Validation.Completed()
	releasePassed, releaseReasons, maturity := release.EvaluateGate(release.Evidence{
		TruthParity:         crvResult.Passed,
		Determinism:         parityPassed,
		ContractParity:      devResult.Passed && validationPassed,
		LineageCompleteness: lineageComplete,
	})

	report := governance.BuildReport(evidence.StrategyID, map[string]bool{
		"lineage_complete":  lineageComplete,
		"parity_passed":     parityPassed,
		"crv_passed":        crvResult.Passed,
		"validation_passed": validationPassed,
	})

	ready := devResult.Passed && crvResult.Passed && validationPassed && parityPassed && lineageComplete
	recommendation := "Not ready for production - see gate results"
	if ready {
		recommendation = "Ready for production deployment"
	}

	return ProductDecision{
		Result:              result,
		DevPassed:           devResult.Passed,
		CRVPassed:           crvResult.Passed,
		ValidationPassed:    validationPassed,
		ParityPassed:        parityPassed,
		BlockReasons:        blockReasons,
		LineageComplete:     lineageComplete,
		MissingLineage:      missingLineage,
		MaturityLabel:       maturity,
		ReleaseGatePassed:   releasePassed,
		ReleaseBlockReasons: releaseReasons,
		Governance:          report,
		ProductionReady:     ready,
		Recommendation:      recommendation,
	}
}

func parityBlockReasons(evidence Evidence) []string {
	reasons := []string{}
	if evidence.Backtest == nil || evidence.Backtest.RunIdentity.Empty() {
		reasons = append(reasons, "missing_run_identity")
	}
	if evidence.Backtest == nil || !evidence.Backtest.ParityCheck.Checked {
		reasons = append(reasons, "missing_replay_check")
	} else if !evidence.Backtest.ParityCheck.Passed {
		reasons = append(reasons, "parity_check_failed")
	}
	return reasons
}

// Evaluate dispatches to the evaluator for the requested gate type.
func Evaluate(gateType GateType, evidence Evidence) (GateResult, error) {
	switch gateType {
	case GateDev:
		return EvaluateDev(evidence), nil
	case GateCRV:
		return EvaluateCRV(evidence), nil
	case GateProduct:
		return EvaluateProduct(evidence), nil
	default:
		return GateResult{}, fmt.Errorf("unknown gate type: %s", gateType)
	}
}
