package gates

import (
	"fmt"
)

// EvaluateDev runs the development gate: existence plus determinism
// evidence. Checks are emitted in a fixed order so persisted results stay
// comparable across evaluations.
func EvaluateDev(evidence Evidence) GateResult {
	checks := make([]GateCheck, 0, 4)

	checks = append(checks, GateCheck{
		CheckName:   "Strategy Exists",
		Passed:      evidence.StrategyExists,
		Description: "Strategy artifact must exist",
		Message:     fmt.Sprintf("strategy_id=%s", evidence.StrategyID),
		Severity:    SeverityError,
	})

	hasBacktest := evidence.Backtest != nil
	backtestMsg := "missing backtest"
	if hasBacktest {
		backtestMsg = "backtest available"
	}
	checks = append(checks, GateCheck{
		CheckName:   "Completed Backtest",
		Passed:      hasBacktest,
		Description: "Completed backtest artifact is required",
		Message:     backtestMsg,
		Severity:    SeverityError,
	})

	identityPresent := hasBacktest && !evidence.Backtest.RunIdentity.Empty()
	identityMsg := "missing run_identity"
	if identityPresent {
		identityMsg = fmt.Sprintf("spec_hash=%s", evidence.Backtest.RunIdentity.SpecHash)
	}
	checks = append(checks, GateCheck{
		CheckName:   "Run Identity Present",
		Passed:      identityPresent,
		Description: "Canonical run identity must be persisted",
		Message:     identityMsg,
		Severity:    SeverityError,
	})

	// An unchecked parity run is insufficient evidence, not a pass.
	replayPass := hasBacktest &&
		evidence.Backtest.ParityCheck.Checked &&
		evidence.Backtest.ParityCheck.Passed
	replayMsg := "Replay parity failed or missing"
	if replayPass {
		replayMsg = "Replay parity passed"
	}
	checks = append(checks, GateCheck{
		CheckName:   "Replay Determinism",
		Passed:      replayPass,
		Description: "Strategy produces consistent results",
		Message:     replayMsg,
		Severity:    SeverityError,
	})

	passed := allPassed(checks)
	return GateResult{
		StrategyID:      evidence.StrategyID,
		GateType:        GateDev,
		Passed:          passed,
		GateStatus:      statusFor(passed),
		Checks:          checks,
		Score:           scoreFromChecks(checks),
		Recommendations: fixRecommendations(checks),
	}
}

func fixRecommendations(checks []GateCheck) []string {
	recommendations := []string{}
	for _, check := range checks {
		if !check.Passed {
			recommendations = append(recommendations, fmt.Sprintf("Fix: %s - %s", check.CheckName, check.Description))
		}
	}
	return recommendations
}
