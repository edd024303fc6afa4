package readiness

// blockerActions maps each blocker to exactly one fixed remediation.
var blockerActions = map[string]string{
	"missing_run_identity":       "Run a completed backtest with persisted run identity metadata.",
	"parity_check_failed":        "Re-run deterministic replay and resolve parity violations before promotion.",
	"missing_replay_check":       "Enable replay parity checks and re-run backtest evidence.",
	"missing_backtest_metrics":   "Run a completed backtest so CRV/product checks have metrics.",
	"missing_lineage_fields":     "Populate required lineage fields in run metadata before promotion.",
	"policy_block_reasons":       "Resolve policy/governance block reasons before promotion.",
	"validation_not_completed":   "Complete walk-forward validation and persist status before promotion.",
	"crv_unavailable":            "Run CRV gate on completed metrics and resolve threshold failures.",
	"ops_degraded":               "Fix dependency/startup health degradations and re-check service health.",
	"evidence_stale":             "Refresh acceptance evidence in a known-good environment.",
	"contract_invalid_gate_path": "Fix gate endpoint contract/runtime errors and rerun acceptance evidence.",
	"ui_contract_mismatch":       "Align API and dashboard readiness contract before using decision output.",
}

const noBlockerAction = "No immediate blockers. Continue monitoring readiness metrics."

// nextActions resolves blockers to remediation strings: at most three, in
// blocker order, deduplicated.
func nextActions(blockers []string) []string {
	actions := []string{}
	for _, blocker := range blockers {
		action, ok := blockerActions[blocker]
		if !ok {
			continue
		}
		duplicate := false
		for _, existing := range actions {
			if existing == action {
				duplicate = true
				break
			}
		}
		if !duplicate {
			actions = append(actions, action)
		}
	}
	if len(actions) == 0 {
		actions = append(actions, noBlockerAction)
	}
	if len(actions) > 3 {
		actions = actions[:3]
	}
	return actions
}
