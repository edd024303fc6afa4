// Package governance verifies that required evidentiary fields are present
// on a run result before any downstream component may trust it.
package governance

import (
	"github.com/aurelius/promotion/internal/engine"
)

// RequiredLineageFields lists, in reporting order, every field a trusted
// result must carry.
var RequiredLineageFields = []string{
	"run_identity",
	"data_provenance",
	"transformation_lineage",
	"policy_outcomes",
	"artifact_links",
}

// CheckLineage asserts presence of the required evidence fields. A nil
// metrics object means all fields are missing, never an error.
func CheckLineage(metrics *engine.NormalizedMetrics) (bool, []string) {
	if metrics == nil {
		missing := make([]string, len(RequiredLineageFields))
		copy(missing, RequiredLineageFields)
		return false, missing
	}

	missing := []string{}
	for _, field := range RequiredLineageFields {
		if !lineageFieldPresent(metrics, field) {
			missing = append(missing, field)
		}
	}
	return len(missing) == 0, missing
}

func lineageFieldPresent(metrics *engine.NormalizedMetrics, field string) bool {
	switch field {
	case "run_identity":
		return !metrics.RunIdentity.Empty()
	case "data_provenance":
		return metrics.DataProvenance != (engine.DataProvenance{})
	case "transformation_lineage":
		return len(metrics.TransformationLineage) > 0
	case "policy_outcomes":
		return metrics.PolicyOutcomes.Recorded
	case "artifact_links":
		return metrics.ArtifactLinks != (engine.ArtifactLinks{})
	default:
		return false
	}
}

// Report is an operator-facing governance summary for one strategy.
type Report struct {
	StrategyID string          `json:"strategy_id"`
	Passed     bool            `json:"passed"`
	Checks     map[string]bool `json:"checks"`
}

// BuildReport aggregates named governance checks into a single verdict.
func BuildReport(strategyID string, checks map[string]bool) Report {
	passed := true
	for _, ok := range checks {
		if !ok {
			passed = false
			break
		}
	}
	return Report{
		StrategyID: strategyID,
		Passed:     passed,
		Checks:     checks,
	}
}
