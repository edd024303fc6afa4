// Package release classifies evidence into a release-maturity label and
// evaluates the strict production release gate.
package release

// Label is the categorical trustworthiness of available evidence.
type Label string

const (
	Production   Label = "production"
	Validated    Label = "validated"
	Experimental Label = "experimental"
)

// Evidence is the boolean capability signal set the classifier consumes.
type Evidence struct {
	TruthParity         bool `json:"truth_parity"`
	Determinism         bool `json:"determinism"`
	ContractParity      bool `json:"contract_parity"`
	LineageCompleteness bool `json:"lineage_completeness"`
}

// productionRequired fixes the evidence keys (and their reporting order)
// that the production profile demands.
var productionRequired = []struct {
	key   string
	value func(Evidence) bool
}{
	{"truth_parity", func(e Evidence) bool { return e.TruthParity }},
	{"determinism", func(e Evidence) bool { return e.Determinism }},
	{"contract_parity", func(e Evidence) bool { return e.ContractParity }},
	{"lineage_completeness", func(e Evidence) bool { return e.LineageCompleteness }},
}

// DetermineMaturity maps evidence to exactly one label. Contract parity is
// not required for "validated": a result can be trustworthy evidence-wise
// before the external contract surface has been proven.
func DetermineMaturity(evidence Evidence) Label {
	if evidence.TruthParity && evidence.Determinism && evidence.ContractParity && evidence.LineageCompleteness {
		return Production
	}
	if evidence.TruthParity && evidence.Determinism && evidence.LineageCompleteness {
		return Validated
	}
	return Experimental
}

// EvaluateGate applies the strict production release gate. The maturity
// label is computed independently: a "validated" label with passed=false
// is a meaningful combination and must not be collapsed.
func EvaluateGate(evidence Evidence) (bool, []string, Label) {
	reasons := []string{}
	for _, requirement := range productionRequired {
		if !requirement.value(evidence) {
			reasons = append(reasons, requirement.key+"_failed")
		}
	}
	return len(reasons) == 0, reasons, DetermineMaturity(evidence)
}
