package release

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetermineMaturity(t *testing.T) {
	cases := []struct {
		name     string
		evidence Evidence
		expected Label
	}{
		{
			"all evidence",
			Evidence{TruthParity: true, Determinism: true, ContractParity: true, LineageCompleteness: true},
			Production,
		},
		{
			"no contract parity",
			Evidence{TruthParity: true, Determinism: true, LineageCompleteness: true},
			Validated,
		},
		{
			"missing determinism",
			Evidence{TruthParity: true, ContractParity: true, LineageCompleteness: true},
			Experimental,
		},
		{
			"missing lineage",
			Evidence{TruthParity: true, Determinism: true, ContractParity: true},
			Experimental,
		},
		{"nothing", Evidence{}, Experimental},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, DetermineMaturity(tc.evidence))
		})
	}
}

func TestEvaluateGatePassed(t *testing.T) {
	passed, reasons, label := EvaluateGate(Evidence{
		TruthParity: true, Determinism: true, ContractParity: true, LineageCompleteness: true,
	})
	assert.True(t, passed)
	assert.Empty(t, reasons)
	assert.Equal(t, Production, label)
}

func TestEvaluateGateReasonsInFixedOrder(t *testing.T) {
	passed, reasons, label := EvaluateGate(Evidence{Determinism: true})
	assert.False(t, passed)
	assert.Equal(t, []string{"truth_parity_failed", "contract_parity_failed", "lineage_completeness_failed"}, reasons)
	assert.Equal(t, Experimental, label)
}

func TestEvaluateGateLabelIndependentOfVerdict(t *testing.T) {
	// Validated evidence still fails the strict production gate.
	passed, reasons, label := EvaluateGate(Evidence{
		TruthParity: true, Determinism: true, LineageCompleteness: true,
	})
	assert.False(t, passed)
	assert.Equal(t, []string{"contract_parity_failed"}, reasons)
	assert.Equal(t, Validated, label)
}
