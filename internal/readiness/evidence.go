package readiness

import (
	"encoding/json"
	"os"
	"strings"
	"time"
)

// EvidenceMetadata summarizes freshness and environment caveats extracted
// from an acceptance-evidence artifact. It feeds the Ops and contract
// signals of the scorecard.
type EvidenceMetadata struct {
	EvidenceStale     bool   `json:"evidence_stale"`
	EnvironmentCaveat string `json:"environment_caveat,omitempty"`
	LatestTimestamp   string `json:"latest_timestamp,omitempty"`
	Classification    string `json:"classification,omitempty"`
	LatestEnvironment string `json:"latest_environment,omitempty"`
}

type evidenceGates struct {
	DevStatus     int `json:"dev_status"`
	CRVStatus     int `json:"crv_status"`
	ProductStatus int `json:"product_status"`
}

// ParseEvidenceMetadata reads an acceptance-evidence markdown artifact and
// extracts the latest timestamp, environment, and gate status block. A
// missing artifact is stale evidence with a caveat, never an error.
func ParseEvidenceMetadata(evidencePath string, maxAge time.Duration) EvidenceMetadata {
	data, err := os.ReadFile(evidencePath)
	if err != nil {
		return EvidenceMetadata{
			EvidenceStale:     true,
			EnvironmentCaveat: "missing_evidence_artifact",
		}
	}

	var latestTS *time.Time
	var gates *evidenceGates
	environment := ""

	for _, line := range strings.Split(string(data), "\n") {
		switch {
		case strings.HasPrefix(line, "- Timestamp (UTC): `"):
			if value, ok := backtickValue(line); ok {
				if ts, err := parseEvidenceTime(value); err == nil {
					latestTS = &ts
				}
			}
		case strings.HasPrefix(line, "- Environment: `"):
			if value, ok := backtickValue(line); ok {
				environment = value
			}
		case strings.HasPrefix(line, "- Gates: `"):
			if value, ok := backtickValue(line); ok {
				var parsed evidenceGates
				if err := json.Unmarshal([]byte(value), &parsed); err == nil {
					gates = &parsed
				} else {
					gates = nil
				}
			}
		}
	}

	stale := true
	latest := ""
	if latestTS != nil {
		stale = time.Since(*latestTS) > maxAge
		latest = latestTS.UTC().Format(time.RFC3339)
	}

	classification := classifyGates(gates)

	caveat := ""
	if stale {
		caveat = "evidence_stale"
	} else if classification == "contract-invalid-failure" {
		caveat = "contract_invalid_gate_path"
	}

	return EvidenceMetadata{
		EvidenceStale:     stale,
		EnvironmentCaveat: caveat,
		LatestTimestamp:   latest,
		Classification:    classification,
		LatestEnvironment: environment,
	}
}

func classifyGates(gates *evidenceGates) string {
	if gates == nil {
		return ""
	}
	dev, crv, product := gates.DevStatus, gates.CRVStatus, gates.ProductStatus
	switch {
	case dev == 200 && crv == 200 && product == 200:
		return "contract-valid-success"
	case dev == 200 && contractFailure(crv) && contractFailure(product):
		return "contract-valid-failure"
	case dev >= 500 || crv >= 500 || product >= 500 || dev == 0:
		return "contract-invalid-failure"
	default:
		return "mixed"
	}
}

func contractFailure(code int) bool {
	return code == 404 || code == 422
}

// parseEvidenceTime accepts RFC3339 timestamps plus the offset-naive
// form some evidence writers emit; naive timestamps are read as UTC.
func parseEvidenceTime(value string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, nil
	}
	return time.ParseInLocation("2006-01-02T15:04:05", value, time.UTC)
}

func backtickValue(line string) (string, bool) {
	parts := strings.SplitN(line, "`", 3)
	if len(parts) < 3 {
		return "", false
	}
	return parts[1], true
}
