// Package persistence defines the stores that gate results and readiness
// payloads are written to after computation completes. Persistence is an
// external collaborator: it is invoked strictly after evaluation, never
// interleaved with it.
package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/aurelius/promotion/internal/gates"
	"github.com/aurelius/promotion/internal/readiness"
)

// ErrNotFound indicates no stored record matched the lookup.
var ErrNotFound = errors.New("record not found")

// GateRecord is one persisted gate evaluation.
type GateRecord struct {
	ID         string           `db:"id" json:"id"`
	StrategyID string           `db:"strategy_id" json:"strategy_id"`
	GateType   gates.GateType   `db:"gate_type" json:"gate_type"`
	Passed     bool             `db:"passed" json:"passed"`
	Result     gates.GateResult `db:"-" json:"result"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
}

// ReadinessRecord is one persisted readiness scorecard.
type ReadinessRecord struct {
	ID         string            `db:"id" json:"id"`
	StrategyID string            `db:"strategy_id" json:"strategy_id"`
	Score      float64           `db:"score" json:"score"`
	Band       readiness.Band    `db:"band" json:"band"`
	Payload    readiness.Payload `db:"-" json:"payload"`
	CreatedAt  time.Time         `db:"created_at" json:"created_at"`
}

// GateResultStore persists gate evaluations and serves latest-by-type
// lookups for the status surface.
type GateResultStore interface {
	Save(ctx context.Context, record GateRecord) error
	Latest(ctx context.Context, strategyID string, gateType gates.GateType) (*GateRecord, error)
}

// ReadinessStore persists readiness scorecards.
type ReadinessStore interface {
	Save(ctx context.Context, record ReadinessRecord) error
	Latest(ctx context.Context, strategyID string) (*ReadinessRecord, error)
}

// ScorecardCache serves the previous scorecard for transition tracking.
// A cache miss is a nil payload, not an error.
type ScorecardCache interface {
	Put(ctx context.Context, payload readiness.Payload) error
	Get(ctx context.Context, strategyID string) (*readiness.Payload, error)
}
