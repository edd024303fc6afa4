// Package postgres implements the gate and readiness stores on Postgres
// via sqlx. Result and payload bodies are stored as JSONB so the schema
// survives scorecard-version changes without migrations.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/aurelius/promotion/internal/gates"
	"github.com/aurelius/promotion/internal/persistence"
	"github.com/aurelius/promotion/internal/readiness"
)

const schema = `
CREATE TABLE IF NOT EXISTS gate_results (
	id          UUID PRIMARY KEY,
	strategy_id TEXT NOT NULL,
	gate_type   TEXT NOT NULL,
	passed      BOOLEAN NOT NULL,
	result      JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_gate_results_lookup
	ON gate_results (strategy_id, gate_type, created_at DESC);

CREATE TABLE IF NOT EXISTS readiness_scorecards (
	id          UUID PRIMARY KEY,
	strategy_id TEXT NOT NULL,
	score       DOUBLE PRECISION NOT NULL,
	band        TEXT NOT NULL,
	payload     JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_readiness_lookup
	ON readiness_scorecards (strategy_id, created_at DESC);
`

// Store owns the connection pool and hands out the typed stores.
type Store struct {
	db *sqlx.DB
}

// Open connects to Postgres and ensures the schema exists.
func Open(dsn string) (*Store, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStore wraps an existing connection pool (used by tests).
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Gates returns the gate-result store backed by this pool.
func (s *Store) Gates() *GateStore {
	return &GateStore{db: s.db}
}

// Readiness returns the scorecard store backed by this pool.
func (s *Store) Readiness() *ReadinessStore {
	return &ReadinessStore{db: s.db}
}

// GateStore implements persistence.GateResultStore.
type GateStore struct {
	db *sqlx.DB
}

var _ persistence.GateResultStore = (*GateStore)(nil)
var _ persistence.ReadinessStore = (*ReadinessStore)(nil)

// Save persists one gate evaluation.
func (s *GateStore) Save(ctx context.Context, record persistence.GateRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	body, err := json.Marshal(record.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal gate result: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO gate_results (id, strategy_id, gate_type, passed, result, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		record.ID, record.StrategyID, string(record.GateType), record.Passed, body, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert gate result: %w", err)
	}

	log.Debug().Str("strategy_id", record.StrategyID).
		Str("gate_type", string(record.GateType)).
		Bool("passed", record.Passed).
		Msg("gate result persisted")
	return nil
}

// Latest returns the most recent gate record of the given type.
func (s *GateStore) Latest(ctx context.Context, strategyID string, gateType gates.GateType) (*persistence.GateRecord, error) {
	var row struct {
		ID         string    `db:"id"`
		StrategyID string    `db:"strategy_id"`
		GateType   string    `db:"gate_type"`
		Passed     bool      `db:"passed"`
		Result     []byte    `db:"result"`
		CreatedAt  time.Time `db:"created_at"`
	}

	err := s.db.GetContext(ctx, &row,
		`SELECT id, strategy_id, gate_type, passed, result, created_at
		 FROM gate_results
		 WHERE strategy_id = $1 AND gate_type = $2
		 ORDER BY created_at DESC LIMIT 1`,
		strategyID, string(gateType))
	if err == sql.ErrNoRows {
		return nil, persistence.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest gate result: %w", err)
	}

	record := persistence.GateRecord{
		ID:         row.ID,
		StrategyID: row.StrategyID,
		GateType:   gates.GateType(row.GateType),
		Passed:     row.Passed,
		CreatedAt:  row.CreatedAt,
	}
	if err := json.Unmarshal(row.Result, &record.Result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stored gate result: %w", err)
	}
	return &record, nil
}

// ReadinessStore implements persistence.ReadinessStore.
type ReadinessStore struct {
	db *sqlx.DB
}

// Save persists one readiness scorecard.
func (s *ReadinessStore) Save(ctx context.Context, record persistence.ReadinessRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	body, err := json.Marshal(record.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal readiness payload: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO readiness_scorecards (id, strategy_id, score, band, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		record.ID, record.StrategyID, record.Score, string(record.Band), body, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert readiness scorecard: %w", err)
	}

	log.Debug().Str("strategy_id", record.StrategyID).
		Float64("score", record.Score).
		Str("band", string(record.Band)).
		Msg("readiness scorecard persisted")
	return nil
}

// Latest returns the most recent scorecard for a strategy.
func (s *ReadinessStore) Latest(ctx context.Context, strategyID string) (*persistence.ReadinessRecord, error) {
	var row struct {
		ID         string    `db:"id"`
		StrategyID string    `db:"strategy_id"`
		Score      float64   `db:"score"`
		Band       string    `db:"band"`
		Payload    []byte    `db:"payload"`
		CreatedAt  time.Time `db:"created_at"`
	}

	err := s.db.GetContext(ctx, &row,
		`SELECT id, strategy_id, score, band, payload, created_at
		 FROM readiness_scorecards
		 WHERE strategy_id = $1
		 ORDER BY created_at DESC LIMIT 1`,
		strategyID)
	if err == sql.ErrNoRows {
		return nil, persistence.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest readiness scorecard: %w", err)
	}

	record := persistence.ReadinessRecord{
		ID:         row.ID,
		StrategyID: row.StrategyID,
		Score:      row.Score,
		Band:       readiness.Band(row.Band),
		CreatedAt:  row.CreatedAt,
	}
	if err := json.Unmarshal(row.Payload, &record.Payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stored readiness payload: %w", err)
	}
	return &record, nil
}
