package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurelius/promotion/internal/config"
	"github.com/aurelius/promotion/internal/engine"
	"github.com/aurelius/promotion/internal/gates"
	"github.com/aurelius/promotion/internal/identity"
	"github.com/aurelius/promotion/internal/ops"
	"github.com/aurelius/promotion/internal/parity"
	"github.com/aurelius/promotion/internal/persistence"
	"github.com/aurelius/promotion/internal/readiness"
	"github.com/aurelius/promotion/internal/telemetry"
)

type memGateStore struct {
	records []persistence.GateRecord
}

func (m *memGateStore) Save(ctx context.Context, record persistence.GateRecord) error {
	m.records = append(m.records, record)
	return nil
}

func (m *memGateStore) Latest(ctx context.Context, strategyID string, gateType gates.GateType) (*persistence.GateRecord, error) {
	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].StrategyID == strategyID && m.records[i].GateType == gateType {
			record := m.records[i]
			return &record, nil
		}
	}
	return nil, persistence.ErrNotFound
}

type memReadyStore struct {
	records []persistence.ReadinessRecord
}

func (m *memReadyStore) Save(ctx context.Context, record persistence.ReadinessRecord) error {
	m.records = append(m.records, record)
	return nil
}

func (m *memReadyStore) Latest(ctx context.Context, strategyID string) (*persistence.ReadinessRecord, error) {
	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].StrategyID == strategyID {
			record := m.records[i]
			return &record, nil
		}
	}
	return nil, persistence.ErrNotFound
}

type memCache struct {
	payloads map[string]readiness.Payload
}

func (m *memCache) Put(ctx context.Context, payload readiness.Payload) error {
	if m.payloads == nil {
		m.payloads = map[string]readiness.Payload{}
	}
	m.payloads[payload.StrategyID] = payload
	return nil
}

func (m *memCache) Get(ctx context.Context, strategyID string) (*readiness.Payload, error) {
	payload, ok := m.payloads[strategyID]
	if !ok {
		return nil, nil
	}
	return &payload, nil
}

type fixture struct {
	router     http.Handler
	handlers   *Handlers
	gateStore  *memGateStore
	readyStore *memReadyStore
	cache      *memCache
	health     *ops.Health
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	scorer, err := readiness.NewScorer(readiness.DefaultConfig())
	require.NoError(t, err)

	f := &fixture{
		gateStore:  &memGateStore{},
		readyStore: &memReadyStore{},
		cache:      &memCache{},
		health:     ops.NewHealth(),
	}
	handlers := &Handlers{
		Thresholds: gates.DefaultCRVThresholds(),
		Scorer:     scorer,
		GateStore:  f.gateStore,
		ReadyStore: f.readyStore,
		Cache:      f.cache,
		Ops:        f.health,
		Telemetry:  telemetry.NewRegistry(),
	}

	cfg := config.Default().HTTP
	cfg.Port = 0
	server, err := NewServer(cfg, handlers)
	require.NoError(t, err)
	f.handlers = handlers
	f.router = server.Router()
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	recorder := httptest.NewRecorder()
	f.router.ServeHTTP(recorder, req)
	return recorder
}

func passingMetrics() *engine.NormalizedMetrics {
	return &engine.NormalizedMetrics{
		TotalReturn:           18.5,
		SharpeRatio:           1.75,
		MaxDrawdown:           -12.5,
		ParityCheck:           engine.ParityCheck{Checked: true, Passed: true, Violations: map[string]engine.ParityViolation{}},
		ReplayPass:            true,
		RunIdentity:           identity.RunIdentity{SpecHash: "abc", DataHash: "def", Seed: "42", EngineVersion: "engine-2.1.0"},
		DataProvenance:        engine.DataProvenance{Source: "csv", Path: "data/spy.csv", DataHash: "def"},
		TransformationLineage: []engine.LineageStep{{Step: "execute_engine", Details: "backtest"}},
		PolicyOutcomes:        engine.PolicyOutcomes{Recorded: true},
		ArtifactLinks:         engine.ArtifactNames(),
		ExecutionMode:         "engine",
	}
}

func TestVerifyGateDev(t *testing.T) {
	f := newFixture(t)
	sharpe := 0.8

	recorder := f.do(t, "POST", "/v1/gates/verify", VerifyGateRequest{
		StrategyID:      "strat-1",
		GateType:        gates.GateDev,
		BacktestMetrics: passingMetrics(),
		Thresholds:      &gates.Override{MinSharpe: &sharpe},
	})
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "application/json", recorder.Header().Get("Content-Type"))
	assert.NotEmpty(t, recorder.Header().Get("X-Request-ID"))

	var result gates.GateResult
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
	assert.True(t, result.Passed)
	assert.Equal(t, gates.GateDev, result.GateType)
	assert.Len(t, result.Checks, 4)

	require.Len(t, f.gateStore.records, 1, "gate results are persisted after evaluation")
	assert.Equal(t, "strat-1", f.gateStore.records[0].StrategyID)
}

func TestVerifyGateProductReturnsDecision(t *testing.T) {
	f := newFixture(t)
	sharpe, drawdown, ret := 0.8, -25.0, 5.0

	recorder := f.do(t, "POST", "/v1/gates/verify", VerifyGateRequest{
		StrategyID:        "strat-1",
		GateType:          gates.GateProduct,
		BacktestMetrics:   passingMetrics(),
		ValidationMetrics: &gates.ValidationMetrics{Status: "completed"},
		Thresholds:        &gates.Override{MinSharpe: &sharpe, MaxDrawdown: &drawdown, MinReturn: &ret},
	})
	require.Equal(t, http.StatusOK, recorder.Code)

	var decision gates.ProductDecision
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &decision))
	assert.True(t, decision.ProductionReady)
	assert.Equal(t, "production", string(decision.MaturityLabel))
	assert.Empty(t, decision.BlockReasons)
}

func TestVerifyGateRejectsBadRequests(t *testing.T) {
	f := newFixture(t)

	missingID := f.do(t, "POST", "/v1/gates/verify", VerifyGateRequest{GateType: gates.GateDev})
	assert.Equal(t, http.StatusBadRequest, missingID.Code)

	unknownGate := f.do(t, "POST", "/v1/gates/verify", VerifyGateRequest{StrategyID: "s", GateType: "staging"})
	assert.Equal(t, http.StatusBadRequest, unknownGate.Code)

	req := httptest.NewRequest("POST", "/v1/gates/verify",
		bytes.NewReader([]byte(`{"strategy_id":"s","gate_type":"dev","surprise":true}`)))
	recorder := httptest.NewRecorder()
	f.router.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusBadRequest, recorder.Code, "unknown fields are rejected at the boundary")
}

func TestScoreReadinessHealthy(t *testing.T) {
	f := newFixture(t)

	recorder := f.do(t, "POST", "/v1/readiness/score", ScoreReadinessRequest{
		StrategyID: "strat-1",
		Signals:    readiness.HealthySignals(),
	})
	require.Equal(t, http.StatusOK, recorder.Code)

	var payload readiness.Payload
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	assert.InDelta(t, 100.0, payload.Score, 1e-9)
	assert.Equal(t, readiness.BandGreen, payload.Band)

	require.Len(t, f.readyStore.records, 1)
	assert.Contains(t, f.cache.payloads, "strat-1")
}

func TestScoreReadinessUsesCachedPrevious(t *testing.T) {
	f := newFixture(t)

	degraded := readiness.HealthySignals()
	degraded.RunIdentityPresent = false
	first := f.do(t, "POST", "/v1/readiness/score", ScoreReadinessRequest{StrategyID: "strat-1", Signals: degraded})
	require.Equal(t, http.StatusOK, first.Code)

	second := f.do(t, "POST", "/v1/readiness/score", ScoreReadinessRequest{StrategyID: "strat-1", Signals: readiness.HealthySignals()})
	require.Equal(t, http.StatusOK, second.Code)

	var payload readiness.Payload
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &payload))
	assert.InDelta(t, 92.5, payload.Transition.PreviousScore, 1e-9)
	assert.InDelta(t, 7.5, payload.Transition.ScoreDelta, 1e-9)
	assert.Equal(t, []string{"D"}, payload.Transition.ChangedComponents)
}

// stubRunner writes one fixed stats payload per invocation, standing in
// for the external engine binary.
type stubRunner struct {
	stats engine.Stats
}

func (r *stubRunner) Run(ctx context.Context, specPath, dataPath, outDir string) error {
	data, err := json.Marshal(r.stats)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outDir, "stats.json"), data, 0o644)
}

func (r *stubRunner) Version(ctx context.Context) (string, error) {
	return "engine-test", nil
}

func replayFixture(t *testing.T) (*fixture, string) {
	t.Helper()
	f := newFixture(t)

	runner := &stubRunner{stats: engine.Stats{TotalReturn: 0.185, SharpeRatio: 1.75, MaxDrawdown: 0.125}}
	checker, err := parity.NewReplayChecker(runner, identity.NewBuilder(runner), parity.DefaultReplayCheckerConfig())
	require.NoError(t, err)
	f.handlers.Replay = checker.WithMetrics(f.handlers.Telemetry)
	f.handlers.WorkDir = t.TempDir()

	dataPath := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(dataPath, []byte("date,close\n2024-01-02,100\n"), 0o644))
	return f, dataPath
}

func replaySpec() identity.CanonicalSpec {
	return identity.CanonicalSpec{
		InitialCash:  100000,
		Seed:         7,
		DataPipeline: "csv",
		Strategy:     identity.StrategyParams{Type: "vol_target", Symbol: "SPY", Lookback: 20},
		CostModel:    identity.DefaultCostModel(),
	}
}

func TestVerifyReplayEndpoint(t *testing.T) {
	f, dataPath := replayFixture(t)

	recorder := f.do(t, "POST", "/v1/replay/verify", VerifyReplayRequest{
		StrategyID: "strat-1",
		Spec:       replaySpec(),
		DataSource: "csv",
		DataPath:   dataPath,
	})
	require.Equal(t, http.StatusOK, recorder.Code)

	var metrics engine.NormalizedMetrics
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &metrics))
	assert.True(t, metrics.ParityCheck.Checked)
	assert.True(t, metrics.ParityCheck.Passed)
	assert.InDelta(t, 18.5, metrics.TotalReturn, 1e-9)
	assert.Equal(t, "engine-test", metrics.RunIdentity.EngineVersion)
}

func TestVerifyReplayEndpointRejectsMissingData(t *testing.T) {
	f, _ := replayFixture(t)

	recorder := f.do(t, "POST", "/v1/replay/verify", VerifyReplayRequest{
		StrategyID: "strat-1",
		Spec:       replaySpec(),
		DataPath:   filepath.Join(t.TempDir(), "missing.csv"),
	})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "data file not found")
}

func TestVerifyReplayEndpointNotConfigured(t *testing.T) {
	f := newFixture(t)

	recorder := f.do(t, "POST", "/v1/replay/verify", VerifyReplayRequest{
		StrategyID: "strat-1",
		DataPath:   "data.csv",
	})
	assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
}

func TestStrategyGatesAggregation(t *testing.T) {
	f := newFixture(t)

	verify := f.do(t, "POST", "/v1/gates/verify", VerifyGateRequest{
		StrategyID:      "strat-1",
		GateType:        gates.GateDev,
		BacktestMetrics: passingMetrics(),
	})
	require.Equal(t, http.StatusOK, verify.Code)

	recorder := f.do(t, "GET", "/v1/strategies/strat-1/gates", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var resp StrategyGatesResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, "strat-1", resp.StrategyID)
	require.NotNil(t, resp.Gates[gates.GateDev])
	assert.True(t, resp.Gates[gates.GateDev].Passed)
	assert.Nil(t, resp.Gates[gates.GateCRV], "never-evaluated gates appear as null")
	assert.Nil(t, resp.Gates[gates.GateProduct])
}

func TestHealthEndpoint(t *testing.T) {
	f := newFixture(t)

	healthy := f.do(t, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, healthy.Code)

	f.health.SetComponent("postgres", ops.StatusDegraded, "postgres_unreachable")
	degraded := f.do(t, "GET", "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, degraded.Code)
	assert.Contains(t, degraded.Body.String(), "postgres_unreachable")
}

func TestNotFoundIsJSON(t *testing.T) {
	f := newFixture(t)

	recorder := f.do(t, "GET", "/nope", nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "no such route")
}

func TestMetricsExposition(t *testing.T) {
	f := newFixture(t)

	f.do(t, "POST", "/v1/gates/verify", VerifyGateRequest{
		StrategyID:      "strat-1",
		GateType:        gates.GateDev,
		BacktestMetrics: passingMetrics(),
	})

	recorder := f.do(t, "GET", "/metrics", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "promotion_gate_evaluations_total")
	assert.Contains(t, recorder.Body.String(), "promotion_parity_violations_total")
	assert.Contains(t, recorder.Body.String(), "promotion_engine_duration_seconds")
}
