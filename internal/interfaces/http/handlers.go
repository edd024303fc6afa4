package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/aurelius/promotion/internal/engine"
	"github.com/aurelius/promotion/internal/gates"
	"github.com/aurelius/promotion/internal/identity"
	"github.com/aurelius/promotion/internal/ops"
	"github.com/aurelius/promotion/internal/parity"
	"github.com/aurelius/promotion/internal/persistence"
	"github.com/aurelius/promotion/internal/readiness"
	"github.com/aurelius/promotion/internal/telemetry"
)

// Handlers holds the evaluators and collaborators behind the API. The
// persistence fields are optional: a nil store or cache disables that
// side effect without changing response semantics.
type Handlers struct {
	Thresholds gates.CRVThresholds
	Scorer     *readiness.Scorer
	GateStore  persistence.GateResultStore
	ReadyStore persistence.ReadinessStore
	Cache      persistence.ScorecardCache
	Replay     *parity.ReplayChecker
	WorkDir    string
	Ops        *ops.Health
	Telemetry  *telemetry.Registry
}

// VerifyGateRequest is the gate verification request body. Evidence
// fields left null are missing-evidence sentinels for the evaluators.
type VerifyGateRequest struct {
	StrategyID        string                    `json:"strategy_id"`
	GateType          gates.GateType            `json:"gate_type"`
	StrategyExists    *bool                     `json:"strategy_exists,omitempty"`
	BacktestMetrics   *engine.NormalizedMetrics `json:"backtest_metrics,omitempty"`
	ValidationMetrics *gates.ValidationMetrics  `json:"validation_metrics,omitempty"`
	Thresholds        *gates.Override           `json:"thresholds,omitempty"`
}

// ScoreReadinessRequest is the readiness scoring request body.
type ScoreReadinessRequest struct {
	StrategyID string            `json:"strategy_id"`
	Signals    readiness.Signals `json:"signals"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// VerifyGate evaluates one trust gate over the submitted evidence. The
// product gate returns the full decision including block reasons and the
// maturity label; dev and CRV return the bare gate result.
func (h *Handlers) VerifyGate(w http.ResponseWriter, r *http.Request) {
	var req VerifyGateRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.StrategyID == "" {
		writeError(w, r, http.StatusBadRequest, "strategy_id is required")
		return
	}

	thresholds := req.Thresholds.Apply(h.Thresholds)
	if err := thresholds.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	strategyExists := true
	if req.StrategyExists != nil {
		strategyExists = *req.StrategyExists
	}
	evidence := gates.Evidence{
		StrategyID:     req.StrategyID,
		StrategyExists: strategyExists,
		Backtest:       req.BacktestMetrics,
		Validation:     req.ValidationMetrics,
		Thresholds:     &thresholds,
	}

	var result gates.GateResult
	var body any
	if req.GateType == gates.GateProduct {
		decision := gates.DecideProduct(evidence)
		result = decision.Result
		body = decision
	} else {
		var err error
		result, err = gates.Evaluate(req.GateType, evidence)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		body = result
	}

	h.Telemetry.GateEvaluations.WithLabelValues(string(req.GateType), string(result.GateStatus)).Inc()
	h.Telemetry.GateScore.WithLabelValues(string(req.GateType)).Observe(result.Score)

	h.persistGateResult(r, result)
	writeJSON(w, http.StatusOK, body)
}

// ScoreReadiness computes a fresh scorecard. The previous scorecard is
// read from the cache for transition deltas; cache errors degrade to a
// zero-delta transition.
func (h *Handlers) ScoreReadiness(w http.ResponseWriter, r *http.Request) {
	var req ScoreReadinessRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.StrategyID == "" {
		writeError(w, r, http.StatusBadRequest, "strategy_id is required")
		return
	}

	var previous *readiness.Payload
	if h.Cache != nil {
		cached, err := h.Cache.Get(r.Context(), req.StrategyID)
		if err != nil {
			log.Warn().Err(err).Str("strategy_id", req.StrategyID).
				Msg("scorecard cache read failed, scoring without transition baseline")
		} else {
			previous = cached
		}
	}

	payload := h.Scorer.Score(req.StrategyID, req.Signals, previous)
	h.recordReadiness(payload)

	if h.Cache != nil {
		if err := h.Cache.Put(r.Context(), payload); err != nil {
			log.Warn().Err(err).Str("strategy_id", req.StrategyID).Msg("scorecard cache write failed")
		}
	}
	if h.ReadyStore != nil {
		record := persistence.ReadinessRecord{
			StrategyID: payload.StrategyID,
			Score:      payload.Score,
			Band:       payload.Band,
			Payload:    payload,
		}
		if err := h.ReadyStore.Save(r.Context(), record); err != nil {
			log.Error().Err(err).Str("strategy_id", req.StrategyID).Msg("failed to persist scorecard")
		}
	}

	writeJSON(w, http.StatusOK, payload)
}

// VerifyReplayRequest is the replay determinism verification request body.
type VerifyReplayRequest struct {
	StrategyID string                 `json:"strategy_id"`
	Spec       identity.CanonicalSpec `json:"spec"`
	DataSource string                 `json:"data_source,omitempty"`
	DataPath   string                 `json:"data_path"`
}

// VerifyReplay runs the engine twice for the submitted spec and returns
// the normalized metrics with the parity verdict and lineage evidence.
// Run artifacts live in a per-request directory and are removed once the
// response carries the evidence.
func (h *Handlers) VerifyReplay(w http.ResponseWriter, r *http.Request) {
	if h.Replay == nil {
		writeError(w, r, http.StatusServiceUnavailable, "replay verification is not configured")
		return
	}

	var req VerifyReplayRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.StrategyID == "" {
		writeError(w, r, http.StatusBadRequest, "strategy_id is required")
		return
	}
	if req.DataPath == "" {
		writeError(w, r, http.StatusBadRequest, "data_path is required")
		return
	}

	workDir, err := os.MkdirTemp(h.WorkDir, "replay-")
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to create run directory")
		return
	}
	defer os.RemoveAll(workDir)

	metrics, err := h.Replay.Verify(r.Context(), req.Spec, req.DataSource, req.DataPath, workDir)
	if errors.Is(err, identity.ErrDataNotFound) {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		log.Error().Err(err).Str("strategy_id", req.StrategyID).Msg("replay verification failed")
		writeError(w, r, http.StatusBadGateway, "engine verification failed")
		return
	}

	writeJSON(w, http.StatusOK, metrics)
}

// StrategyGatesResponse aggregates the latest stored result per gate type
// plus the latest readiness scorecard.
type StrategyGatesResponse struct {
	StrategyID string                                `json:"strategy_id"`
	Gates      map[gates.GateType]*GateStatusSummary `json:"gates"`
	Readiness  *readiness.Payload                    `json:"readiness,omitempty"`
}

// GateStatusSummary is the condensed per-gate line on the status surface.
type GateStatusSummary struct {
	Passed      bool             `json:"passed"`
	GateStatus  gates.GateStatus `json:"gate_status"`
	Score       float64          `json:"score"`
	EvaluatedAt time.Time        `json:"evaluated_at"`
}

// StrategyGates serves the latest known gate state per type. Gate types
// never evaluated are present with a null entry so the shape is stable.
func (h *Handlers) StrategyGates(w http.ResponseWriter, r *http.Request) {
	if h.GateStore == nil {
		writeError(w, r, http.StatusServiceUnavailable, "gate result store is not configured")
		return
	}
	strategyID := mux.Vars(r)["strategy_id"]

	resp := StrategyGatesResponse{
		StrategyID: strategyID,
		Gates:      map[gates.GateType]*GateStatusSummary{},
	}
	for _, gateType := range []gates.GateType{gates.GateDev, gates.GateCRV, gates.GateProduct} {
		record, err := h.GateStore.Latest(r.Context(), strategyID, gateType)
		if errors.Is(err, persistence.ErrNotFound) {
			resp.Gates[gateType] = nil
			continue
		}
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "failed to load gate results")
			return
		}
		resp.Gates[gateType] = &GateStatusSummary{
			Passed:      record.Passed,
			GateStatus:  record.Result.GateStatus,
			Score:       record.Result.Score,
			EvaluatedAt: record.CreatedAt,
		}
	}

	if h.ReadyStore != nil {
		record, err := h.ReadyStore.Latest(r.Context(), strategyID)
		if err == nil {
			resp.Readiness = &record.Payload
		} else if !errors.Is(err, persistence.ErrNotFound) {
			log.Warn().Err(err).Str("strategy_id", strategyID).Msg("failed to load latest scorecard")
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Health serves the startup/component snapshot plus KPI counter totals.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	snapshot := h.Ops.Snapshot()
	status := http.StatusOK
	if snapshot.Status != ops.StatusHealthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]any{
		"status":     snapshot.Status,
		"components": snapshot.Components,
		"reasons":    snapshot.Reasons,
		"kpis":       h.Telemetry.KPISnapshot(),
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}

// NotFound serves JSON 404s so clients never see an HTML error page.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("no such route: %s %s", r.Method, r.URL.Path)})
}

func (h *Handlers) persistGateResult(r *http.Request, result gates.GateResult) {
	if h.GateStore == nil {
		return
	}
	record := persistence.GateRecord{
		StrategyID: result.StrategyID,
		GateType:   result.GateType,
		Passed:     result.Passed,
		Result:     result,
	}
	if err := h.GateStore.Save(r.Context(), record); err != nil {
		log.Error().Err(err).Str("strategy_id", result.StrategyID).
			Str("gate_type", string(result.GateType)).Msg("failed to persist gate result")
	}
}

func (h *Handlers) recordReadiness(payload readiness.Payload) {
	h.Telemetry.ReadinessScore.Observe(payload.Score)
	h.Telemetry.ReadinessBand.WithLabelValues(string(payload.Band)).Inc()
	for _, blocker := range payload.HardBlockers {
		h.Telemetry.HardBlockers.WithLabelValues(blocker).Inc()
	}
	h.Telemetry.KPIEvents.WithLabelValues("reproducibility_pass").Add(float64(payload.KPIEvents.ReproducibilityPass))
	h.Telemetry.KPIEvents.WithLabelValues("onboarding_reliability").Add(float64(payload.KPIEvents.OnboardingReliability))
	h.Telemetry.KPIEvents.WithLabelValues("false_promotion_proxy").Add(float64(payload.KPIEvents.FalsePromotionProxy))
}

// decodeStrict rejects unknown fields so malformed evidence fails loudly
// at the boundary instead of evaluating as missing.
func decodeStrict(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	requestID, _ := r.Context().Value(requestIDKey).(string)
	writeJSON(w, status, errorResponse{Error: message, RequestID: requestID})
}
