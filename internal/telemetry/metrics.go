// Package telemetry exposes Prometheus metrics for gate evaluations,
// readiness scoring, and engine invocations.
package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog/log"
)

// Registry holds every metric the promotion service records.
type Registry struct {
	registry *prometheus.Registry

	GateEvaluations  *prometheus.CounterVec
	GateScore        *prometheus.HistogramVec
	ReadinessScore   prometheus.Histogram
	ReadinessBand    *prometheus.CounterVec
	HardBlockers     *prometheus.CounterVec
	KPIEvents        *prometheus.CounterVec
	EngineRuns       *prometheus.CounterVec
	EngineDuration   prometheus.Histogram
	ParityViolations prometheus.Counter
}

// NewRegistry creates and registers all promotion metrics on a private
// Prometheus registry.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		GateEvaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promotion_gate_evaluations_total",
				Help: "Gate evaluations by gate type and resulting status",
			},
			[]string{"gate_type", "status"},
		),

		GateScore: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "promotion_gate_score",
				Help:    "Gate score distribution (0-100) by gate type",
				Buckets: []float64{0, 25, 50, 75, 90, 100},
			},
			[]string{"gate_type"},
		),

		ReadinessScore: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "promotion_readiness_score",
				Help:    "Weighted readiness score distribution (0-100)",
				Buckets: []float64{0, 50, 70, 85, 95, 100},
			},
		),

		ReadinessBand: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promotion_readiness_band_total",
				Help: "Readiness evaluations by final decision band",
			},
			[]string{"band"},
		),

		HardBlockers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promotion_hard_blockers_total",
				Help: "Hard blockers observed during readiness scoring",
			},
			[]string{"blocker"},
		),

		KPIEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promotion_kpi_events_total",
				Help: "KPI event occurrences (boolean KPIs counted when true)",
			},
			[]string{"kpi"},
		),

		EngineRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promotion_engine_runs_total",
				Help: "External engine invocations by result",
			},
			[]string{"result"},
		),

		EngineDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "promotion_engine_duration_seconds",
				Help:    "External engine invocation duration",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
			},
		),

		ParityViolations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "promotion_parity_violations_total",
				Help: "Replay parity violations across all verifications",
			},
		),
	}

	r.registry.MustRegister(
		r.GateEvaluations, r.GateScore,
		r.ReadinessScore, r.ReadinessBand, r.HardBlockers, r.KPIEvents,
		r.EngineRuns, r.EngineDuration, r.ParityViolations,
	)
	return r
}

// Prometheus returns the underlying registry for /metrics exposition.
func (r *Registry) Prometheus() *prometheus.Registry {
	return r.registry
}

// KPISnapshot extracts current KPI counter totals from the gathered
// metric families, for inclusion in operator status responses.
func (r *Registry) KPISnapshot() map[string]float64 {
	families, err := r.registry.Gather()
	if err != nil {
		log.Error().Err(err).Msg("failed to gather metrics for KPI snapshot")
		return map[string]float64{}
	}

	snapshot := map[string]float64{}
	for _, family := range families {
		if family.GetName() != "promotion_kpi_events_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			snapshot[kpiLabel(metric)] = metric.GetCounter().GetValue()
		}
	}
	return snapshot
}

func kpiLabel(metric *dto.Metric) string {
	for _, pair := range metric.GetLabel() {
		if pair.GetName() == "kpi" {
			return pair.GetValue()
		}
	}
	return fmt.Sprintf("unlabeled_%p", metric)
}
