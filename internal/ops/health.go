// Package ops tracks startup/component health for the service. The
// readiness scorer consumes its snapshot as the Ops signal pair
// (startup_status, startup_reasons).
package ops

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Component states.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// ComponentStatus is the recorded state of one dependency.
type ComponentStatus struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Snapshot is a point-in-time view of overall service health.
type Snapshot struct {
	Status     string                     `json:"status"`
	Components map[string]ComponentStatus `json:"components"`
	Reasons    []string                   `json:"reasons"`
}

// Health aggregates per-component status. Safe for concurrent use.
type Health struct {
	mu         sync.RWMutex
	components map[string]ComponentStatus
	order      []string
}

// NewHealth creates an empty health tracker. With no components recorded
// the service reports healthy.
func NewHealth() *Health {
	return &Health{components: map[string]ComponentStatus{}}
}

// SetComponent records the state of a named dependency. Degradations are
// logged once at the point of recording.
func (h *Health) SetComponent(name, status, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.components[name]; !exists {
		h.order = append(h.order, name)
	}
	h.components[name] = ComponentStatus{Status: status, Reason: reason}

	if status != StatusHealthy {
		log.Warn().Str("component", name).Str("status", status).Str("reason", reason).
			Msg("component degraded at startup")
	}
}

// Snapshot recomputes overall status from component states. Reasons keep
// component registration order so repeated snapshots compare stably.
func (h *Health) Snapshot() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()

	components := make(map[string]ComponentStatus, len(h.components))
	reasons := []string{}
	overall := StatusHealthy

	for _, name := range h.order {
		status := h.components[name]
		components[name] = status
		if status.Status != StatusHealthy {
			overall = StatusDegraded
			reason := status.Reason
			if reason == "" {
				reason = name + "_" + status.Status
			}
			reasons = append(reasons, reason)
		}
	}

	return Snapshot{Status: overall, Components: components, Reasons: reasons}
}
