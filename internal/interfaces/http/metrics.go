package http

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics returns the Prometheus exposition handler for the service
// registry.
func (h *Handlers) Metrics() http.Handler {
	return promhttp.HandlerFor(h.Telemetry.Prometheus(), promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
