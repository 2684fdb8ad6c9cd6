// Package metrics provides Prometheus instrumentation for model calls and
// ability dispatches, plus a query service for aggregated usage.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder records office simulation metrics.
type Recorder struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	tokensTotal     *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	abilityTotal    *prometheus.CounterVec
	stepsTotal      *prometheus.CounterVec
}

// NewRecorder creates a recorder with its own registry.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Recorder{
		registry: registry,
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "osgpt_model_requests_total",
				Help: "Total number of model requests by model, actor, and status",
			},
			[]string{"model", "actor", "status", "error_type"},
		),
		tokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "osgpt_model_tokens_total",
				Help: "Estimated number of tokens used in model requests",
			},
			[]string{"model", "actor", "type"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "osgpt_model_request_duration_seconds",
				Help:    "Duration of model requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"model", "actor"},
		),
		abilityTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "osgpt_ability_calls_total",
				Help: "Total number of ability dispatches by ability and outcome",
			},
			[]string{"ability", "actor", "outcome"},
		),
		stepsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "osgpt_steps_total",
				Help: "Total number of executed steps by actor and stop reason",
			},
			[]string{"actor", "stop_reason"},
		),
	}
}

// ObserveRequest records one completed model request.
func (r *Recorder) ObserveRequest(
	model, actor string,
	promptTokens, completionTokens int,
	success bool,
	errorType string,
	duration time.Duration,
) {
	status := "success"
	if !success {
		status = "error"
	}
	r.requestsTotal.WithLabelValues(model, actor, status, errorType).Inc()
	if success {
		r.tokensTotal.WithLabelValues(model, actor, "prompt").Add(float64(promptTokens))
		r.tokensTotal.WithLabelValues(model, actor, "completion").Add(float64(completionTokens))
	}
	r.requestDuration.WithLabelValues(model, actor).Observe(duration.Seconds())
}

// ObserveAbility records one ability dispatch.
func (r *Recorder) ObserveAbility(ability, actor string, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	r.abilityTotal.WithLabelValues(ability, actor, outcome).Inc()
}

// ObserveStep records one executed step.
func (r *Recorder) ObserveStep(actor, stopReason string) {
	r.stepsTotal.WithLabelValues(actor, stopReason).Inc()
}

// Handler returns an HTTP handler exposing the recorder's registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and local inspection.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
