package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// VoiceMetrics records voice turn outcomes, executed actions and model latency.
// A nil *VoiceMetrics is a valid no-op recorder.
type VoiceMetrics struct {
	turns         *prometheus.CounterVec
	actions       *prometheus.CounterVec
	modelDuration prometheus.Histogram
	toolCalls     *prometheus.CounterVec
}

// NewVoiceMetrics registers the voice metrics on the provided registerer.
func NewVoiceMetrics(reg prometheus.Registerer) *VoiceMetrics {
	if reg == nil {
		return &VoiceMetrics{}
	}
	turns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_turns_total",
		Help: "Voice turns by terminal outcome.",
	}, []string{"outcome"})
	actions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_actions_total",
		Help: "Catalog actions decided by the model, by final status.",
	}, []string{"action", "status"})
	modelDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_model_duration_seconds",
		Help:    "Wall time of one model invocation, tool calls included.",
		Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
	})
	toolCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_tool_calls_total",
		Help: "Intermediate tool calls made by the model.",
	}, []string{"action"})
	reg.MustRegister(turns, actions, modelDuration, toolCalls)
	return &VoiceMetrics{
		turns:         turns,
		actions:       actions,
		modelDuration: modelDuration,
		toolCalls:     toolCalls,
	}
}

func (m *VoiceMetrics) IncTurn(outcome string) {
	if m == nil || m.turns == nil {
		return
	}
	m.turns.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *VoiceMetrics) IncAction(action, status string) {
	if m == nil || m.actions == nil {
		return
	}
	m.actions.WithLabelValues(normalizeLabel(action), normalizeLabel(status)).Inc()
}

func (m *VoiceMetrics) ObserveModel(d time.Duration) {
	if m == nil || m.modelDuration == nil {
		return
	}
	m.modelDuration.Observe(d.Seconds())
}

func (m *VoiceMetrics) IncToolCall(action string) {
	if m == nil || m.toolCalls == nil {
		return
	}
	m.toolCalls.WithLabelValues(normalizeLabel(action)).Inc()
}

// Handler exposes the gatherer in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
