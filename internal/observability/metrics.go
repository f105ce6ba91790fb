package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	transportRequestsTotal   *prometheus.CounterVec
	transportRequestDuration *prometheus.HistogramVec
	httpProbeTotal           *prometheus.CounterVec
	activeSessions           prometheus.Gauge
	discoveredTools          *prometheus.GaugeVec

	toolCallTotal    *prometheus.CounterVec
	toolCallDuration *prometheus.HistogramVec

	agentRunTotal     *prometheus.CounterVec
	agentRunDuration  prometheus.Histogram
	plannerFailures   prometheus.Counter
	composerFallbacks prometheus.Counter
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			transportRequestsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "toolwire_transport_requests_total",
					Help: "Total transport requests by transport, method and status.",
				},
				[]string{"transport", "method", "status"},
			),
			transportRequestDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "toolwire_transport_request_duration_seconds",
					Help:    "Transport request duration in seconds by transport and method.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"transport", "method"},
			),
			httpProbeTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "toolwire_http_probe_total",
					Help: "HTTP shim probe attempts by probe and status.",
				},
				[]string{"probe", "status"},
			),
			activeSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "toolwire_active_sessions",
					Help: "Number of live transport sessions.",
				},
			),
			discoveredTools: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "toolwire_discovered_tools",
					Help: "Tools in the last discovered catalog by transport.",
				},
				[]string{"transport"},
			),
			toolCallTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "toolwire_tool_call_total",
					Help: "Total tool invocations by tool and status.",
				},
				[]string{"tool", "status"},
			),
			toolCallDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "toolwire_tool_call_duration_seconds",
					Help:    "Tool invocation duration in seconds by tool.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tool"},
			),
			agentRunTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "toolwire_agent_run_total",
					Help: "Total agent runs by final state.",
				},
				[]string{"state"},
			),
			agentRunDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "toolwire_agent_run_duration_seconds",
					Help:    "Agent run duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			plannerFailures: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "toolwire_planner_failures_total",
					Help: "Plans that degraded to no tool because of a completion or parse failure.",
				},
			),
			composerFallbacks: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "toolwire_composer_fallbacks_total",
					Help: "Responses built from the fallback text after a completion failure.",
				},
			),
		}

		prometheus.MustRegister(
			m.transportRequestsTotal,
			m.transportRequestDuration,
			m.httpProbeTotal,
			m.activeSessions,
			m.discoveredTools,
			m.toolCallTotal,
			m.toolCallDuration,
			m.agentRunTotal,
			m.agentRunDuration,
			m.plannerFailures,
			m.composerFallbacks,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

func RecordTransportRequest(transport, method string, duration time.Duration, success bool) {
	m := getMetrics()
	m.transportRequestsTotal.WithLabelValues(transport, method, status(success)).Inc()
	m.transportRequestDuration.WithLabelValues(transport, method).Observe(duration.Seconds())
}

func RecordHTTPProbe(probe string, success bool) {
	m := getMetrics()
	m.httpProbeTotal.WithLabelValues(probe, status(success)).Inc()
}

func SetActiveSessions(count int) {
	m := getMetrics()
	m.activeSessions.Set(float64(count))
}

func SetDiscoveredTools(transport string, count int) {
	m := getMetrics()
	m.discoveredTools.WithLabelValues(transport).Set(float64(count))
}

func RecordToolCall(tool string, duration time.Duration, success bool) {
	m := getMetrics()
	m.toolCallTotal.WithLabelValues(tool, status(success)).Inc()
	m.toolCallDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

func RecordAgentRun(state string, duration time.Duration) {
	m := getMetrics()
	m.agentRunTotal.WithLabelValues(state).Inc()
	m.agentRunDuration.Observe(duration.Seconds())
}

func RecordPlannerFailure() {
	getMetrics().plannerFailures.Inc()
}

func RecordComposerFallback() {
	getMetrics().composerFallbacks.Inc()
}
