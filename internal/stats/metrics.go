// Package stats espone le metriche Prometheus dell'orchestratore.
package stats

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Metrics raccoglie le metriche su un registry dedicato. Un *Metrics nil
// è valido e non registra nulla.
type Metrics struct {
	registry *prometheus.Registry

	generationRequests *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	tokensProcessed    *prometheus.CounterVec
	recoveryDecisions  *prometheus.CounterVec
	cacheLookups       *prometheus.CounterVec
	consensusScore     prometheus.Histogram

	agentExecutions *prometheus.CounterVec
	agentDuration   *prometheus.HistogramVec

	workflowExecutions *prometheus.CounterVec
	workflowDuration   *prometheus.HistogramVec
	workflowStepErrors *prometheus.CounterVec
}

var durationBuckets = []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000}

// New crea le metriche con il namespace indicato
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "goleapcode"
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		generationRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_requests_total",
			Help:      "Provider calls made by the generation engine by model, provider and status",
		}, []string{"model", "provider", "status"}),

		generationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_milliseconds",
			Help:      "Provider call duration in milliseconds",
			Buckets:   durationBuckets,
		}, []string{"model"}),

		tokensProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_processed_total",
			Help:      "Total number of tokens reported by providers",
		}, []string{"model"}),

		recoveryDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recovery_decisions_total",
			Help:      "Recovery decisions taken after a failed generation by error kind",
		}, []string{"kind"}),

		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Response cache lookups by result",
		}, []string{"result"}),

		consensusScore: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "consensus_score",
			Help:      "Consensus score of multi-model generations",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),

		agentExecutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_executions_total",
			Help:      "Agent executions by agent and status",
		}, []string{"agent", "status"}),

		agentDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_duration_milliseconds",
			Help:      "Agent execution duration in milliseconds",
			Buckets:   durationBuckets,
		}, []string{"agent"}),

		workflowExecutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_executions_total",
			Help:      "Workflow executions by workflow and status",
		}, []string{"workflow", "status"}),

		workflowDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_duration_milliseconds",
			Help:      "Workflow execution duration in milliseconds",
			Buckets:   durationBuckets,
		}, []string{"workflow"}),

		workflowStepErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_step_errors_total",
			Help:      "Failed workflow steps by workflow and agent",
		}, []string{"workflow", "agent"}),
	}
}

// Registry restituisce il registry Prometheus
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler restituisce l'handler HTTP per /metrics
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// ObserveGeneration registra una chiamata al provider
func (m *Metrics) ObserveGeneration(model, provider string, d time.Duration, tokens int, err error) {
	if m == nil {
		return
	}
	m.generationRequests.WithLabelValues(model, provider, status(err)).Inc()
	m.generationDuration.WithLabelValues(model).Observe(millis(d))
	if err == nil && tokens > 0 {
		m.tokensProcessed.WithLabelValues(model).Add(float64(tokens))
	}
}

// ObserveRecovery registra una decisione di recovery
func (m *Metrics) ObserveRecovery(kind string) {
	if m == nil {
		return
	}
	m.recoveryDecisions.WithLabelValues(kind).Inc()
}

// ObserveCache registra l'esito di una lettura dalla cache
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveConsensus registra il punteggio di consenso
func (m *Metrics) ObserveConsensus(score float64) {
	if m == nil {
		return
	}
	m.consensusScore.Observe(score)
}

// ObserveAgent registra l'esecuzione di un agente
func (m *Metrics) ObserveAgent(agent string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.agentExecutions.WithLabelValues(agent, status(err)).Inc()
	m.agentDuration.WithLabelValues(agent).Observe(millis(d))
}

// ObserveWorkflow registra l'esecuzione di un workflow
func (m *Metrics) ObserveWorkflow(workflow string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.workflowExecutions.WithLabelValues(workflow, status(err)).Inc()
	m.workflowDuration.WithLabelValues(workflow).Observe(millis(d))
}

// ObserveStepError registra uno step di workflow fallito
func (m *Metrics) ObserveStepError(workflow, agent string) {
	if m == nil {
		return
	}
	m.workflowStepErrors.WithLabelValues(workflow, agent).Inc()
}
