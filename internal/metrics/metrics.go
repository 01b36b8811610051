package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"polyagent/internal/eventbus"
)

const namespace = "polyagent"

// Metrics holds the Prometheus collectors fed by the event bus.
type Metrics struct {
	registry *prometheus.Registry

	rounds         *prometheus.CounterVec
	toolCalls      *prometheus.CounterVec
	toolDuration   *prometheus.HistogramVec
	llmCalls       *prometheus.CounterVec
	llmTokens      *prometheus.CounterVec
	llmDuration    *prometheus.HistogramVec
	clarifications *prometheus.CounterVec
	runs           *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
}

// New creates the collectors on a private registry that also carries the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		rounds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "planning_rounds_total",
			Help: "Planning rounds completed, by agent.",
		}, []string{"agent"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "tool_invocations_total",
			Help: "Tool invocations, by tool and outcome.",
		}, []string{"tool", "outcome"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "tool_duration_seconds",
			Help:    "Tool execution time.",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),
		llmCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "llm_calls_total",
			Help: "Model calls, by provider and outcome.",
		}, []string{"provider", "outcome"}),
		llmTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "llm_tokens_total",
			Help: "Tokens reported by providers, by direction.",
		}, []string{"provider", "direction"}),
		llmDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "llm_duration_seconds",
			Help:    "Model call latency.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"provider"}),
		clarifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "clarifications_total",
			Help: "Clarifying questions asked, by agent.",
		}, []string{"agent"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "runs_total",
			Help: "Finished runs, by agent and outcome.",
		}, []string{"agent", "outcome"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "run_duration_seconds",
			Help:    "End-to-end run latency.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"agent"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.rounds, m.toolCalls, m.toolDuration,
		m.llmCalls, m.llmTokens, m.llmDuration,
		m.clarifications, m.runs, m.runDuration,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Subscribe feeds the collectors from bus.
func (m *Metrics) Subscribe(bus *eventbus.Bus) {
	bus.Subscribe(eventbus.TopicAgentThink, func(e eventbus.Event) {
		if p, ok := e.Payload.(eventbus.AgentThink); ok {
			m.rounds.WithLabelValues(p.Agent).Inc()
		}
	})
	bus.Subscribe(eventbus.TopicToolResult, func(e eventbus.Event) {
		if p, ok := e.Payload.(eventbus.ToolResult); ok {
			m.toolCalls.WithLabelValues(p.Tool, outcome(p.Err != nil)).Inc()
			m.toolDuration.WithLabelValues(p.Tool).Observe(p.Duration.Seconds())
		}
	})
	bus.Subscribe(eventbus.TopicLLMResponse, func(e eventbus.Event) {
		p, ok := e.Payload.(eventbus.LLMResponse)
		if !ok {
			return
		}
		m.llmCalls.WithLabelValues(p.Provider, outcome(p.Err != nil)).Inc()
		m.llmDuration.WithLabelValues(p.Provider).Observe(p.Duration.Seconds())
		m.llmTokens.WithLabelValues(p.Provider, "input").Add(float64(p.InputTokens))
		m.llmTokens.WithLabelValues(p.Provider, "output").Add(float64(p.OutputTokens))
	})
	bus.Subscribe(eventbus.TopicClarification, func(e eventbus.Event) {
		if p, ok := e.Payload.(eventbus.Clarification); ok {
			m.clarifications.WithLabelValues(p.Agent).Inc()
		}
	})
	bus.Subscribe(eventbus.TopicRunFinished, func(e eventbus.Event) {
		if p, ok := e.Payload.(eventbus.RunFinished); ok {
			m.runs.WithLabelValues(p.Agent, outcome(p.Failed)).Inc()
			m.runDuration.WithLabelValues(p.Agent).Observe(p.Duration.Seconds())
		}
	})
}

func outcome(failed bool) string {
	if failed {
		return "error"
	}
	return "ok"
}
