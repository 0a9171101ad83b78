// Copyright (c) 2025-present Daognosis, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	MetricsNamespace       = "govgate"
	MetricsSubsystemSystem = "system"
	MetricsSubsystemHTTP   = "http"
	MetricsSubsystemAPI    = "api"
	MetricsSubsystemLLM    = "llm"
	MetricsSubsystemMCP    = "mcp"

	MetricsVersionLabel = "version"
)

type Metrics interface {
	GetRegistry() *prometheus.Registry

	ObserveAPIEndpointDuration(handler, method, statusCode string, elapsed float64)

	IncrementHTTPRequests()
	IncrementHTTPErrors()

	ObserveLLMRequest(llmName string)
	ObserveLLMRetry(step string)

	ObserveToolCall(serverName string, success bool)
	ObserveActiveStreams(delta int)
}

type InstanceInfo struct {
	Version string
}

// metrics instruments the gateway in prometheus.
type metrics struct {
	registry *prometheus.Registry

	serverStartTime prometheus.Gauge
	serverInfo      prometheus.Gauge

	apiTime *prometheus.HistogramVec

	httpRequestsTotal prometheus.Counter
	httpErrorsTotal   prometheus.Counter

	llmRequestsTotal *prometheus.CounterVec
	llmRetriesTotal  *prometheus.CounterVec

	toolCallsTotal *prometheus.CounterVec
	activeStreams  prometheus.Gauge
}

// NewMetrics Factory method to create a new metrics collector.
func NewMetrics(info InstanceInfo) Metrics {
	m := &metrics{}

	m.registry = prometheus.NewRegistry()
	options := collectors.ProcessCollectorOpts{
		Namespace: MetricsNamespace,
	}
	m.registry.MustRegister(collectors.NewProcessCollector(options))
	m.registry.MustRegister(collectors.NewGoCollector())

	m.serverStartTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Subsystem: MetricsSubsystemSystem,
		Name:      "server_start_timestamp_seconds",
		Help:      "The time the server started.",
	})
	m.serverStartTime.SetToCurrentTime()
	m.registry.MustRegister(m.serverStartTime)

	m.serverInfo = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Subsystem: MetricsSubsystemSystem,
		Name:      "server_info",
		Help:      "The server version.",
		ConstLabels: map[string]string{
			MetricsVersionLabel: info.Version,
		},
	})
	m.serverInfo.Set(1)
	m.registry.MustRegister(m.serverInfo)

	m.apiTime = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystemAPI,
			Name:      "time_seconds",
			Help:      "Time to execute the api handler",
		},
		[]string{"handler", "method", "status_code"},
	)
	m.registry.MustRegister(m.apiTime)

	m.httpRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: MetricsSubsystemHTTP,
		Name:      "requests_total",
		Help:      "The total number of http API requests.",
	})
	m.registry.MustRegister(m.httpRequestsTotal)

	m.httpErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: MetricsSubsystemHTTP,
		Name:      "errors_total",
		Help:      "The total number of http API errors.",
	})
	m.registry.MustRegister(m.httpErrorsTotal)

	m.llmRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: MetricsSubsystemLLM,
		Name:      "requests_total",
		Help:      "The total number of LLM requests made.",
	}, []string{"llm_name"})
	m.registry.MustRegister(m.llmRequestsTotal)

	m.llmRetriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: MetricsSubsystemLLM,
		Name:      "retries_total",
		Help:      "The total number of LLM requests retried after an overload response.",
	}, []string{"step"})
	m.registry.MustRegister(m.llmRetriesTotal)

	m.toolCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: MetricsSubsystemMCP,
		Name:      "tool_calls_total",
		Help:      "The total number of MCP tool invocations.",
	}, []string{"server", "status"})
	m.registry.MustRegister(m.toolCallsTotal)

	m.activeStreams = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Subsystem: MetricsSubsystemHTTP,
		Name:      "active_event_streams",
		Help:      "The number of currently open event streams.",
	})
	m.registry.MustRegister(m.activeStreams)

	return m
}

func (m *metrics) GetRegistry() *prometheus.Registry {
	return m.registry
}

func (m *metrics) ObserveAPIEndpointDuration(handler, method, statusCode string, elapsed float64) {
	if m != nil {
		m.apiTime.With(prometheus.Labels{"handler": handler, "method": method, "status_code": statusCode}).Observe(elapsed)
	}
}

func (m *metrics) IncrementHTTPRequests() {
	if m != nil {
		m.httpRequestsTotal.Inc()
	}
}

func (m *metrics) IncrementHTTPErrors() {
	if m != nil {
		m.httpErrorsTotal.Inc()
	}
}

func (m *metrics) ObserveLLMRequest(llmName string) {
	if m != nil {
		m.llmRequestsTotal.With(prometheus.Labels{"llm_name": llmName}).Inc()
	}
}

func (m *metrics) ObserveLLMRetry(step string) {
	if m != nil {
		m.llmRetriesTotal.With(prometheus.Labels{"step": step}).Inc()
	}
}

func (m *metrics) ObserveToolCall(serverName string, success bool) {
	if m != nil {
		status := "ok"
		if !success {
			status = "error"
		}
		m.toolCallsTotal.With(prometheus.Labels{"server": serverName, "status": status}).Inc()
	}
}

func (m *metrics) ObserveActiveStreams(delta int) {
	if m != nil {
		m.activeStreams.Add(float64(delta))
	}
}
