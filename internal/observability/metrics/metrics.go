package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "chairside"

var (
	// ToolInvocations counts tool executions by tool name and outcome.
	ToolInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "conversation",
		Name:      "tool_invocations_total",
		Help:      "Tool executions by tool name and status.",
	}, []string{"tool", "status"})

	// DispatchRounds observes how many model round-trips a turn took.
	DispatchRounds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "conversation",
		Name:      "dispatch_rounds",
		Help:      "Model round-trips per handled message.",
		Buckets:   []float64{1, 2, 3, 4, 5, 6, 7, 8},
	})

	// LLMRequestDuration observes provider latency per completion call.
	LLMRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "conversation",
		Name:      "llm_request_seconds",
		Help:      "LLM completion latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"provider"})

	// Bookings counts committed scheduling outcomes by kind.
	Bookings = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scheduling",
		Name:      "bookings_total",
		Help:      "Committed bookings, cancellations and reschedules.",
	}, []string{"kind"})

	// ChatMessages counts handled chat turns by transport.
	ChatMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "conversation",
		Name:      "messages_total",
		Help:      "Handled chat messages by source.",
	}, []string{"source"})
)
