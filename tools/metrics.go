package tools

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSuccess       = "success"
	outcomeFailure       = "failure"
	outcomeError         = "error"
	outcomePageExhausted = "page_exhausted"
)

var (
	toolInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "patchscout_tool_invocations_total",
		Help: "Tool invocations by tool and outcome",
	}, []string{"tool", "outcome"})

	toolDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "patchscout_tool_duration_seconds",
		Help:    "Tool execution latency in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 9), // 1ms to ~65s
	}, []string{"tool"})
)
