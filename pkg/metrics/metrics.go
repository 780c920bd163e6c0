package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ResourceRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rfptrack", Name: "resource_requests_total", Help: "Resource route requests by model, method and status."},
		[]string{"model", "method", "status"},
	)
	MirrorFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rfptrack", Name: "mirror_failures_total", Help: "Search index mirror failures by operation."},
		[]string{"operation"},
	)
	AssistantCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rfptrack", Name: "assistant_calls_total", Help: "Assistant model calls by intent and outcome."},
		[]string{"intent", "outcome"},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rfptrack", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rfptrack", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(ResourceRequests)
	reg.MustRegister(MirrorFailures)
	reg.MustRegister(AssistantCalls)
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
}
