package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MatchRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "provider_matching", Name: "match_requests_total", Help: "Total number of match searches"})
	MatchLatency       = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: "provider_matching", Name: "match_latency_seconds", Help: "Match search latency seconds"})
	ProvidersConnected = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "provider_matching", Name: "providers_connected", Help: "Number of providers with an open notification socket"})

	RatingsRecorded       = promauto.NewCounter(prometheus.CounterOpts{Namespace: "provider_matching", Name: "ratings_recorded_total", Help: "Total number of booking ratings recorded"})
	ProviderStatusUpdates = promauto.NewCounter(prometheus.CounterOpts{Namespace: "provider_matching", Name: "provider_status_updates_total", Help: "Total provider status updates ingested"})

	BookingTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "provider_matching", Name: "booking_transitions_total", Help: "Booking lifecycle transitions by outcome"},
		[]string{"transition", "outcome"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "provider_matching", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "provider_matching",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
