package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RouteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "askroute_route_duration_seconds",
			Help:    "End-to-end routing duration in seconds",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"strategy"},
	)

	RouteTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askroute_route_total",
			Help: "Total number of routed queries",
		},
		[]string{"status"},
	)

	StrategySelected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askroute_strategy_selected_total",
			Help: "Strategy chosen per routed query",
		},
		[]string{"strategy"},
	)

	SourceConfidence = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "askroute_source_confidence",
			Help:    "Normalized per-source confidence scores",
			Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
		[]string{"source"},
	)

	SourceErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askroute_source_errors_total",
			Help: "Source failures and timeouts, excluded from aggregation",
		},
		[]string{"source"},
	)

	ConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "askroute_conflicts_total",
			Help: "Responses flagged as high-confidence conflicts",
		},
	)

	CacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "askroute_cache_hits_total",
			Help: "Response cache hits",
		},
	)

	CacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "askroute_cache_misses_total",
			Help: "Response cache misses",
		},
	)

	ResponseConfidence = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askroute_response_confidence",
			Help:    "Final response confidence scores",
			Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)
)

func Init() {
	prometheus.MustRegister(RouteDuration)
	prometheus.MustRegister(RouteTotal)
	prometheus.MustRegister(StrategySelected)
	prometheus.MustRegister(SourceConfidence)
	prometheus.MustRegister(SourceErrors)
	prometheus.MustRegister(ConflictsTotal)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(ResponseConfidence)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
