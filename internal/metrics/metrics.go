// Package metrics provides Prometheus metrics for the deck assistant
// backend. Scrape these at /metrics for dashboards and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deckmuse_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deckmuse_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Chat Metrics
	ChatRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deckmuse_chat_requests_total",
			Help: "Chat completions by outcome",
		},
		[]string{"result"}, // "ok", "bad_request", "parse_error", "error"
	)

	ChatToolRounds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "deckmuse_chat_tool_rounds",
			Help:    "Tool-call rounds used per chat completion",
			Buckets: []float64{0, 1, 2, 3, 4, 5, 7, 10},
		},
	)

	// Gemini API Metrics
	GeminiRequestsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deckmuse_gemini_requests_total",
			Help: "Total Gemini API requests",
		},
	)

	GeminiRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deckmuse_gemini_retries_total",
			Help: "Gemini API calls retried after a transport failure",
		},
	)

	GeminiAPILatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "deckmuse_gemini_api_latency_seconds",
			Help:    "Gemini API call latency",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	GeminiErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deckmuse_gemini_errors_total",
			Help: "Gemini API errors by type",
		},
		[]string{"type"}, // "network", "read", "api", "parse", "empty"
	)

	// Tool Metrics
	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deckmuse_tool_calls_total",
			Help: "Tool executions by tool and outcome",
		},
		[]string{"tool", "result"}, // result: "ok", "error", "not_found"
	)

	// Card Database Metrics
	CardSearchResults = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "deckmuse_card_search_results",
			Help:    "Cards returned per database search",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 200},
		},
	)

	// Combo Service Metrics
	ComboRequestsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deckmuse_combo_requests_total",
			Help: "Outbound combo search requests",
		},
	)

	ComboCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deckmuse_combo_cache_hits_total",
			Help: "Combo search cache hit count",
		},
	)

	ComboCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deckmuse_combo_cache_misses_total",
			Help: "Combo search cache miss count",
		},
	)
)
