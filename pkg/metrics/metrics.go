// Package metrics defines the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Generation paths recorded by GenerationsTotal.
const (
	PathFastPath  = "fast_path"
	PathSingle    = "single"
	PathTwoStage  = "two_stage"
	PathFallback  = "fallback"
	PathNoBackend = "no_backend"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "askdb_build_info",
			Help: "Build information of askdb",
		},
		[]string{"version"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "askdb_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "askdb_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_generations_total",
			Help: "SQL generations by the path that produced the final SQL",
		},
		[]string{"path"},
	)

	BackendCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_backend_calls_total",
			Help: "Generation backend calls by stage and outcome",
		},
		[]string{"stage", "outcome"},
	)

	BackendCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "askdb_backend_call_duration_seconds",
			Help:    "Duration of generation backend calls in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"stage"},
	)

	CatalogLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_catalog_loads_total",
			Help: "Schema catalog loads by outcome",
		},
		[]string{"outcome"},
	)

	CatalogTables = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "askdb_catalog_tables",
			Help: "Number of tables in the current catalog snapshot",
		},
	)

	UnsafeSQLTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "askdb_unsafe_sql_total",
			Help: "Generated SQL statements rejected by the safety validator",
		},
	)

	QueryExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_query_executions_total",
			Help: "Executions of validated SQL by outcome",
		},
		[]string{"outcome"},
	)

	QueryRowsReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askdb_query_rows_returned",
			Help:    "Rows returned per executed query",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	MCPToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_mcp_tool_calls_total",
			Help: "MCP tool calls by tool and outcome",
		},
		[]string{"tool", "outcome"},
	)
)

// Outcome maps an error to the outcome label.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
