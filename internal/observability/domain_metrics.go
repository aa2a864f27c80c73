package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	questionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgerlens_questions_total",
			Help: "Total number of natural-language questions by outcome.",
		},
		[]string{"outcome"},
	)
	agentIterations = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ledgerlens_agent_iterations",
			Help:    "Number of generate/check rounds the agent needed per question.",
			Buckets: []float64{1, 2, 3, 4, 5, 8},
		},
	)
	checkerResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgerlens_checker_results_total",
			Help: "Total number of checker verdicts by kind.",
		},
		[]string{"kind"},
	)
	rewritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgerlens_rewrite_total",
			Help: "Total number of SQL rewrites by outcome (passed, rejected).",
		},
		[]string{"outcome"},
	)
	queryDurationMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledgerlens_query_duration_ms",
			Help:    "Warehouse query execution latency in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
		[]string{"kind"},
	)
	mutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgerlens_mutations_total",
			Help: "Total number of table mutations by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)
	importsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgerlens_imports_total",
			Help: "Total number of file imports by status.",
		},
		[]string{"status"},
	)
	importedRowsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ledgerlens_import_rows_total",
			Help: "Total number of rows written by successful imports.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		questionsTotal,
		agentIterations,
		checkerResultsTotal,
		rewritesTotal,
		queryDurationMs,
		mutationsTotal,
		importsTotal,
		importedRowsTotal,
	)
}

func ObserveQuestion(outcome string, iterations int) {
	questionsTotal.WithLabelValues(outcome).Inc()
	if iterations > 0 {
		agentIterations.Observe(float64(iterations))
	}
}

func ObserveCheckerResult(kind string) {
	checkerResultsTotal.WithLabelValues(kind).Inc()
}

func ObserveRewrite(rejected bool) {
	outcome := "passed"
	if rejected {
		outcome = "rejected"
	}
	rewritesTotal.WithLabelValues(outcome).Inc()
}

// ObserveQuery records warehouse latency; kind is "read", "filter" or "mutation".
func ObserveQuery(kind string, elapsed time.Duration) {
	queryDurationMs.WithLabelValues(kind).Observe(float64(elapsed.Milliseconds()))
}

func ObserveMutation(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	mutationsTotal.WithLabelValues(operation, outcome).Inc()
}

func ObserveImport(status string, rows int) {
	importsTotal.WithLabelValues(status).Inc()
	if status == "success" && rows > 0 {
		importedRowsTotal.Add(float64(rows))
	}
}
