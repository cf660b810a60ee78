package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	runsRecorded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "runquest",
		Subsystem: "runs",
		Name:      "recorded_total",
		Help:      "Runs persisted, by source and outcome.",
	}, []string{"source", "outcome"})
	xpAwarded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "runquest",
		Subsystem: "runs",
		Name:      "xp_awarded_total",
		Help:      "XP stamped onto newly persisted runs.",
	}, []string{"source"})
	reconciliations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "runquest",
		Subsystem: "reconciler",
		Name:      "runs_total",
		Help:      "Totals reconciliations, by outcome.",
	}, []string{"outcome"})
	discrepancies = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "runquest",
		Subsystem: "reconciler",
		Name:      "discrepancies_total",
		Help:      "Aggregates found out of sync with their runs.",
	})
	imports = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "runquest",
		Subsystem: "import",
		Name:      "activities_total",
		Help:      "External activities processed by the importer, by status.",
	}, []string{"status"})
)

func init() {
	prometheus.MustRegister(runsRecorded, xpAwarded, reconciliations, discrepancies, imports)
}

// RecordRun counts a run insert attempt. outcome is inserted, duplicate or failed.
func RecordRun(source, outcome string, xp int) {
	runsRecorded.WithLabelValues(source, outcome).Inc()
	if outcome == "inserted" && xp > 0 {
		xpAwarded.WithLabelValues(source).Add(float64(xp))
	}
}

// RecordReconciliation counts one user reconciliation. outcome is changed, unchanged or failed.
func RecordReconciliation(outcome string) {
	reconciliations.WithLabelValues(outcome).Inc()
}

// RecordDiscrepancies adds to the discrepancy counter.
func RecordDiscrepancies(n int) {
	if n <= 0 {
		return
	}
	discrepancies.Add(float64(n))
}

// RecordImport counts one processed external activity.
func RecordImport(status string) {
	imports.WithLabelValues(status).Inc()
}
