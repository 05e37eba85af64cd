// Package metrics exposes Prometheus instrumentation for commission processing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ledger entries created by the live or batch path, partitioned by role kind
	EntriesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commission_entries_created_total",
			Help: "Total number of commission ledger entries created",
		},
		[]string{"role_kind"},
	)

	// Processing attempts suppressed because the ledger entry already existed
	DuplicatesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commission_duplicates_skipped_total",
			Help: "Total number of commission computations skipped as already-processed",
		},
		[]string{"role_kind"},
	)

	// Processing attempts that produced no commission under the rules
	IneligibleSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commission_ineligible_skipped_total",
			Help: "Total number of commission computations that yielded no commission",
		},
		[]string{"role_kind"},
	)

	// Per-role-kind processing failures (the rest of the event still processes)
	ProcessingFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commission_processing_failures_total",
			Help: "Total number of failed commission computations",
		},
		[]string{"role_kind"},
	)

	// Validator batch runs
	ValidationRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "commission_validation_runs_total",
			Help: "Total number of validator batch runs",
		},
	)

	// Gaps found by the most recent validator scan
	ValidationGaps = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "commission_validation_gaps",
			Help: "Number of missing ledger entries found by the last validator scan",
		},
	)
)
