package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the attendance module.
// Tracks tap volume, session churn, and import outcomes.
type Metrics struct {
	TapsIn            prometheus.Counter
	TapsOut           prometheus.Counter
	SessionsOpened    prometheus.Counter
	SessionsClosed    prometheus.Counter
	RecordTapDuration prometheus.Histogram

	ImportRowsCreated prometheus.Counter
	ImportRowsUpdated prometheus.Counter
	ImportRowsSkipped prometheus.Counter
	ImportRowsErrored prometheus.Counter
}

// New creates a Metrics instance with all attendance module metrics registered.
func New() *Metrics {
	return &Metrics{
		TapsIn: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_taps_in_total",
			Help: "Total taps resolved to IN",
		}),
		TapsOut: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_taps_out_total",
			Help: "Total taps resolved to OUT",
		}),
		SessionsOpened: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_sessions_opened_total",
			Help: "Total presence sessions opened",
		}),
		SessionsClosed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_sessions_closed_total",
			Help: "Total presence sessions closed",
		}),
		RecordTapDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rollcall_record_tap_duration_seconds",
			Help:    "Duration of RecordTap operations (kiosk critical path)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		ImportRowsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_import_rows_created_total",
			Help: "Import rows that created a new session",
		}),
		ImportRowsUpdated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_import_rows_updated_total",
			Help: "Import rows that updated an existing session's check-out",
		}),
		ImportRowsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_import_rows_skipped_total",
			Help: "Import rows already reflected in the store",
		}),
		ImportRowsErrored: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_import_rows_errored_total",
			Help: "Import rows rejected during parsing or merging",
		}),
	}
}

// ObserveRecordTap records the duration of a RecordTap operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveRecordTap(start time.Time) {
	m.RecordTapDuration.Observe(time.Since(start).Seconds())
}
