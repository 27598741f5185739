package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Reminder dispatch metrics
	RemindersDispatched *prometheus.CounterVec
	RemindersFailed     prometheus.Counter
	RemindersRetried    prometheus.Counter
	DispatchLatency     prometheus.Histogram

	// Scheduler metrics
	SchedulerQueueSize prometheus.Gauge
	SchedulerPolls     prometheus.Counter

	// Digest metrics
	DigestsBuilt   prometheus.Counter
	DigestsSkipped prometheus.Counter

	// Import metrics
	ImportRows *prometheus.CounterVec

	// Database metrics
	DatabaseOperations *prometheus.CounterVec
}

// NewMetrics creates and registers all application metrics
func NewMetrics(namespace, subsystem string) *Metrics {
	return newMetrics(namespace, subsystem, prometheus.DefaultRegisterer)
}

// NewTestMetrics registers on a throwaway registry so tests can construct
// metrics as often as they like.
func NewTestMetrics() *Metrics {
	return newMetrics("test", "test", prometheus.NewRegistry())
}

func newMetrics(namespace, subsystem string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RemindersDispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reminders_dispatched_total",
			Help:      "Total number of reminder dispatch attempts by outcome",
		}, []string{"outcome"}),
		RemindersFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reminders_failed_total",
			Help:      "Total number of reminders that reached a terminal failure",
		}),
		RemindersRetried: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reminders_retried_total",
			Help:      "Total number of reminder delivery retries",
		}),
		DispatchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent dispatching a reminder",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		SchedulerQueueSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "scheduler_queue_size",
			Help:      "Number of reminders currently armed in the scheduler",
		}),
		SchedulerPolls: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "scheduler_polls_total",
			Help:      "Total number of scheduler poll cycles",
		}),
		DigestsBuilt: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "digests_built_total",
			Help:      "Total number of digests built and sent",
		}),
		DigestsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "digests_skipped_total",
			Help:      "Total number of digest runs skipped by the uniqueness guard",
		}),
		ImportRows: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "import_rows_total",
			Help:      "Total number of CSV import rows by result",
		}, []string{"result"}),
		DatabaseOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "database_operations_total",
			Help:      "Total number of database operations by name and status",
		}, []string{"operation", "status"}),
	}
}
