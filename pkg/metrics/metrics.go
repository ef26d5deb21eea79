package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Lifecycle metrics
	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_snapper_events_total",
			Help: "Total number of lifecycle events handled by kind and resulting status",
		},
		[]string{"event", "status"},
	)

	EventRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_snapper_event_retries_total",
			Help: "Total number of events that requested redelivery",
		},
		[]string{"event"},
	)

	ReconciliationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agent_snapper_reconciliation_duration_seconds",
			Help:    "Time taken to handle one lifecycle event in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"event"},
	)

	// Snap CLI metrics
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_snapper_commands_total",
			Help: "Total number of snap invocations by subcommand and result",
		},
		[]string{"subcommand", "result"},
	)

	CommandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agent_snapper_command_duration_seconds",
			Help:    "Snap invocation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"subcommand"},
	)

	// Unit metrics
	UnitStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agent_snapper_unit_status",
			Help: "Current unit status (1 for the active status tag, 0 otherwise)",
		},
		[]string{"snap", "status"},
	)

	UnitLeader = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agent_snapper_unit_is_leader",
			Help: "Whether this unit is the leader (1 = leader, 0 = follower)",
		},
		[]string{"snap"},
	)

	DeferredEvents = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "agent_snapper_deferred_events",
			Help: "Number of events waiting for redelivery",
		},
	)
)

func init() {
	prometheus.MustRegister(EventsTotal)
	prometheus.MustRegister(EventRetriesTotal)
	prometheus.MustRegister(ReconciliationDuration)
	prometheus.MustRegister(CommandsTotal)
	prometheus.MustRegister(CommandDuration)
	prometheus.MustRegister(UnitStatus)
	prometheus.MustRegister(UnitLeader)
	prometheus.MustRegister(DeferredEvents)
}

// SetUnitStatus flips the status gauge so exactly one tag reads 1
func SetUnitStatus(snap string, current string, all []string) {
	for _, tag := range all {
		v := 0.0
		if tag == current {
			v = 1
		}
		UnitStatus.WithLabelValues(snap, tag).Set(v)
	}
}

// SetLeader records the leadership flag for a snap
func SetLeader(snap string, leader bool) {
	if leader {
		UnitLeader.WithLabelValues(snap).Set(1)
	} else {
		UnitLeader.WithLabelValues(snap).Set(0)
	}
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
