/*
Package metrics provides Prometheus metrics and health endpoints for
agent-snapper.

All collectors are registered with the default registry in init and exposed
by Handler on /metrics when running "agent-snapper serve".

# Metrics

	agent_snapper_events_total{event,status}                 counter
	agent_snapper_event_retries_total{event}                 counter
	agent_snapper_reconciliation_duration_seconds{event}     histogram
	agent_snapper_commands_total{subcommand,result}          counter
	agent_snapper_command_duration_seconds{subcommand}       histogram
	agent_snapper_unit_status{snap,status}                   gauge (one tag is 1)
	agent_snapper_unit_is_leader{snap}                       gauge
	agent_snapper_deferred_events                            gauge

The status label of events_total is the status tag the event ended with, or
"unchanged" for events that leave the status alone (remove).

# Timing

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.ReconciliationDuration, string(kind))

# Health

Components report themselves with UpdateComponent. /healthz is unhealthy
when any registered component is; /ready additionally requires the journal
and dispatcher to have registered:

	metrics.UpdateComponent(metrics.ComponentJournal, true, "")
	mux.HandleFunc("/healthz", metrics.HealthHandler())
	mux.HandleFunc("/ready", metrics.ReadyHandler())
*/
package metrics
