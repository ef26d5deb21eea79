/*
Package reconciler converges a snap towards its desired configuration, one
lifecycle event at a time.

The work is split in two. Plan is a pure function of the event kind, the raw
orchestrator configuration, the observed ActualState and the leader flag; it
returns a Decision listing the snap actions to issue, the status to report
first and whether the event must be redelivered. Engine runs only the probes
the event needs, calls Plan, executes the actions in order and finishes with
the status-update step.

# Events

	install         install (absent) or refresh (present), then status update
	config-changed  defer until installed, check required keys, stop, set
	                every key, start on the leader, then status update
	start           start on the leader, then status update
	stop            maintenance, then stop
	remove          remove; the status is left alone
	update-status   status update

Legacy deployments read a snap-config block instead of prefixed keys. Their
config-changed unsets the previously applied keys, sets the parsed pairs and
restarts a running service.

# Failures

Stop, start, restart, unset and remove are best effort: a failure is logged
and the remaining actions still run. A failed install, refresh or set aborts
the event with a blocked status and a retry request. Probes never fail; they
report "not installed", "not active" or an empty configuration instead.

# Status

The status-update step probes the service only on the leader. The leader is
active when its daemon runs and blocked with "cannot start snap" otherwise.
Followers always report an active standby status.

The engine never sleeps or retries on its own. Retry on an Outcome asks the
caller to deliver an equivalent event again later.
*/
package reconciler
