/*
Package storage provides the BoltDB-backed journal the agent keeps on the host.

The journal records the outcome of every handled lifecycle event and the
events that were deferred because the snap was not yet installed. It exists so
that the status and history commands can answer without re-probing snapd, and
so that serve mode can redeliver deferred events after a restart.

# Layout

	<state_dir>/agent-snapper.db
	  outcomes/
	    <snap>/
	      <seq (uint64, big endian)> -> OutcomeRecord JSON
	  deferred/
	    <snap>/
	      <event kind>             -> DeferredEvent JSON

Outcome keys come from the per-snap bucket sequence, so a cursor walking from
Last to First yields newest first. At most DefaultOutcomeRetention outcomes are
kept per snap; older ones are pruned on write.

Deferred events are keyed by kind. Deferring the same kind again replaces the
earlier entry: redelivery only needs to know that an equivalent event is still
pending.

# Usage

	store, err := storage.NewBoltStore("/var/lib/agent-snapper")
	if err != nil {
		return err
	}
	defer store.Close()

	last, err := store.LastOutcome("jobbergate-agent")
	if errors.Is(err, storage.ErrNotFound) {
		fmt.Println("no events handled yet")
	}

# Locking

BoltDB holds an exclusive file lock per open handle. A one-shot dispatch that
runs while serve mode holds the journal waits up to five seconds for the lock
before failing.
*/
package storage
