/*
Package types defines the data shared across agent-snapper packages.

PackageSpec describes the managed snap and is built once per process through
config.NewSpec, which validates it. Event is a lifecycle notification with
the raw orchestrator configuration attached; Outcome is what handling it
produced. OutcomeRecord and DeferredEvent are the journaled forms of those
two and carry JSON tags.

ReconcileState is derived from probes for logs and the journal; nothing
reads it back to make a decision.
*/
package types
