package storage

import (
	"errors"

	"github.com/cuemby/agent-snapper/pkg/types"
)

// ErrNotFound is returned when a snap has no recorded data
var ErrNotFound = errors.New("not found")

// Store defines the interface for the agent's local journal
type Store interface {
	// Outcomes
	RecordOutcome(record *types.OutcomeRecord) error
	LastOutcome(snap string) (*types.OutcomeRecord, error)
	ListOutcomes(snap string, limit int) ([]*types.OutcomeRecord, error)

	// Deferred events, at most one per snap and event kind
	SaveDeferred(event *types.DeferredEvent) error
	GetDeferred(snap string, kind types.EventKind) (*types.DeferredEvent, error)
	ListDeferred(snap string) ([]*types.DeferredEvent, error)
	DeleteDeferred(snap string, kind types.EventKind) error

	// Utility
	Close() error
}
