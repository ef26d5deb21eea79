package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/agent-snapper/pkg/events"
	"github.com/cuemby/agent-snapper/pkg/log"
	"github.com/cuemby/agent-snapper/pkg/metrics"
	"github.com/cuemby/agent-snapper/pkg/reconciler"
	"github.com/cuemby/agent-snapper/pkg/status"
	"github.com/cuemby/agent-snapper/pkg/storage"
	"github.com/cuemby/agent-snapper/pkg/types"
)

// ErrUnknownEvent is returned for an event kind with no registered handler
var ErrUnknownEvent = errors.New("unknown event")

// Handler handles one event and returns its outcome
type Handler func(ctx context.Context, event types.Event) types.Outcome

// DeferredStore persists events that asked to be redelivered
type DeferredStore interface {
	SaveDeferred(event *types.DeferredEvent) error
	GetDeferred(snap string, kind types.EventKind) (*types.DeferredEvent, error)
	ListDeferred(snap string) ([]*types.DeferredEvent, error)
	DeleteDeferred(snap string, kind types.EventKind) error
}

// Dispatcher routes lifecycle events to their handler one at a time
type Dispatcher struct {
	mu       sync.Mutex
	snap     string
	handlers map[types.EventKind]Handler
	reporter *status.Reporter
	deferred DeferredStore
	broker   *events.Broker
	logger   zerolog.Logger
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithDeferredStore keeps retry requests for later redelivery
func WithDeferredStore(store DeferredStore) Option {
	return func(d *Dispatcher) {
		d.deferred = store
	}
}

// WithBroker publishes deferral notifications on broker
func WithBroker(broker *events.Broker) Option {
	return func(d *Dispatcher) {
		d.broker = broker
	}
}

// New creates a dispatcher that sends every supported event kind to engine
func New(engine *reconciler.Engine, reporter *status.Reporter, opts ...Option) *Dispatcher {
	snap := engine.Spec().Name
	d := &Dispatcher{
		snap: snap,
		handlers: map[types.EventKind]Handler{
			types.EventInstall:       engine.Handle,
			types.EventConfigChanged: engine.Handle,
			types.EventStart:         engine.Handle,
			types.EventStop:          engine.Handle,
			types.EventRemove:        engine.Handle,
			types.EventUpdateStatus:  engine.Handle,
		},
		reporter: reporter,
		logger:   log.WithSnap(snap).With().Str("component", "dispatch").Logger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handle registers (or replaces) the handler for kind
func (d *Dispatcher) Handle(kind types.EventKind, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[kind] = h
}

// Dispatch handles event and reports its outcome. Only one event is
// handled at a time; concurrent callers wait their turn.
func (d *Dispatcher) Dispatch(ctx context.Context, event types.Event) (*types.OutcomeRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	handler, ok := d.handlers[event.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, event.Kind)
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	start := time.Now()
	outcome := handler(ctx, event)
	record := d.reporter.Report(ctx, event, outcome, time.Since(start))

	if d.deferred != nil {
		if err := d.track(event, outcome.Retry); err != nil {
			d.logger.Error().Err(err).Str("event_id", event.ID).Msg("Failed to track deferred event")
		}
	}
	return record, nil
}

// Deferred lists the events awaiting redelivery
func (d *Dispatcher) Deferred() ([]*types.DeferredEvent, error) {
	if d.deferred == nil {
		return nil, nil
	}
	return d.deferred.ListDeferred(d.snap)
}

// track records a retry request, or clears a pending one once the same
// kind of event has been handled without asking for a retry
func (d *Dispatcher) track(event types.Event, retry bool) error {
	previous, err := d.deferred.GetDeferred(d.snap, event.Kind)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to read deferred %s: %w", event.Kind, err)
	}

	if !retry {
		if previous == nil {
			return nil
		}
		if err := d.deferred.DeleteDeferred(d.snap, event.Kind); err != nil {
			return fmt.Errorf("failed to clear deferred %s: %w", event.Kind, err)
		}
		return d.updateGauge()
	}

	deferred := &types.DeferredEvent{
		EventID:  event.ID,
		Snap:     d.snap,
		Kind:     event.Kind,
		Leader:   event.Leader,
		Attempts: 1,
		Deferred: time.Now().UTC(),
	}
	if previous != nil {
		deferred.Attempts = previous.Attempts + 1
	}
	if err := d.deferred.SaveDeferred(deferred); err != nil {
		return fmt.Errorf("failed to save deferred %s: %w", event.Kind, err)
	}

	d.logger.Info().
		Str("event_id", event.ID).
		Str("event", string(event.Kind)).
		Int("attempts", deferred.Attempts).
		Msg("Event deferred")

	if d.broker != nil {
		d.broker.Publish(events.FromDeferred(events.EventDeferred, deferred))
	}
	return d.updateGauge()
}

func (d *Dispatcher) updateGauge() error {
	pending, err := d.deferred.ListDeferred(d.snap)
	if err != nil {
		return err
	}
	metrics.DeferredEvents.Set(float64(len(pending)))
	return nil
}
