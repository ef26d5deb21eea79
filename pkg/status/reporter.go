package status

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/agent-snapper/pkg/events"
	"github.com/cuemby/agent-snapper/pkg/log"
	"github.com/cuemby/agent-snapper/pkg/metrics"
	"github.com/cuemby/agent-snapper/pkg/types"
)

// Sink receives every finished outcome
type Sink interface {
	Record(ctx context.Context, record *types.OutcomeRecord) error
}

// Reporter projects outcomes to the orchestrator-facing surfaces: the log,
// the metrics gauges and any configured sinks.
type Reporter struct {
	snap   string
	sinks  []Sink
	logger zerolog.Logger
}

// NewReporter creates a reporter for snap
func NewReporter(snap string, sinks ...Sink) *Reporter {
	return &Reporter{
		snap:   snap,
		sinks:  sinks,
		logger: log.WithSnap(snap).With().Str("component", "status").Logger(),
	}
}

// Interim reports a status set while an event is still being handled
func (r *Reporter) Interim(s types.Status) {
	r.logger.Info().Str("status", string(s.Tag)).Str("message", s.Message).Msg("Unit status")
	r.set(s)
}

// Report publishes the final outcome of an event
func (r *Reporter) Report(ctx context.Context, event types.Event, outcome types.Outcome, took time.Duration) *types.OutcomeRecord {
	record := &types.OutcomeRecord{
		ID:        uuid.NewString(),
		Snap:      r.snap,
		EventID:   event.ID,
		Kind:      event.Kind,
		Leader:    event.Leader,
		State:     string(outcome.State),
		Retry:     outcome.Retry,
		Duration:  took.String(),
		Timestamp: time.Now().UTC(),
	}

	statusLabel := "unchanged"
	if outcome.Status != nil {
		record.Tag = outcome.Status.Tag
		record.Message = outcome.Status.Message
		statusLabel = string(outcome.Status.Tag)
		r.set(*outcome.Status)
	}

	metrics.EventsTotal.WithLabelValues(string(event.Kind), statusLabel).Inc()
	metrics.SetLeader(r.snap, event.Leader)
	if outcome.Retry {
		metrics.EventRetriesTotal.WithLabelValues(string(event.Kind)).Inc()
	}

	r.logger.Info().
		Str("event_id", event.ID).
		Str("event", string(event.Kind)).
		Str("state", record.State).
		Str("status", string(record.Tag)).
		Str("message", record.Message).
		Bool("retry", record.Retry).
		Msg("Event outcome")

	for _, sink := range r.sinks {
		if err := sink.Record(ctx, record); err != nil {
			r.logger.Error().Err(err).Msg("Failed to record outcome")
		}
	}
	return record
}

func (r *Reporter) set(s types.Status) {
	metrics.SetUnitStatus(r.snap, string(s.Tag), Tags)
}

// Journal is where outcomes are persisted
type Journal interface {
	RecordOutcome(record *types.OutcomeRecord) error
}

// JournalSink persists outcomes in the state store
type JournalSink struct {
	journal Journal
}

// NewJournalSink wraps a journal as a Sink
func NewJournalSink(journal Journal) *JournalSink {
	return &JournalSink{journal: journal}
}

// Record implements Sink
func (s *JournalSink) Record(_ context.Context, record *types.OutcomeRecord) error {
	return s.journal.RecordOutcome(record)
}

// BrokerSink publishes outcomes on an event broker
type BrokerSink struct {
	broker *events.Broker
}

// NewBrokerSink wraps a broker as a Sink
func NewBrokerSink(broker *events.Broker) *BrokerSink {
	return &BrokerSink{broker: broker}
}

// Record implements Sink
func (s *BrokerSink) Record(_ context.Context, record *types.OutcomeRecord) error {
	s.broker.Publish(events.FromOutcome(record))
	return nil
}
