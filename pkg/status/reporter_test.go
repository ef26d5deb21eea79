package status

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/agent-snapper/pkg/events"
	"github.com/cuemby/agent-snapper/pkg/metrics"
	"github.com/cuemby/agent-snapper/pkg/types"
)

type memoryJournal struct {
	records []*types.OutcomeRecord
	err     error
}

func (j *memoryJournal) RecordOutcome(record *types.OutcomeRecord) error {
	if j.err != nil {
		return j.err
	}
	j.records = append(j.records, record)
	return nil
}

func TestReporterReport(t *testing.T) {
	journal := &memoryJournal{}
	r := NewReporter("license-manager-agent", NewJournalSink(journal))

	event := types.Event{ID: "e1", Kind: types.EventUpdateStatus, Leader: true}
	outcome := types.Outcome{
		EventID: "e1",
		Kind:    types.EventUpdateStatus,
		State:   types.StateBlockedError,
		Status:  &types.Status{Tag: types.StatusBlocked, Message: CannotStart},
	}

	record := r.Report(context.Background(), event, outcome, 250*time.Millisecond)

	assert.NotEmpty(t, record.ID)
	assert.Equal(t, "license-manager-agent", record.Snap)
	assert.Equal(t, "e1", record.EventID)
	assert.Equal(t, types.StatusBlocked, record.Tag)
	assert.Equal(t, CannotStart, record.Message)
	assert.Equal(t, "250ms", record.Duration)
	assert.True(t, record.Leader)

	require.Len(t, journal.records, 1)
	assert.Same(t, record, journal.records[0])

	assert.Equal(t, float64(1), gaugeValue(t, metrics.UnitStatus.WithLabelValues("license-manager-agent", "blocked")))
	assert.Equal(t, float64(0), gaugeValue(t, metrics.UnitStatus.WithLabelValues("license-manager-agent", "active")))
}

func TestReporterKeepsStatusWhenOutcomeHasNone(t *testing.T) {
	r := NewReporter("license-manager-agent")
	r.Interim(types.Status{Tag: types.StatusMaintenance})

	record := r.Report(context.Background(),
		types.Event{ID: "e2", Kind: types.EventRemove},
		types.Outcome{Kind: types.EventRemove, State: types.StateRemoved},
		time.Millisecond)

	assert.Empty(t, record.Tag)
	assert.Equal(t, float64(1), gaugeValue(t, metrics.UnitStatus.WithLabelValues("license-manager-agent", "maintenance")))
}

func TestReporterSinkErrorIsNotFatal(t *testing.T) {
	failing := &memoryJournal{err: errors.New("disk full")}
	working := &memoryJournal{}
	r := NewReporter("vantage-agent", NewJournalSink(failing), NewJournalSink(working))

	r.Report(context.Background(),
		types.Event{ID: "e3", Kind: types.EventUpdateStatus},
		types.Outcome{Status: &types.Status{Tag: types.StatusActive}},
		time.Millisecond)

	assert.Len(t, working.records, 1)
}

func TestBrokerSink(t *testing.T) {
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	r := NewReporter("vantage-agent", NewBrokerSink(broker))
	r.Report(context.Background(),
		types.Event{ID: "e4", Kind: types.EventConfigChanged},
		types.Outcome{Status: &types.Status{Tag: types.StatusWaiting, Message: "waiting for vantage-agent to be installed"}, Retry: true},
		time.Millisecond)

	select {
	case ev := <-sub:
		assert.Equal(t, events.EventOutcome, ev.Type)
		assert.Equal(t, "waiting: waiting for vantage-agent to be installed", ev.Message)
		assert.Equal(t, "true", ev.Metadata["retry"])
	case <-time.After(2 * time.Second):
		t.Fatal("outcome was not published")
	}
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("failed to read gauge: %v", err)
	}
	return m.GetGauge().GetValue()
}
