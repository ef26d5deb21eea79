package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/agent-snapper/pkg/types"
)

func TestLoopTickDetectsConfigChanges(t *testing.T) {
	h := newHarness(t)
	h.fake.Install(snapName)

	current := map[string]string{"snap-config": "a=1"}
	loop := NewLoop(h.dispatcher, LoopConfig{
		Leader: true,
		Source: func() (map[string]string, error) { return current, nil },
	})

	// First tick only records a baseline
	loop.Tick(context.Background())
	assert.NotContains(t, h.fake.Verbs(), "set")

	current = map[string]string{"snap-config": "a=2"}
	loop.Tick(context.Background())
	assert.Contains(t, h.fake.Calls(), "set vantage-agent a=2")

	h.fake.Reset()
	loop.Tick(context.Background())
	assert.NotContains(t, h.fake.Verbs(), "set")

	history, err := h.store.ListOutcomes(snapName, 0)
	require.NoError(t, err)
	kinds := make([]types.EventKind, 0, len(history))
	for _, record := range history {
		kinds = append(kinds, record.Kind)
	}
	assert.Equal(t, []types.EventKind{
		types.EventUpdateStatus,
		types.EventUpdateStatus,
		types.EventConfigChanged,
		types.EventUpdateStatus,
	}, kinds)
}

func TestLoopKeepsConfigOnSourceError(t *testing.T) {
	h := newHarness(t)
	h.fake.Install(snapName)

	fail := false
	loop := NewLoop(h.dispatcher, LoopConfig{
		Source: func() (map[string]string, error) {
			if fail {
				return nil, errors.New("config file vanished")
			}
			return map[string]string{"snap-config": "a=1"}, nil
		},
	})

	loop.Tick(context.Background())
	fail = true
	loop.Tick(context.Background())

	assert.NotContains(t, h.fake.Verbs(), "set")
}

func TestLoopRedeliver(t *testing.T) {
	h := newHarness(t)
	loop := NewLoop(h.dispatcher, LoopConfig{
		Leader: true,
		Source: func() (map[string]string, error) {
			return map[string]string{"snap-config": "a=1"}, nil
		},
	})

	_, err := h.dispatcher.Dispatch(context.Background(), types.Event{
		Kind:   types.EventConfigChanged,
		Leader: true,
		Config: map[string]string{"snap-config": "a=1"},
	})
	require.NoError(t, err)

	// Still not installed: stays deferred with another attempt
	loop.Redeliver(context.Background())
	pending, err := h.dispatcher.Deferred()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].Attempts)

	h.fake.Install(snapName)
	loop.Redeliver(context.Background())

	assert.Contains(t, h.fake.Calls(), "set vantage-agent a=1")
	pending, err = h.dispatcher.Deferred()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestLoopStartStop(t *testing.T) {
	h := newHarness(t)
	loop := NewLoop(h.dispatcher, LoopConfig{})

	loop.Start(context.Background())
	loop.Stop()
	loop.Stop()

	history, err := h.store.ListOutcomes(snapName, 0)
	require.NoError(t, err)
	require.NotEmpty(t, history)
	assert.Equal(t, types.EventUpdateStatus, history[len(history)-1].Kind)
}
