package dispatch

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/cuemby/agent-snapper/pkg/events"
	"github.com/cuemby/agent-snapper/pkg/metrics"
	"github.com/cuemby/agent-snapper/pkg/types"
)

// ConfigSource returns the current flat orchestrator configuration
type ConfigSource func() (map[string]string, error)

// LoopConfig configures the serve loop
type LoopConfig struct {
	Leader         bool
	StatusInterval time.Duration
	RetryInterval  time.Duration
	Source         ConfigSource
}

// Loop plays the orchestrator for a long running agent: it ticks
// update-status, redelivers deferred events and turns configuration changes
// into config-changed events.
type Loop struct {
	dispatcher *Dispatcher
	cfg        LoopConfig
	broker     *events.Broker

	mu       sync.Mutex
	lastSeen map[string]string

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewLoop creates a serve loop around d
func NewLoop(d *Dispatcher, cfg LoopConfig) *Loop {
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = 5 * time.Minute
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 30 * time.Second
	}
	return &Loop{
		dispatcher: d,
		cfg:        cfg,
		broker:     d.broker,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start begins the loop
func (l *Loop) Start(ctx context.Context) {
	go l.run(ctx)
}

// Stop stops the loop and waits for the event in flight to finish
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopCh)
	})
	<-l.doneCh
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.doneCh)

	metrics.UpdateComponent(metrics.ComponentDispatcher, true, "")

	statusTicker := time.NewTicker(l.cfg.StatusInterval)
	defer statusTicker.Stop()
	retryTicker := time.NewTicker(l.cfg.RetryInterval)
	defer retryTicker.Stop()

	l.Tick(ctx)

	for {
		select {
		case <-statusTicker.C:
			l.Tick(ctx)
		case <-retryTicker.C:
			l.Redeliver(ctx)
		case <-ctx.Done():
			return
		case <-l.stopCh:
			return
		}
	}
}

// Tick dispatches config-changed when the configuration moved since the
// last tick, then update-status
func (l *Loop) Tick(ctx context.Context) {
	raw := l.config()
	if l.changed(raw) {
		l.dispatch(ctx, types.Event{Kind: types.EventConfigChanged, Leader: l.cfg.Leader, Config: raw})
	}
	l.dispatch(ctx, types.Event{Kind: types.EventUpdateStatus, Leader: l.cfg.Leader, Config: raw})
}

// Redeliver dispatches every deferred event again with fresh configuration
func (l *Loop) Redeliver(ctx context.Context) {
	pending, err := l.dispatcher.Deferred()
	if err != nil {
		l.dispatcher.logger.Error().Err(err).Msg("Failed to list deferred events")
		return
	}
	if len(pending) == 0 {
		return
	}

	raw := l.config()
	for _, deferred := range pending {
		l.dispatcher.logger.Info().
			Str("event_id", deferred.EventID).
			Str("event", string(deferred.Kind)).
			Int("attempts", deferred.Attempts).
			Msg("Redelivering deferred event")
		if l.broker != nil {
			l.broker.Publish(events.FromDeferred(events.EventRedelivered, deferred))
		}
		l.dispatch(ctx, types.Event{Kind: deferred.Kind, Leader: l.cfg.Leader, Config: raw})
	}
}

func (l *Loop) dispatch(ctx context.Context, event types.Event) {
	if _, err := l.dispatcher.Dispatch(ctx, event); err != nil {
		l.dispatcher.logger.Error().Err(err).Str("event", string(event.Kind)).Msg("Dispatch failed")
	}
}

// config reads the source, keeping the last good configuration on error
func (l *Loop) config() map[string]string {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cfg.Source == nil {
		return l.lastSeen
	}
	raw, err := l.cfg.Source()
	if err != nil {
		l.dispatcher.logger.Warn().Err(err).Msg("Failed to read config, keeping previous")
		return l.lastSeen
	}
	return raw
}

// changed reports whether raw differs from the configuration seen on the
// previous call and remembers it. The first call only records a baseline.
func (l *Loop) changed(raw map[string]string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.lastSeen == nil {
		l.lastSeen = maps.Clone(raw)
		if l.lastSeen == nil {
			l.lastSeen = map[string]string{}
		}
		return false
	}
	if maps.Equal(l.lastSeen, raw) {
		return false
	}
	l.lastSeen = maps.Clone(raw)
	return true
}
