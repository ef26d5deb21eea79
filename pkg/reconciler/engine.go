package reconciler

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/cuemby/agent-snapper/pkg/log"
	"github.com/cuemby/agent-snapper/pkg/metrics"
	"github.com/cuemby/agent-snapper/pkg/status"
	"github.com/cuemby/agent-snapper/pkg/types"
)

// SnapClient is the subset of snap.Client the engine drives
type SnapClient interface {
	IsInstalled(ctx context.Context, name string) bool
	IsServiceActive(ctx context.Context, name string) bool
	CurrentConfig(ctx context.Context, name string) map[string]any
	Install(ctx context.Context, name, channel string, confinement types.Confinement) error
	Refresh(ctx context.Context, name, channel string, confinement types.Confinement) error
	Set(ctx context.Context, name, key, value string) error
	Unset(ctx context.Context, name string, keys ...string) error
	Run(ctx context.Context, name, app string) error
	Remove(ctx context.Context, name string) error
}

// Engine probes the snap, plans with Plan and executes the plan for one
// event at a time. It keeps no state between events.
type Engine struct {
	spec    types.PackageSpec
	client  SnapClient
	interim func(types.Status)
	logger  zerolog.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithInterimStatus registers a callback for statuses reported before the
// plan's actions run, such as "waiting" during an install.
func WithInterimStatus(fn func(types.Status)) Option {
	return func(e *Engine) {
		e.interim = fn
	}
}

// NewEngine creates an engine for spec
func NewEngine(spec types.PackageSpec, client SnapClient, opts ...Option) *Engine {
	e := &Engine{
		spec:    spec,
		client:  client,
		interim: func(types.Status) {},
		logger:  log.WithSnap(spec.Name).With().Str("component", "reconciler").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Spec returns the package spec the engine manages
func (e *Engine) Spec() types.PackageSpec {
	return e.spec
}

// Handle reconciles the snap for one event and returns its outcome. A panic
// while handling is converted to a blocked status; only an interrupted
// install also requests a retry.
func (e *Engine) Handle(ctx context.Context, event types.Event) (out types.Outcome) {
	logger := log.WithEvent(e.spec.Name, event.ID, string(event.Kind)).With().Str("component", "reconciler").Logger()
	logger.Debug().Bool("leader", event.Leader).Msg("Processing event")

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.ReconciliationDuration, string(event.Kind))

	out = types.Outcome{EventID: event.ID, Kind: event.Kind}

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("Unexpected failure handling event")
			s := e.unexpectedFailure(event.Kind)
			out.Status = &s
			out.State = types.StateBlockedError
			// stop and remove are only meaningful when delivered
			out.Retry = event.Kind == types.EventInstall
		}
	}()

	actual := e.observe(ctx, event.Kind)
	d := Plan(e.spec, Input{
		Kind:   event.Kind,
		Raw:    event.Config,
		Actual: actual,
		Leader: event.Leader,
	})
	out.State = d.Next

	if d.Err != nil {
		logger.Error().Err(d.Err).Msg("Error planning event")
	}
	if len(d.Missing) > 0 {
		logger.Info().Strs("missing", d.Missing).Msg("Required config missing")
	}
	if d.Desired != nil {
		logger.Info().Strs("keys", sortedKeys(d.Desired)).Msg("Snap configs")
	}

	if d.Status != nil {
		out.Status = d.Status
		if len(d.Actions) > 0 || d.UpdateStatus {
			e.interim(*d.Status)
		}
	}

	if d.Retry && len(d.Actions) == 0 {
		logger.Debug().Msg("Deferring event")
		out.Retry = true
		return out
	}

	for _, action := range d.Actions {
		if err := e.apply(ctx, action); err != nil {
			if action.BestEffort {
				logger.Error().Err(err).Str("action", action.String()).Msg("Best-effort action failed")
				continue
			}
			logger.Error().Err(err).Str("action", action.String()).Msg("Action failed")
			s := failureStatus(e.spec, action.Kind)
			out.Status = &s
			out.State = types.StateBlockedError
			out.Retry = true
			return out
		}
	}

	if d.UpdateStatus {
		s := e.projectStatus(ctx, event.Leader)
		out.Status = &s
		if out.State != types.StateMaintenance && out.State != types.StateRemoved {
			out.State = stateFor(s)
		}
	}

	logger.Debug().
		Str("from", string(d.From)).
		Str("to", string(out.State)).
		Msg("Event processed")
	return out
}

// observe runs only the probes the event's plan depends on
func (e *Engine) observe(ctx context.Context, kind types.EventKind) types.ActualState {
	var actual types.ActualState
	switch kind {
	case types.EventInstall:
		actual.Installed = e.client.IsInstalled(ctx, e.spec.Name)
	case types.EventConfigChanged:
		actual.Installed = e.client.IsInstalled(ctx, e.spec.Name)
		if actual.Installed && e.spec.Variant == types.VariantLegacy {
			actual.Config = e.client.CurrentConfig(ctx, e.spec.Name)
			actual.ServiceActive = e.client.IsServiceActive(ctx, e.spec.Name)
		}
	}
	return actual
}

func (e *Engine) apply(ctx context.Context, a Action) error {
	name := e.spec.Name
	switch a.Kind {
	case ActionInstall:
		return e.client.Install(ctx, name, a.Channel, a.Confinement)
	case ActionRefresh:
		return e.client.Refresh(ctx, name, a.Channel, a.Confinement)
	case ActionSet:
		return e.client.Set(ctx, name, a.Key, a.Value)
	case ActionUnset:
		return e.client.Unset(ctx, name, a.Keys...)
	case ActionStart, ActionStop, ActionRestart:
		return e.client.Run(ctx, name, string(a.Kind))
	case ActionRemove:
		return e.client.Remove(ctx, name)
	default:
		return fmt.Errorf("unknown action: %s", a.Kind)
	}
}

// projectStatus is the shared status-update step. Followers are never
// probed: their status does not depend on the service.
func (e *Engine) projectStatus(ctx context.Context, leader bool) types.Status {
	active := false
	if leader {
		active = e.client.IsServiceActive(ctx, e.spec.Name)
	}
	return status.Project(e.spec.Name, leader, active)
}

func (e *Engine) unexpectedFailure(kind types.EventKind) types.Status {
	if kind == types.EventInstall {
		return failureStatus(e.spec, ActionInstall)
	}
	return types.Status{
		Tag:     types.StatusBlocked,
		Message: fmt.Sprintf("unexpected error handling %s for %s", kind, e.spec.Name),
	}
}

func stateFor(s types.Status) types.ReconcileState {
	switch s.Tag {
	case types.StatusActive:
		return types.StateActive
	case types.StatusMaintenance:
		return types.StateMaintenance
	default:
		return types.StateBlockedError
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
