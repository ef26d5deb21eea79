package reconciler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cuemby/agent-snapper/pkg/config"
	"github.com/cuemby/agent-snapper/pkg/types"
)

// ActionKind is one snap operation the engine can issue
type ActionKind string

const (
	ActionInstall ActionKind = "install"
	ActionRefresh ActionKind = "refresh"
	ActionSet     ActionKind = "set"
	ActionUnset   ActionKind = "unset"
	ActionStart   ActionKind = "start"
	ActionStop    ActionKind = "stop"
	ActionRestart ActionKind = "restart"
	ActionRemove  ActionKind = "remove"
)

// Action is a single step of a Decision. BestEffort actions log and swallow
// their failure; any other failure aborts the remaining actions.
type Action struct {
	Kind        ActionKind
	Channel     string
	Confinement types.Confinement
	Key         string
	Value       string
	Keys        []string
	BestEffort  bool
}

func (a Action) String() string {
	switch a.Kind {
	case ActionInstall, ActionRefresh:
		return fmt.Sprintf("%s --channel %s --%s", a.Kind, a.Channel, a.Confinement)
	case ActionSet:
		return fmt.Sprintf("set %s", a.Key)
	case ActionUnset:
		return fmt.Sprintf("unset %s", strings.Join(a.Keys, " "))
	default:
		return string(a.Kind)
	}
}

// Input is everything a decision depends on
type Input struct {
	Kind   types.EventKind
	Raw    map[string]string
	Actual types.ActualState
	Leader bool
}

// Decision is the plan for one event.
//
// Status, when set, is reported before any action runs. UpdateStatus asks
// the engine to project the final status from a fresh service probe once
// every action has run. Retry without actions means the event is deferred.
type Decision struct {
	From         types.ReconcileState
	Next         types.ReconcileState
	Status       *types.Status
	Actions      []Action
	UpdateStatus bool
	Retry        bool
	Desired      types.DesiredConfig
	Missing      []string
	Err          error
}

// Plan decides how to converge the snap for one event. It performs no I/O.
func Plan(spec types.PackageSpec, in Input) Decision {
	d := Decision{From: Derive(in.Actual), Next: Derive(in.Actual)}

	switch in.Kind {
	case types.EventInstall:
		planInstall(spec, in, &d)
	case types.EventConfigChanged:
		if spec.Variant == types.VariantLegacy {
			planLegacyConfigure(spec, in, &d)
		} else {
			planConfigure(spec, in, &d)
		}
	case types.EventStart:
		if in.Leader {
			d.Actions = append(d.Actions, Action{Kind: ActionStart, BestEffort: true})
		}
		d.UpdateStatus = true
	case types.EventStop:
		d.Next = types.StateMaintenance
		d.Status = &types.Status{Tag: types.StatusMaintenance}
		d.Actions = append(d.Actions, Action{Kind: ActionStop, BestEffort: true})
	case types.EventRemove:
		d.Next = types.StateRemoved
		d.Actions = append(d.Actions, Action{Kind: ActionRemove, BestEffort: true})
	case types.EventUpdateStatus:
		d.UpdateStatus = true
	default:
		d.Err = fmt.Errorf("unsupported event: %s", in.Kind)
	}
	return d
}

// Derive names the state the probes describe
func Derive(actual types.ActualState) types.ReconcileState {
	switch {
	case !actual.Installed:
		return types.StateUninstalled
	case actual.ServiceActive:
		return types.StateActive
	default:
		return types.StateInstalledUnconfigured
	}
}

func planInstall(spec types.PackageSpec, in Input, d *Decision) {
	d.Status = &types.Status{
		Tag:     types.StatusWaiting,
		Message: fmt.Sprintf("installing snap for %s", spec.Name),
	}

	kind := ActionInstall
	if in.Actual.Installed {
		kind = ActionRefresh
	}
	d.Actions = append(d.Actions, Action{
		Kind:        kind,
		Channel:     channelFor(spec, in.Raw),
		Confinement: confinementFor(spec, in.Raw),
	})
	d.Next = types.StateInstalledUnconfigured
	d.UpdateStatus = true
}

func planConfigure(spec types.PackageSpec, in Input, d *Decision) {
	if !in.Actual.Installed {
		deferUntilInstalled(spec, d)
		return
	}

	prefix := spec.Prefix()
	d.Desired = config.Extract(in.Raw, prefix)
	d.Missing = config.Missing(d.Desired, spec.Required())
	if len(d.Missing) > 0 {
		d.Next = types.StateBlockedMissingConfig
		d.Status = &types.Status{
			Tag: types.StatusBlocked,
			Message: fmt.Sprintf("cannot start %s, missing config: %s",
				spec.Name, strings.Join(config.Qualify(prefix, d.Missing), ", ")),
		}
		return
	}

	d.Next = types.StateConfiguring
	d.Actions = append(d.Actions, Action{Kind: ActionStop, BestEffort: true})
	d.Actions = append(d.Actions, setActions(d.Desired)...)
	if in.Leader {
		d.Actions = append(d.Actions, Action{Kind: ActionStart, BestEffort: true})
	}
	d.UpdateStatus = true
}

func planLegacyConfigure(spec types.PackageSpec, in Input, d *Decision) {
	if !in.Actual.Installed {
		deferUntilInstalled(spec, d)
		return
	}

	// A malformed block applies nothing; the unit keeps its previous
	// configuration and only the status is refreshed.
	desired, err := config.ParseBlock(in.Raw[types.ConfigKeyBlock])
	if err != nil {
		d.Err = err
		d.UpdateStatus = true
		return
	}
	d.Desired = desired
	d.Next = types.StateConfiguring

	if len(in.Actual.Config) > 0 {
		keys := make([]string, 0, len(in.Actual.Config))
		for k := range in.Actual.Config {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		d.Actions = append(d.Actions, Action{Kind: ActionUnset, Keys: keys, BestEffort: true})
	}
	d.Actions = append(d.Actions, setActions(desired)...)
	if in.Actual.ServiceActive {
		d.Actions = append(d.Actions, Action{Kind: ActionRestart, BestEffort: true})
	}
	d.UpdateStatus = true
}

func deferUntilInstalled(spec types.PackageSpec, d *Decision) {
	d.Retry = true
	d.Status = &types.Status{
		Tag:     types.StatusWaiting,
		Message: fmt.Sprintf("waiting for %s to be installed", spec.Name),
	}
}

// setActions issues one set per key in sorted order
func setActions(desired map[string]string) []Action {
	keys := make([]string, 0, len(desired))
	for k := range desired {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	actions := make([]Action, 0, len(keys))
	for _, k := range keys {
		actions = append(actions, Action{Kind: ActionSet, Key: k, Value: desired[k]})
	}
	return actions
}

func channelFor(spec types.PackageSpec, raw map[string]string) string {
	if c := strings.TrimSpace(raw[types.ConfigKeyChannel]); c != "" {
		return c
	}
	return spec.Channel
}

// confinementFor honours snap-confinement only for legacy deployments; the
// prefixed variant always installs with classic confinement. Unknown values
// fall back to the spec's confinement.
func confinementFor(spec types.PackageSpec, raw map[string]string) types.Confinement {
	if spec.Variant != types.VariantLegacy {
		return types.ConfinementClassic
	}
	switch c := types.Confinement(strings.TrimSpace(raw[types.ConfigKeyConfinement])); c {
	case types.ConfinementClassic, types.ConfinementStrict, types.ConfinementDevmode:
		return c
	default:
		return spec.Confinement
	}
}

// failureStatus is reported when a non best-effort action fails
func failureStatus(spec types.PackageSpec, kind ActionKind) types.Status {
	switch kind {
	case ActionInstall, ActionRefresh:
		return types.Status{
			Tag:     types.StatusBlocked,
			Message: fmt.Sprintf("error installing the snap for %s", spec.Name),
		}
	default:
		return types.Status{
			Tag:     types.StatusBlocked,
			Message: fmt.Sprintf("error configuring the snap for %s", spec.Name),
		}
	}
}
