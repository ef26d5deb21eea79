package types

import (
	"time"
)

// DefaultRequiredKeys are the configuration keys every snapped agent needs
// before its daemon can be started.
var DefaultRequiredKeys = []string{
	"base-api-url",
	"oidc-domain",
	"oidc-client-id",
	"oidc-client-secret",
}

// Orchestrator configuration keys consumed outside the package prefix
const (
	ConfigKeyChannel     = "snap-channel"
	ConfigKeyConfinement = "snap-confinement"
	ConfigKeyBlock       = "snap-config"

	DefaultChannel = "stable"
)

// PackageSpec describes the snap managed by one engine instance.
// It is created once and never mutated.
type PackageSpec struct {
	Name          string      `validate:"required,snapname"`
	BaseRequired  []string    `validate:"dive,required"`
	ExtraRequired []string    `validate:"dive,required"`
	Channel       string      `validate:"required"`
	Confinement   Confinement `validate:"required,oneof=classic strict devmode"`
	Variant       Variant     `validate:"required,oneof=prefixed legacy"`
}

// Required returns the base keys followed by the caller supplied keys.
func (s PackageSpec) Required() []string {
	keys := make([]string, 0, len(s.BaseRequired)+len(s.ExtraRequired))
	keys = append(keys, s.BaseRequired...)
	return append(keys, s.ExtraRequired...)
}

// Prefix is the orchestrator key prefix owned by this package.
func (s PackageSpec) Prefix() string {
	return s.Name + "-"
}

// Confinement is the snap confinement flag used for install and refresh
type Confinement string

const (
	ConfinementClassic Confinement = "classic"
	ConfinementStrict  Confinement = "strict"
	ConfinementDevmode Confinement = "devmode"
)

// Variant selects how desired configuration is read from the orchestrator
type Variant string

const (
	// VariantPrefixed reads "<snap>-<key>" entries and enforces required keys.
	VariantPrefixed Variant = "prefixed"
	// VariantLegacy reads a multi-line "snap-config" block of key=value lines.
	VariantLegacy Variant = "legacy"
)

// DesiredConfig maps unprefixed snap keys to values
type DesiredConfig map[string]string

// ActualState is what the probes observed right before a decision
type ActualState struct {
	Installed     bool
	ServiceActive bool
	Config        map[string]any
}

// StatusTag is the orchestrator visible status category
type StatusTag string

const (
	StatusWaiting     StatusTag = "waiting"
	StatusActive      StatusTag = "active"
	StatusBlocked     StatusTag = "blocked"
	StatusMaintenance StatusTag = "maintenance"
)

// Status is a tag plus a human readable message
type Status struct {
	Tag     StatusTag
	Message string
}

func (s Status) String() string {
	if s.Message == "" {
		return string(s.Tag)
	}
	return string(s.Tag) + ": " + s.Message
}

// ReconcileState is the lifecycle state derived from probes at decision time.
// It is never persisted by the engine.
type ReconcileState string

const (
	StateUninstalled           ReconcileState = "uninstalled"
	StateInstalledUnconfigured ReconcileState = "installed-unconfigured"
	StateConfiguring           ReconcileState = "configuring"
	StateActive                ReconcileState = "active"
	StateBlockedMissingConfig  ReconcileState = "blocked-missing-config"
	StateBlockedError          ReconcileState = "blocked-error"
	StateMaintenance           ReconcileState = "maintenance"
	StateRemoved               ReconcileState = "removed"
)

// Outcome is the result of handling a single event. Status is nil only for
// events that leave the unit status untouched (remove).
type Outcome struct {
	EventID string
	Kind    EventKind
	State   ReconcileState
	Status  *Status
	Retry   bool
}

// EventKind identifies a lifecycle notification
type EventKind string

const (
	EventInstall       EventKind = "install"
	EventConfigChanged EventKind = "config-changed"
	EventStart         EventKind = "start"
	EventStop          EventKind = "stop"
	EventRemove        EventKind = "remove"
	EventUpdateStatus  EventKind = "update-status"
)

// EventKinds lists every supported kind in dispatch order
var EventKinds = []EventKind{
	EventInstall,
	EventConfigChanged,
	EventStart,
	EventStop,
	EventRemove,
	EventUpdateStatus,
}

// Event is one lifecycle notification with the read-only inputs the
// orchestrator exposes alongside it.
type Event struct {
	ID        string
	Kind      EventKind
	Leader    bool
	Config    map[string]string
	Timestamp time.Time
}

// OutcomeRecord is a journaled outcome
type OutcomeRecord struct {
	ID        string    `json:"id"`
	Snap      string    `json:"snap"`
	EventID   string    `json:"event_id"`
	Kind      EventKind `json:"kind"`
	Leader    bool      `json:"leader"`
	State     string    `json:"state"`
	Tag       StatusTag `json:"tag,omitempty"`
	Message   string    `json:"message,omitempty"`
	Retry     bool      `json:"retry"`
	Duration  string    `json:"duration"`
	Timestamp time.Time `json:"timestamp"`
}

// DeferredEvent is an event awaiting redelivery
type DeferredEvent struct {
	EventID  string    `json:"event_id"`
	Snap     string    `json:"snap"`
	Kind     EventKind `json:"kind"`
	Leader   bool      `json:"leader"`
	Attempts int       `json:"attempts"`
	Deferred time.Time `json:"deferred"`
}
