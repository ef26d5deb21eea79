// Package agents holds the built-in presets for the snapped agents this
// binary is deployed with.
package agents

import (
	"errors"
	"fmt"
	"sort"

	"github.com/cuemby/agent-snapper/pkg/config"
	"github.com/cuemby/agent-snapper/pkg/types"
)

// ErrLegacyRequired is returned when required keys are given for a legacy
// deployment
var ErrLegacyRequired = errors.New("required keys are not supported for legacy snap-config deployments")

// Preset describes one known agent
type Preset struct {
	Name          string
	Description   string
	ExtraRequired []string
}

var presets = map[string]Preset{
	"jobbergate-agent": {
		Name:        "jobbergate-agent",
		Description: "Jobbergate job submission agent",
	},
	"vantage-agent": {
		Name:          "vantage-agent",
		Description:   "Vantage cluster agent",
		ExtraRequired: []string{"cluster-name"},
	},
	"license-manager-agent": {
		Name:        "license-manager-agent",
		Description: "License Manager agent",
	},
}

// List returns every preset sorted by name
func List() []Preset {
	out := make([]Preset, 0, len(presets))
	for _, p := range presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup returns the preset called name
func Lookup(name string) (Preset, bool) {
	p, ok := presets[name]
	return p, ok
}

// Spec builds a validated package spec for the preset. Legacy deployments
// read their configuration from a snap-config block and have no required
// keys.
func (p Preset) Spec(variant types.Variant, channel string) (types.PackageSpec, error) {
	if variant == types.VariantLegacy {
		return config.NewSpec(p.Name, variant, channel, "", nil)
	}
	return config.NewSpec(p.Name, variant, channel, "", p.ExtraRequired)
}

// Required returns every key the prefixed variant needs, qualified with the
// agent prefix
func (p Preset) Required() []string {
	keys := append(append([]string(nil), types.DefaultRequiredKeys...), p.ExtraRequired...)
	return config.Qualify(p.Name+"-", keys)
}

// SpecFor resolves name to a preset spec, or a plain spec with extra
// required keys when name is not a known agent. Legacy deployments have no
// required keys, so extra keys are rejected for them.
func SpecFor(name string, variant types.Variant, channel string, extra []string) (types.PackageSpec, error) {
	if variant == types.VariantLegacy && len(extra) > 0 {
		return types.PackageSpec{}, ErrLegacyRequired
	}
	if p, ok := Lookup(name); ok {
		p.ExtraRequired = append(append([]string(nil), p.ExtraRequired...), extra...)
		spec, err := p.Spec(variant, channel)
		if err != nil {
			return types.PackageSpec{}, fmt.Errorf("preset %s: %w", name, err)
		}
		return spec, nil
	}
	return config.NewSpec(name, variant, channel, "", extra)
}
