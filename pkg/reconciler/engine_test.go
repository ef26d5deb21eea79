package reconciler_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/agent-snapper/pkg/config"
	"github.com/cuemby/agent-snapper/pkg/reconciler"
	"github.com/cuemby/agent-snapper/pkg/snap"
	"github.com/cuemby/agent-snapper/pkg/snap/snaptest"
	"github.com/cuemby/agent-snapper/pkg/types"
)

const name = "jobbergate-agent"

func fullConfig() map[string]string {
	return map[string]string{
		"jobbergate-agent-base-api-url":       "https://apis.example.com",
		"jobbergate-agent-oidc-domain":        "auth.example.com",
		"jobbergate-agent-oidc-client-id":     "client",
		"jobbergate-agent-oidc-client-secret": "secret",
		"vantage-agent-base-api-url":          "https://elsewhere.example.com",
	}
}

func newEngine(t *testing.T, fake *snaptest.Snapd, variant types.Variant, opts ...reconciler.Option) *reconciler.Engine {
	t.Helper()
	spec, err := config.NewSpec(name, variant, "", "", nil)
	require.NoError(t, err)
	return reconciler.NewEngine(spec, fake.Client(), opts...)
}

func handle(e *reconciler.Engine, kind types.EventKind, leader bool, raw map[string]string) types.Outcome {
	return e.Handle(context.Background(), types.Event{ID: "evt", Kind: kind, Leader: leader, Config: raw})
}

func TestEngineInstallIsIdempotent(t *testing.T) {
	fake := snaptest.New()
	e := newEngine(t, fake, types.VariantPrefixed)

	out := handle(e, types.EventInstall, false, nil)
	require.NotNil(t, out.Status)
	assert.False(t, out.Retry)

	handle(e, types.EventInstall, false, nil)
	handle(e, types.EventInstall, false, nil)

	var installs []string
	for _, verb := range fake.Verbs() {
		if verb == "install" || verb == "refresh" {
			installs = append(installs, verb)
		}
	}
	assert.Equal(t, []string{"install", "refresh", "refresh"}, installs)
	assert.Contains(t, fake.Calls(), "install --channel stable --classic jobbergate-agent")
	assert.Contains(t, fake.Calls(), "refresh --channel stable --classic jobbergate-agent")
}

func TestEngineInstallReportsInterimStatus(t *testing.T) {
	fake := snaptest.New()
	var interim []types.Status
	e := newEngine(t, fake, types.VariantPrefixed, reconciler.WithInterimStatus(func(s types.Status) {
		interim = append(interim, s)
	}))

	out := handle(e, types.EventInstall, true, map[string]string{"snap-channel": "edge"})

	require.Len(t, interim, 1)
	assert.Equal(t, types.Status{Tag: types.StatusWaiting, Message: "installing snap for jobbergate-agent"}, interim[0])
	assert.Equal(t, []string{
		"list jobbergate-agent",
		"install --channel edge --classic jobbergate-agent",
		"services jobbergate-agent.daemon",
	}, fake.Calls())

	// Installed but not started yet
	require.NotNil(t, out.Status)
	assert.Equal(t, types.Status{Tag: types.StatusBlocked, Message: "cannot start snap"}, *out.Status)
}

func TestEngineInstallFailure(t *testing.T) {
	fake := snaptest.New().Fail("install", "error: cannot reach the store")
	e := newEngine(t, fake, types.VariantPrefixed)

	out := handle(e, types.EventInstall, true, nil)

	assert.True(t, out.Retry)
	assert.Equal(t, types.StateBlockedError, out.State)
	require.NotNil(t, out.Status)
	assert.Equal(t, types.Status{Tag: types.StatusBlocked, Message: "error installing the snap for jobbergate-agent"}, *out.Status)
	assert.NotContains(t, fake.Verbs(), "services")
}

type panickingClient struct {
	*snap.Client
}

func (panickingClient) Install(context.Context, string, string, types.Confinement) error {
	panic("unexpected snapd response")
}

func (panickingClient) Remove(context.Context, string) error {
	panic("unexpected snapd response")
}

func TestEngineRecoversFromPanic(t *testing.T) {
	spec, err := config.NewSpec(name, types.VariantLegacy, "", "", nil)
	require.NoError(t, err)
	e := reconciler.NewEngine(spec, panickingClient{snaptest.New().Client()})

	out := handle(e, types.EventInstall, true, nil)

	assert.True(t, out.Retry)
	require.NotNil(t, out.Status)
	assert.Equal(t, types.StatusBlocked, out.Status.Tag)
	assert.Equal(t, "error installing the snap for jobbergate-agent", out.Status.Message)
}

func TestEnginePanicOutsideInstallIsNotRetried(t *testing.T) {
	spec, err := config.NewSpec(name, types.VariantPrefixed, "", "", nil)
	require.NoError(t, err)
	e := reconciler.NewEngine(spec, panickingClient{snaptest.New().Client()})

	out := handle(e, types.EventRemove, true, nil)

	assert.False(t, out.Retry)
	assert.Equal(t, types.StateBlockedError, out.State)
	require.NotNil(t, out.Status)
	assert.Equal(t, types.StatusBlocked, out.Status.Tag)
	assert.Equal(t, "unexpected error handling remove for jobbergate-agent", out.Status.Message)
}

func TestEngineConfigChangedOrdering(t *testing.T) {
	fake := snaptest.New().Install(name)
	e := newEngine(t, fake, types.VariantPrefixed)

	out := handle(e, types.EventConfigChanged, true, fullConfig())

	assert.Equal(t, []string{
		"list jobbergate-agent",
		"run jobbergate-agent.stop",
		"set jobbergate-agent base-api-url=https://apis.example.com",
		"set jobbergate-agent oidc-client-id=client",
		"set jobbergate-agent oidc-client-secret=secret",
		"set jobbergate-agent oidc-domain=auth.example.com",
		"run jobbergate-agent.start",
		"services jobbergate-agent.daemon",
	}, fake.Calls())

	assert.False(t, out.Retry)
	assert.Equal(t, types.StateActive, out.State)
	require.NotNil(t, out.Status)
	assert.Equal(t, types.Status{Tag: types.StatusActive}, *out.Status)

	// Applied config reads back through the probe
	current := fake.Client().CurrentConfig(context.Background(), name)
	assert.Equal(t, "https://apis.example.com", current["base-api-url"])
	assert.Equal(t, "client", current["oidc-client-id"])
}

func TestEngineConfigChangedFollower(t *testing.T) {
	fake := snaptest.New().Install(name)
	e := newEngine(t, fake, types.VariantPrefixed)

	out := handle(e, types.EventConfigChanged, false, fullConfig())

	assert.NotContains(t, fake.Calls(), "run jobbergate-agent.start")
	assert.NotContains(t, fake.Verbs(), "services")
	assert.False(t, fake.Active(name))
	require.NotNil(t, out.Status)
	assert.Equal(t, types.Status{Tag: types.StatusActive, Message: "jobbergate-agent status: standby"}, *out.Status)
}

func TestEngineConfigChangedDeferred(t *testing.T) {
	for _, variant := range []types.Variant{types.VariantPrefixed, types.VariantLegacy} {
		t.Run(string(variant), func(t *testing.T) {
			fake := snaptest.New()
			e := newEngine(t, fake, variant)

			raw := fullConfig()
			raw["snap-config"] = "a=1"
			out := handle(e, types.EventConfigChanged, true, raw)

			assert.True(t, out.Retry)
			assert.Equal(t, []string{"list"}, fake.Verbs())
			require.NotNil(t, out.Status)
			assert.Equal(t, types.StatusWaiting, out.Status.Tag)
		})
	}
}

func TestEngineConfigChangedMissingKeys(t *testing.T) {
	fake := snaptest.New().Install(name)
	e := newEngine(t, fake, types.VariantPrefixed)

	raw := fullConfig()
	raw["jobbergate-agent-oidc-domain"] = ""
	delete(raw, "jobbergate-agent-oidc-client-secret")

	out := handle(e, types.EventConfigChanged, true, raw)

	assert.Equal(t, []string{"list"}, fake.Verbs())
	assert.False(t, out.Retry)
	assert.Equal(t, types.StateBlockedMissingConfig, out.State)
	require.NotNil(t, out.Status)
	assert.Equal(t, types.Status{
		Tag:     types.StatusBlocked,
		Message: "cannot start jobbergate-agent, missing config: jobbergate-agent-oidc-domain, jobbergate-agent-oidc-client-secret",
	}, *out.Status)
}

func TestEngineBestEffortFailuresAreSwallowed(t *testing.T) {
	fake := snaptest.New().Install(name).Fail("run", "error: service not found")
	e := newEngine(t, fake, types.VariantPrefixed)

	out := handle(e, types.EventConfigChanged, true, fullConfig())

	assert.False(t, out.Retry)
	assert.Equal(t, "secret", fake.Config(name)["oidc-client-secret"])
	require.NotNil(t, out.Status)
	assert.Equal(t, types.Status{Tag: types.StatusBlocked, Message: "cannot start snap"}, *out.Status)
}

func TestEngineSetFailureAborts(t *testing.T) {
	fake := snaptest.New().Install(name).Fail("set", "error: snap is busy")
	e := newEngine(t, fake, types.VariantPrefixed)

	out := handle(e, types.EventConfigChanged, true, fullConfig())

	assert.True(t, out.Retry)
	assert.NotContains(t, fake.Calls(), "run jobbergate-agent.start")
	require.NotNil(t, out.Status)
	assert.Equal(t, types.Status{Tag: types.StatusBlocked, Message: "error configuring the snap for jobbergate-agent"}, *out.Status)
}

func TestEngineUpdateStatusDivergence(t *testing.T) {
	fake := snaptest.New().Install(name).SetActive(name, false)
	e := newEngine(t, fake, types.VariantPrefixed)

	leader := handle(e, types.EventUpdateStatus, true, nil)
	require.NotNil(t, leader.Status)
	assert.Equal(t, types.StatusBlocked, leader.Status.Tag)
	assert.Equal(t, "cannot start snap", leader.Status.Message)

	fake.Reset()
	follower := handle(e, types.EventUpdateStatus, false, nil)
	require.NotNil(t, follower.Status)
	assert.Equal(t, types.StatusActive, follower.Status.Tag)
	assert.Equal(t, "jobbergate-agent status: standby", follower.Status.Message)
	assert.Empty(t, fake.Calls())

	fake.SetActive(name, true)
	active := handle(e, types.EventUpdateStatus, true, nil)
	assert.Equal(t, types.Status{Tag: types.StatusActive}, *active.Status)
}

func TestEngineStartStopRemove(t *testing.T) {
	fake := snaptest.New().Install(name)
	e := newEngine(t, fake, types.VariantPrefixed)

	handle(e, types.EventStart, false, nil)
	assert.False(t, fake.Active(name))

	out := handle(e, types.EventStart, true, nil)
	assert.True(t, fake.Active(name))
	assert.Equal(t, types.Status{Tag: types.StatusActive}, *out.Status)

	out = handle(e, types.EventStop, true, nil)
	assert.False(t, fake.Active(name))
	assert.Equal(t, types.StateMaintenance, out.State)
	require.NotNil(t, out.Status)
	assert.Equal(t, types.StatusMaintenance, out.Status.Tag)

	out = handle(e, types.EventRemove, true, nil)
	assert.Nil(t, out.Status)
	assert.Equal(t, types.StateRemoved, out.State)
	assert.False(t, fake.Installed(name))
}

func TestEngineRemoveFailureIsSwallowed(t *testing.T) {
	fake := snaptest.New().Fail("remove", "error: snap not installed")
	e := newEngine(t, fake, types.VariantPrefixed)

	out := handle(e, types.EventRemove, true, nil)

	assert.False(t, out.Retry)
	assert.Nil(t, out.Status)
}

func TestEngineLegacyConfigure(t *testing.T) {
	t.Run("clears previous config and restarts", func(t *testing.T) {
		fake := snaptest.New().Install(name).SetActive(name, true).
			SetConfig(name, map[string]any{"stale": "1", "a": "0"})
		e := newEngine(t, fake, types.VariantLegacy)

		out := handle(e, types.EventConfigChanged, true, map[string]string{"snap-config": "a=1\nb = 2"})

		assert.Equal(t, []string{
			"list jobbergate-agent",
			"get -d jobbergate-agent",
			"services jobbergate-agent.daemon",
			"unset jobbergate-agent a stale",
			"set jobbergate-agent a=1",
			"set jobbergate-agent b=2",
			"run jobbergate-agent.restart",
			"services jobbergate-agent.daemon",
		}, fake.Calls())
		assert.Equal(t, map[string]any{"a": "1", "b": "2"}, fake.Config(name))
		assert.Equal(t, types.Status{Tag: types.StatusActive}, *out.Status)
	})

	t.Run("empty config is not unset", func(t *testing.T) {
		fake := snaptest.New().Install(name)
		e := newEngine(t, fake, types.VariantLegacy)

		handle(e, types.EventConfigChanged, true, map[string]string{"snap-config": "a=1"})

		assert.NotContains(t, fake.Verbs(), "unset")
		assert.NotContains(t, fake.Verbs(), "run")
		assert.Equal(t, "1", fake.Config(name)["a"])
	})

	t.Run("parse error applies nothing", func(t *testing.T) {
		fake := snaptest.New().Install(name).SetActive(name, true).
			SetConfig(name, map[string]any{"a": "0"})
		e := newEngine(t, fake, types.VariantLegacy)

		out := handle(e, types.EventConfigChanged, true, map[string]string{"snap-config": "a=1\nbroken"})

		assert.NotContains(t, fake.Verbs(), "set")
		assert.NotContains(t, fake.Verbs(), "unset")
		assert.Equal(t, map[string]any{"a": "0"}, fake.Config(name))
		require.NotNil(t, out.Status)
		assert.Equal(t, types.StatusActive, out.Status.Tag)
	})
}
