package snap

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"github.com/cuemby/agent-snapper/pkg/log"
	"github.com/cuemby/agent-snapper/pkg/types"
)

// DefaultPath is where snapd installs its command line client
const DefaultPath = "/usr/bin/snap"

// Client issues snap CLI operations through a Runner
type Client struct {
	path   string
	runner Runner
	logger zerolog.Logger
}

// NewClient creates a client for the snap binary at path. An empty path
// selects DefaultPath and a nil runner selects the host CommandRunner.
func NewClient(path string, runner Runner) *Client {
	if path == "" {
		path = DefaultPath
	}
	if runner == nil {
		runner = NewCommandRunner()
	}
	return &Client{
		path:   path,
		runner: runner,
		logger: log.WithComponent("snap"),
	}
}

// Path returns the snap binary the client invokes
func (c *Client) Path() string {
	return c.path
}

func (c *Client) exec(ctx context.Context, args ...string) (string, error) {
	argv := append([]string{c.path}, args...)
	out, err := c.runner.Run(ctx, argv...)
	if err != nil {
		return "", err
	}
	return out.Stdout, nil
}

// List runs "snap list <name>"; it succeeds only when the snap is installed
func (c *Client) List(ctx context.Context, name string) error {
	_, err := c.exec(ctx, "list", name)
	return err
}

// Install runs "snap install --channel <c> --<confinement> <name>"
func (c *Client) Install(ctx context.Context, name, channel string, confinement types.Confinement) error {
	c.logger.Debug().Str("snap", name).Str("channel", channel).Msg("Installing snap")
	_, err := c.exec(ctx, "install", "--channel", channel, confinementFlag(confinement), name)
	return err
}

// Refresh runs "snap refresh --channel <c> --<confinement> <name>"
func (c *Client) Refresh(ctx context.Context, name, channel string, confinement types.Confinement) error {
	c.logger.Debug().Str("snap", name).Str("channel", channel).Msg("Refreshing snap (already installed)")
	_, err := c.exec(ctx, "refresh", "--channel", channel, confinementFlag(confinement), name)
	return err
}

// Set runs "snap set <name> <key>=<value>" for a single pair
func (c *Client) Set(ctx context.Context, name, key, value string) error {
	_, err := c.exec(ctx, "set", name, key+"="+value)
	return err
}

// Unset runs "snap unset <name> <keys...>" with keys in sorted order
func (c *Client) Unset(ctx context.Context, name string, keys ...string) error {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	_, err := c.exec(ctx, append([]string{"unset", name}, sorted...)...)
	return err
}

// Get runs "snap get -d <name>" and returns the raw JSON document
func (c *Client) Get(ctx context.Context, name string) (string, error) {
	return c.exec(ctx, "get", "-d", name)
}

// Services runs "snap services <service>" and returns the raw table
func (c *Client) Services(ctx context.Context, service string) (string, error) {
	return c.exec(ctx, "services", service)
}

// Run runs "snap run <name>.<app>", used for the start/stop/restart apps
func (c *Client) Run(ctx context.Context, name, app string) error {
	c.logger.Debug().Str("snap", name).Str("app", app).Msg("Running snap app")
	_, err := c.exec(ctx, "run", name+"."+app)
	return err
}

// Remove runs "snap remove <name>"
func (c *Client) Remove(ctx context.Context, name string) error {
	c.logger.Debug().Str("snap", name).Msg("Removing snap")
	_, err := c.exec(ctx, "remove", name)
	return err
}

func confinementFlag(confinement types.Confinement) string {
	if confinement == "" {
		confinement = types.ConfinementClassic
	}
	return "--" + string(confinement)
}
