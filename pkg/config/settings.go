package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/cuemby/agent-snapper/pkg/snap"
)

// Settings configures the agent-snapper process itself, as opposed to the
// orchestrator configuration it reconciles.
type Settings struct {
	SnapPath       string   `toml:"snap_path"`
	StateDir       string   `toml:"state_dir"`
	LogLevel       string   `toml:"log_level"`
	LogJSON        bool     `toml:"log_json"`
	MetricsAddr    string   `toml:"metrics_addr"`
	StatusInterval Duration `toml:"status_interval"`
	RetryInterval  Duration `toml:"retry_interval"`
}

// Duration decodes TOML strings such as "5m" into a time.Duration
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DefaultSettings returns the settings used when no file is present
func DefaultSettings() Settings {
	return Settings{
		SnapPath:       snap.DefaultPath,
		StateDir:       "/var/lib/agent-snapper",
		LogLevel:       "info",
		MetricsAddr:    "127.0.0.1:9464",
		StatusInterval: Duration{5 * time.Minute},
		RetryInterval:  Duration{30 * time.Second},
	}
}

// LoadSettings reads a TOML settings file on top of DefaultSettings. A
// missing file is not an error when optional is true.
func LoadSettings(path string, optional bool) (Settings, error) {
	settings := DefaultSettings()
	if path == "" {
		return settings, nil
	}

	md, err := toml.DecodeFile(path, &settings)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return DefaultSettings(), nil
		}
		return Settings{}, fmt.Errorf("failed to load settings %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Settings{}, fmt.Errorf("unknown settings in %s: %v", path, undecoded)
	}

	settings.applyDefaults()
	return settings, nil
}

func (s *Settings) applyDefaults() {
	defaults := DefaultSettings()
	if s.SnapPath == "" {
		s.SnapPath = defaults.SnapPath
	}
	if s.StateDir == "" {
		s.StateDir = defaults.StateDir
	}
	if s.LogLevel == "" {
		s.LogLevel = defaults.LogLevel
	}
	if s.StatusInterval.Duration <= 0 {
		s.StatusInterval = defaults.StatusInterval
	}
	if s.RetryInterval.Duration <= 0 {
		s.RetryInterval = defaults.RetryInterval
	}
}
