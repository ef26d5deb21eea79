package snap

import (
	"bufio"
	"context"
	"encoding/json"
	"strings"
)

// serviceHeader is the column header printed by "snap services"
var serviceHeader = []string{"Service", "Startup", "Current", "Notes"}

// IsInstalled reports whether "snap list <name>" succeeds. Any failure,
// including a missing snap binary, reads as not installed.
func (c *Client) IsInstalled(ctx context.Context, name string) bool {
	c.logger.Debug().Str("snap", name).Msg("Checking if snap is installed")
	return c.List(ctx, name) == nil
}

// IsServiceActive reports whether <name>.daemon is currently active
func (c *Client) IsServiceActive(ctx context.Context, name string) bool {
	daemon := name + ".daemon"
	c.logger.Debug().Str("service", daemon).Msg("Checking active status")

	out, err := c.Services(ctx, daemon)
	if err != nil {
		return false
	}
	return ParseServiceActive(out, name)
}

// CurrentConfig returns the snap's applied configuration from "snap get -d".
// Command or decode failures yield an empty map.
func (c *Client) CurrentConfig(ctx context.Context, name string) map[string]any {
	c.logger.Debug().Str("snap", name).Msg("Fetching current config")

	out, err := c.Get(ctx, name)
	if err != nil {
		return map[string]any{}
	}

	config := map[string]any{}
	if err := json.Unmarshal([]byte(out), &config); err != nil {
		c.logger.Error().Err(err).Str("snap", name).Msg("Error decoding snap config")
		return map[string]any{}
	}
	if config == nil {
		// "null" decodes without error
		return map[string]any{}
	}
	return config
}

// ParseServiceActive parses "snap services" output. The first non-empty line
// must be the Service/Startup/Current/Notes header; the result is true only
// when a row for <name>.daemon has "active" in its Current column.
func ParseServiceActive(output, name string) bool {
	daemon := name + ".daemon"
	scanner := bufio.NewScanner(strings.NewReader(output))

	headerSeen := false
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if !headerSeen {
			if !isServiceHeader(fields) {
				return false
			}
			headerSeen = true
			continue
		}
		if fields[0] != daemon {
			continue
		}
		return len(fields) >= 3 && fields[2] == "active"
	}
	return false
}

func isServiceHeader(fields []string) bool {
	if len(fields) != len(serviceHeader) {
		return false
	}
	for i, f := range fields {
		if f != serviceHeader[i] {
			return false
		}
	}
	return true
}
