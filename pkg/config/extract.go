package config

import (
	"strings"
)

// Extract returns every entry of raw whose key starts with prefix, keyed by
// the remainder of the key.
func Extract(raw map[string]string, prefix string) map[string]string {
	desired := make(map[string]string)
	for key, value := range raw {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		desired[strings.TrimPrefix(key, prefix)] = value
	}
	return desired
}

// Missing returns the required keys that are absent from desired or set to
// the empty string, in the order they were required. Any other value,
// including "0" or "false", counts as present.
func Missing(desired map[string]string, required []string) []string {
	var missing []string
	for _, key := range required {
		if desired[key] == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

// Qualify restores the orchestrator prefix on each key
func Qualify(prefix string, keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		out = append(out, prefix+key)
	}
	return out
}
