package config

import (
	"fmt"
	"strings"
)

// ParseError is returned when a snap-config block contains a line that is
// not a comment and has no "=".
type ParseError struct {
	Line int
	Text string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("snap-config line %d: expected key=value, got %q", e.Line, e.Text)
}

// ParseBlock parses a multi-line block of key=value pairs. Lines starting
// with "#" and blank lines are skipped; each remaining line is split on the
// first "=" and both sides are trimmed. A malformed line fails the whole
// block and no partial result is returned.
func ParseBlock(text string) (map[string]string, error) {
	parsed := make(map[string]string)
	for i, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "#") || strings.TrimSpace(line) == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, &ParseError{Line: i + 1, Text: line}
		}
		parsed[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return parsed, nil
}
