// Package snaptest provides an in-memory stand-in for the snap command line
// client so engine behaviour can be exercised without snapd.
package snaptest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cuemby/agent-snapper/pkg/snap"
)

// Path is the snap binary path the fake expects as argv[0]
const Path = "/usr/bin/snap"

// Snapd simulates snap CLI behaviour for a set of snaps
type Snapd struct {
	mu        sync.Mutex
	installed map[string]bool
	active    map[string]bool
	config    map[string]map[string]any
	failures  map[string]string
	calls     [][]string

	// ServicesOutput overrides the "snap services" table when set
	ServicesOutput *string
	// GetOutput overrides the "snap get -d" document when set
	GetOutput *string
}

var _ snap.Runner = (*Snapd)(nil)

// New returns an empty fake with no snaps installed
func New() *Snapd {
	return &Snapd{
		installed: make(map[string]bool),
		active:    make(map[string]bool),
		config:    make(map[string]map[string]any),
		failures:  make(map[string]string),
	}
}

// Client returns a snap.Client wired to this fake
func (s *Snapd) Client() *snap.Client {
	return snap.NewClient(Path, s)
}

// Install marks a snap installed without recording a call
func (s *Snapd) Install(name string) *Snapd {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.installed[name] = true
	return s
}

// SetActive sets the daemon state of a snap without recording a call
func (s *Snapd) SetActive(name string, active bool) *Snapd {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[name] = active
	return s
}

// SetConfig seeds applied configuration without recording a call
func (s *Snapd) SetConfig(name string, config map[string]any) *Snapd {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config[name] = config
	return s
}

// Fail makes every invocation of verb exit 1 with stderr
func (s *Snapd) Fail(verb, stderr string) *Snapd {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[verb] = stderr
	return s
}

// Installed reports the simulated install state
func (s *Snapd) Installed(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.installed[name]
}

// Active reports the simulated daemon state
func (s *Snapd) Active(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[name]
}

// Config returns a copy of the simulated applied configuration
func (s *Snapd) Config(name string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.config[name]))
	for k, v := range s.config[name] {
		out[k] = v
	}
	return out
}

// Calls returns every invocation with the binary path stripped, each joined
// with spaces, e.g. "set vantage-agent a=1".
func (s *Snapd) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.calls))
	for _, argv := range s.calls {
		out = append(out, strings.Join(argv[1:], " "))
	}
	return out
}

// Verbs returns the first argument of every invocation
func (s *Snapd) Verbs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.calls))
	for _, argv := range s.calls {
		if len(argv) > 1 {
			out = append(out, argv[1])
		}
	}
	return out
}

// Reset forgets recorded calls
func (s *Snapd) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// Run implements snap.Runner
func (s *Snapd) Run(_ context.Context, argv ...string) (*snap.Command, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, append([]string(nil), argv...))
	if len(argv) < 2 {
		return s.fail(argv, "error: unknown command")
	}

	verb, args := argv[1], argv[2:]
	if stderr, ok := s.failures[verb]; ok {
		return s.fail(argv, stderr)
	}

	switch verb {
	case "list":
		if len(args) != 1 || !s.installed[args[0]] {
			return s.fail(argv, "error: no matching snaps installed")
		}
		return s.ok(argv, fmt.Sprintf("Name  Version  Rev  Tracking  Publisher  Notes\n%s  1.0  1  latest/stable  omnivector  classic\n", args[0]))
	case "install":
		name := args[len(args)-1]
		s.installed[name] = true
		return s.ok(argv, name+" installed\n")
	case "refresh":
		name := args[len(args)-1]
		if !s.installed[name] {
			return s.fail(argv, fmt.Sprintf("error: snap %q is not installed", name))
		}
		return s.ok(argv, name+" refreshed\n")
	case "set":
		if len(args) < 2 {
			return s.fail(argv, "error: the required argument `<conf value>` was not provided")
		}
		name := args[0]
		if s.config[name] == nil {
			s.config[name] = make(map[string]any)
		}
		for _, pair := range args[1:] {
			k, v, ok := strings.Cut(pair, "=")
			if !ok {
				return s.fail(argv, fmt.Sprintf("error: invalid configuration: %q (want key=value)", pair))
			}
			s.config[name][k] = v
		}
		return s.ok(argv, "")
	case "unset":
		name := args[0]
		for _, k := range args[1:] {
			delete(s.config[name], k)
		}
		return s.ok(argv, "")
	case "get":
		if s.GetOutput != nil {
			return s.ok(argv, *s.GetOutput)
		}
		name := args[len(args)-1]
		doc := s.config[name]
		if doc == nil {
			doc = map[string]any{}
		}
		data, _ := json.Marshal(doc)
		return s.ok(argv, string(data)+"\n")
	case "services":
		if s.ServicesOutput != nil {
			return s.ok(argv, *s.ServicesOutput)
		}
		daemon := args[0]
		name := strings.TrimSuffix(daemon, ".daemon")
		if !s.installed[name] {
			return s.fail(argv, fmt.Sprintf("error: snap %q not found", name))
		}
		current := "inactive"
		if s.active[name] {
			current = "active"
		}
		return s.ok(argv, fmt.Sprintf("Service  Startup  Current  Notes\n%s  enabled  %s  -\n", daemon, current))
	case "run":
		name, app, _ := strings.Cut(args[0], ".")
		switch app {
		case "start", "restart":
			s.active[name] = true
		case "stop":
			s.active[name] = false
		}
		return s.ok(argv, "")
	case "remove":
		name := args[0]
		delete(s.installed, name)
		delete(s.active, name)
		delete(s.config, name)
		return s.ok(argv, name+" removed\n")
	default:
		return s.fail(argv, fmt.Sprintf("error: unknown command %q", verb))
	}
}

func (s *Snapd) ok(argv []string, stdout string) (*snap.Command, error) {
	return &snap.Command{Argv: argv, Stdout: stdout}, nil
}

func (s *Snapd) fail(argv []string, stderr string) (*snap.Command, error) {
	cmd := &snap.Command{Argv: argv, Stderr: stderr, ExitCode: 1}
	return cmd, &snap.CommandError{Argv: argv, ExitCode: 1, Stderr: stderr}
}

// SortedKeys is a test helper for comparing config documents
func SortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
