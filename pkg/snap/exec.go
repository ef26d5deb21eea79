package snap

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/go-cmd/cmd"
	"github.com/kballard/go-shellquote"
	"github.com/rs/zerolog"

	"github.com/cuemby/agent-snapper/pkg/log"
	"github.com/cuemby/agent-snapper/pkg/metrics"
)

// ErrEmptyCommand is returned when Run is called without an argument vector
var ErrEmptyCommand = errors.New("snap: empty command")

// Command is one finished external invocation
type Command struct {
	Argv     []string
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// String renders the argument vector the way a shell would accept it
func (c *Command) String() string {
	return shellquote.Join(c.Argv...)
}

// CommandError is returned for a non-zero exit or a failure to spawn.
// Err is set only when the process could not be started or was stopped.
type CommandError struct {
	Argv     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	var b strings.Builder
	b.WriteString("command failed: ")
	b.WriteString(shellquote.Join(e.Argv...))
	b.WriteString(" (exit ")
	b.WriteString(strconv.Itoa(e.ExitCode))
	b.WriteString(")")
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		b.WriteString(": ")
		b.WriteString(stderr)
	}
	return b.String()
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Runner executes one external command line and captures its output
type Runner interface {
	Run(ctx context.Context, argv ...string) (*Command, error)
}

// CommandRunner runs commands on the local host. It never retries and never
// imposes a deadline of its own; cancelling ctx stops the child.
type CommandRunner struct {
	logger zerolog.Logger
}

// NewCommandRunner creates a host command runner
func NewCommandRunner() *CommandRunner {
	return &CommandRunner{logger: log.WithComponent("exec")}
}

// Run spawns argv[0] with the remaining arguments and waits for it to exit
func (r *CommandRunner) Run(ctx context.Context, argv ...string) (*Command, error) {
	if len(argv) == 0 {
		return nil, &CommandError{ExitCode: -1, Err: ErrEmptyCommand}
	}

	timer := metrics.NewTimer()
	subcommand := subcommandOf(argv)
	defer timer.ObserveDurationVec(metrics.CommandDuration, subcommand)

	r.logger.Debug().Str("cmd", shellquote.Join(argv...)).Msg("Running command")

	// go-cmd's own buffers split output into lines with a bounded line
	// length; capture the raw streams instead.
	var stdout, stderr bytes.Buffer
	c := cmd.NewCmdOptions(cmd.Options{
		BeforeExec: []func(*exec.Cmd){
			func(ec *exec.Cmd) {
				ec.Stdout = &stdout
				ec.Stderr = &stderr
			},
		},
	}, argv[0], argv[1:]...)
	statusCh := c.Start()

	var status cmd.Status
	select {
	case status = <-statusCh:
	case <-ctx.Done():
		_ = c.Stop()
		status = <-statusCh
		if status.Error == nil {
			status.Error = ctx.Err()
		}
	}

	result := &Command{
		Argv:     argv,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: status.Exit,
		Duration: timer.Duration(),
	}

	if status.Error != nil || status.Exit != 0 {
		metrics.CommandsTotal.WithLabelValues(subcommand, "failure").Inc()
		cmdErr := &CommandError{
			Argv:     argv,
			ExitCode: status.Exit,
			Stderr:   result.Stderr,
			Err:      status.Error,
		}
		r.logger.Error().Err(cmdErr).Msg("Error executing command")
		return result, cmdErr
	}

	metrics.CommandsTotal.WithLabelValues(subcommand, "success").Inc()
	r.logger.Debug().
		Str("cmd", result.String()).
		Str("stdout", strings.TrimSpace(result.Stdout)).
		Msg("Command succeeded")
	return result, nil
}

// subcommandOf labels a snap invocation by its verb, e.g. "install"
func subcommandOf(argv []string) string {
	if len(argv) < 2 {
		return "none"
	}
	return argv[1]
}
