// Package actuator invokes the external promotion command against the
// target tracking system. The engine treats it as an opaque collaborator
// behind the engine.Actuator interface.
package actuator

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/nagag08/rbpromotionsync/internal/engine"
)

// DefaultBinary is the JFrog CLI executable name.
const DefaultBinary = "jf"

// runner executes one external command and returns its combined output.
// Swapped out in tests.
type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecError carries the failed command's captured output for diagnostics.
type ExecError struct {
	Args   []string
	Output string
	Err    error
}

func (e *ExecError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("%s: %v: %s", strings.Join(e.Args, " "), e.Err, e.Output)
	}
	return fmt.Sprintf("%s: %v", strings.Join(e.Args, " "), e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// CLI performs promotions by running "jf rbp" synchronously. The target
// server is selected per invocation through an explicit --server-id, never
// by reconfiguring the tool's ambient default.
type CLI struct {
	binary   string
	serverID string
	run      runner
}

// Option configures a CLI actuator.
type Option func(*CLI)

// WithBinary overrides the executable name or path.
func WithBinary(binary string) Option {
	return func(c *CLI) { c.binary = binary }
}

// withRunner substitutes the command runner, for tests.
func withRunner(r runner) Option {
	return func(c *CLI) { c.run = r }
}

// New builds a CLI actuator. serverID names a preconfigured JFrog CLI
// server entry for the target system; empty means the tool's default server
// is used.
func New(serverID string, opts ...Option) *CLI {
	c := &CLI{
		binary:   DefaultBinary,
		serverID: serverID,
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).CombinedOutput()
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Promote runs the promotion command and blocks until it finishes. A
// non-zero exit maps to *ExecError with the captured output.
func (c *CLI) Promote(ctx context.Context, act engine.Actuation) error {
	args := c.args(act)
	out, err := c.run(ctx, c.binary, args...)
	if err != nil {
		return &ExecError{
			Args:   append([]string{c.binary}, args...),
			Output: strings.TrimSpace(string(out)),
			Err:    err,
		}
	}
	return nil
}

func (c *CLI) args(act engine.Actuation) []string {
	args := []string{
		"rbp",
		act.Identity.Name,
		act.Identity.Version,
		act.Environment,
		"--project=" + act.Identity.ProjectKey,
	}
	if include := act.IncludeArg(); include != "" {
		args = append(args, "--include-repos="+include)
	}
	if exclude := act.ExcludeArg(); exclude != "" {
		args = append(args, "--exclude-repos="+exclude)
	}
	if c.serverID != "" {
		args = append(args, "--server-id="+c.serverID)
	}
	return args
}
