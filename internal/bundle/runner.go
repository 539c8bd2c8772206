package bundle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Command is one child process invocation.
type Command struct {
	Path string
	Args []string
	Dir  string // working directory
}

// CommandFromArgv splits argv into a Command.
func CommandFromArgv(argv []string, dir string) (Command, error) {
	if len(argv) == 0 || argv[0] == "" {
		return Command{}, errors.New("empty build command")
	}
	return Command{Path: argv[0], Args: argv[1:], Dir: dir}, nil
}

// String returns the command line, space separated.
func (c Command) String() string {
	return strings.Join(append([]string{c.Path}, c.Args...), " ")
}

// BuildResult is the captured outcome of a build.
type BuildResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	TimedOut bool
}

// Succeeded reports a zero exit status.
func (r *BuildResult) Succeeded() bool {
	return r != nil && r.ExitCode == 0 && !r.TimedOut
}

// Runner runs build commands with a bounded wait.
type Runner struct {
	Timeout time.Duration
}

// Run executes c and captures both output streams. A non-zero exit is not an
// error here; it is reported through ExitCode. The error is set only when the
// process could not be started or did not finish within the timeout, and the
// result is still returned with ExitCode -1.
func (r Runner) Run(ctx context.Context, c Command) (*BuildResult, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.Path, c.Args...) // #nosec G204 -- build command comes from the operator's config
	if c.Dir != "" {
		cmd.Dir = c.Dir
	}
	cmd.Env = os.Environ()
	// grandchildren holding the pipes must not stall Wait after a kill
	cmd.WaitDelay = 2 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := &BuildResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.ExitCode = -1
		res.TimedOut = true
		return res, fmt.Errorf("build timed out after %s: %w", r.Timeout, ctx.Err())
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		res.ExitCode = 0
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		res.ExitCode = -1
		return res, fmt.Errorf("start build %s: %w", c.Path, err)
	}

	return res, nil
}
