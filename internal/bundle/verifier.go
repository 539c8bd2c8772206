// Package bundle verifies that a packaged hook bundle is self-contained and valid.
//
// Verification runs the build as a fatal precondition, then four independent
// checks against the produced artifact: exists, non_empty, no_unresolved_refs
// and syntax. Each check is reported on its own.
package bundle

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/agentpulse/internal/config"
)

// BuildError is returned when the build precondition fails. It carries the
// captured output verbatim.
type BuildError struct {
	Command Command
	Result  *BuildResult
	Err     error
}

func (e *BuildError) Error() string {
	msg := e.headline()
	if e.Result != nil {
		msg += "\nstdout:\n" + e.Result.Stdout + "\nstderr:\n" + e.Result.Stderr
	}
	return msg
}

func (e *BuildError) headline() string {
	switch {
	case e.Result != nil && e.Result.TimedOut:
		return fmt.Sprintf("build %s timed out", e.Command.Path)
	case e.Result != nil && e.Err == nil:
		return fmt.Sprintf("build %s exited with code %d", e.Command.Path, e.Result.ExitCode)
	default:
		return fmt.Sprintf("build %s failed: %v", e.Command.Path, e.Err)
	}
}

func (e *BuildError) Unwrap() error { return e.Err }

// Report is the outcome of one verification run.
type Report struct {
	Artifact string
	Build    *BuildResult
	Checks   []CheckResult
}

// Check returns the result for name.
func (r *Report) Check(name CheckName) (CheckResult, bool) {
	for _, c := range r.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return CheckResult{}, false
}

// Failed returns the names of checks that ran and failed.
func (r *Report) Failed() []CheckName {
	var names []CheckName
	for _, c := range r.Checks {
		if !c.Passed && !c.Skipped {
			names = append(names, c.Name)
		}
	}
	return names
}

// Passed reports whether the build succeeded and every check passed.
func (r *Report) Passed() bool {
	if r.Build != nil && !r.Build.Succeeded() {
		return false
	}
	for _, c := range r.Checks {
		if !c.Passed {
			return false
		}
	}
	return len(r.Checks) == len(CheckOrder)
}

// Err joins the failing checks' errors, or returns nil.
func (r *Report) Err() error {
	var errs []error
	for _, c := range r.Checks {
		if c.Err != nil {
			errs = append(errs, c.Err)
		}
	}
	return errors.Join(errs...)
}

// Verifier builds the bundle and checks the artifact.
type Verifier struct {
	runner   Runner
	command  []string
	dir      string
	artifact string
}

// NewVerifier creates a Verifier from the bundle configuration.
func NewVerifier(cfg config.BundleConfig) *Verifier {
	return &Verifier{
		runner:   Runner{Timeout: cfg.Timeout},
		command:  cfg.Command,
		dir:      cfg.Dir,
		artifact: cfg.ArtifactPath(),
	}
}

// Artifact returns the artifact path being verified.
func (v *Verifier) Artifact() string { return v.artifact }

// Verify runs the build and then all four checks. On build failure it returns
// a *BuildError and a report whose checks are all skipped. Otherwise the error
// is the join of the failing checks' errors.
func (v *Verifier) Verify(ctx context.Context) (*Report, error) {
	report := &Report{Artifact: v.artifact}

	cmd, err := CommandFromArgv(v.command, v.dir)
	if err != nil {
		return skipAll(report), &BuildError{Err: err}
	}

	log.Info().Str("command", cmd.String()).Str("dir", cmd.Dir).Msg("Running build")

	res, err := v.runner.Run(ctx, cmd)
	report.Build = res
	if err != nil || !res.Succeeded() {
		log.Error().
			Int("exit_code", res.ExitCode).
			Dur("duration", res.Duration).
			Msg("Build failed")
		return skipAll(report), &BuildError{Command: cmd, Result: res, Err: err}
	}

	log.Debug().Dur("duration", res.Duration).Msg("Build finished")

	report.Checks = CheckArtifact(ctx, v.artifact)
	return report, report.Err()
}

// CheckArtifact runs the four checks against the file at path without building.
func CheckArtifact(ctx context.Context, path string) []CheckResult {
	s := &snapshot{path: path}
	s.info, s.statErr = os.Stat(path)
	s.content, s.readErr = os.ReadFile(path) // #nosec G304 -- artifact path is operator configured

	results := []CheckResult{
		checkExists(s),
		checkNonEmpty(s),
		checkNoUnresolvedRefs(s),
		checkSyntax(ctx, s),
	}

	for _, r := range results {
		evt := log.Debug()
		if !r.Passed {
			evt = log.Warn()
		}
		evt.Str("check", string(r.Name)).Str("detail", r.Detail).Msg(r.Status())
	}
	return results
}

func skipAll(r *Report) *Report {
	r.Checks = make([]CheckResult, 0, len(CheckOrder))
	for _, name := range CheckOrder {
		r.Checks = append(r.Checks, skipped(name))
	}
	return r
}
