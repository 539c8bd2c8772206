// Package main provides the verify-bundle CLI.
// It builds the hook bundle and checks that the artifact is self-contained
// and parses as JavaScript.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/thebtf/agentpulse/internal/config"
	"github.com/thebtf/agentpulse/internal/logging"
)

// Version is set at build time via ldflags
var Version = "dev"

// errVerifyFailed makes the process exit 1 after the report is printed.
var errVerifyFailed = errors.New("verification failed")

var (
	configPath string
	buildDir   string
	artifact   string
	timeout    time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "verify-bundle",
	Short:         "Build the hook bundle and verify the artifact",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "settings file (default $AGENTPULSE_HOME/settings.yaml)")
	pf.StringVar(&buildDir, "dir", "", "directory the build runs in")
	pf.StringVar(&artifact, "artifact", "", "artifact path, relative to --dir")
	pf.DurationVar(&timeout, "timeout", 0, "build timeout")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, errVerifyFailed) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

// loadConfig resolves settings once, then applies flags and argv overrides.
func loadConfig(argv []string) (*config.Config, error) {
	var cfg *config.Config
	if configPath != "" {
		var err error
		if cfg, err = config.LoadFile(configPath); err != nil {
			return nil, err
		}
	} else {
		cfg = config.Load()
	}
	logging.Setup(cfg.LogLevel, zerolog.InfoLevel)

	if buildDir != "" {
		cfg.Bundle.Dir = buildDir
	}
	if artifact != "" {
		cfg.Bundle.Artifact = artifact
	}
	if timeout > 0 {
		cfg.Bundle.Timeout = timeout
	}
	if len(argv) > 0 {
		cfg.Bundle.Command = argv
	}
	return cfg, nil
}

// watchDirs returns the configured source dirs resolved against the build dir.
func watchDirs(b config.BundleConfig) []string {
	if len(b.Watch) == 0 {
		return []string{b.Dir}
	}
	dirs := make([]string, 0, len(b.Watch))
	for _, d := range b.Watch {
		if !filepath.IsAbs(d) && b.Dir != "" {
			d = filepath.Join(b.Dir, d)
		}
		dirs = append(dirs, d)
	}
	return dirs
}
