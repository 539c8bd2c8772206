// Package main provides the collector, a local sink for agentpulse events.
// It accepts what the hooks POST to /api/events, keeps recent events in
// memory and streams them over SSE.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/thebtf/agentpulse/internal/collector"
	"github.com/thebtf/agentpulse/internal/config"
	"github.com/thebtf/agentpulse/internal/logging"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	host     string
	port     int
	capacity int
)

var rootCmd = &cobra.Command{
	Use:           "collector",
	Short:         "Receive agentpulse events on the local ingestion endpoint",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runCollector,
}

func init() {
	rootCmd.Flags().StringVar(&host, "host", "", "listen host (default from settings)")
	rootCmd.Flags().IntVar(&port, "port", 0, "listen port (default from settings or $AGENTPULSE_SERVER_PORT)")
	rootCmd.Flags().IntVar(&capacity, "capacity", collector.DefaultCapacity, "events kept in memory")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runCollector(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	logging.Setup(cfg.LogLevel, zerolog.InfoLevel)

	if host != "" {
		cfg.Server.Host = host
	}
	if port > 0 {
		cfg.Server.Port = port
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("version", Version).
		Int("capacity", capacity).
		Msg("Starting agentpulse collector")

	if err := collector.New(capacity).Serve(ctx, cfg.Server.Addr()); err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	log.Info().Msg("Collector shutdown complete")
	return nil
}
