package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/thebtf/agentpulse/internal/bundle"
)

var debounce = bundle.DefaultDebounce

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().DurationVar(&debounce, "debounce", bundle.DefaultDebounce, "quiet period before a rerun")
}

var watchCmd = &cobra.Command{
	Use:   "watch [flags] [-- build argv...]",
	Short: "Verify, then verify again whenever sources change",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(args)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		v := bundle.NewVerifier(cfg.Bundle)
		dirs := watchDirs(cfg.Bundle)
		w := bundle.Watcher{
			Dirs:     dirs,
			Ignore:   bundle.IgnoreFor(v.Artifact(), dirs),
			Debounce: debounce,
		}
		log.Info().Strs("dirs", w.Dirs).Str("artifact", v.Artifact()).Msg("Watching sources")

		return w.Run(ctx, func(ctx context.Context) {
			report, verr := v.Verify(ctx)
			if ctx.Err() != nil {
				return
			}
			report.WriteText(cmd.OutOrStdout(), verr)
		})
	},
}
