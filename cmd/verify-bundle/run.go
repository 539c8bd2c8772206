package main

import (
	"github.com/spf13/cobra"

	"github.com/thebtf/agentpulse/internal/bundle"
)

func init() {
	rootCmd.AddCommand(runCmd, checkCmd)
}

var runCmd = &cobra.Command{
	Use:   "run [flags] [-- build argv...]",
	Short: "Run the build once and check the artifact",
	Long:  "Runs the build command, then checks that the artifact exists, is non-empty,\nhas no unresolved @shared/ references and parses as JavaScript.\nA failing build is fatal and skips every check.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(args)
		if err != nil {
			return err
		}

		report, verr := bundle.NewVerifier(cfg.Bundle).Verify(cmd.Context())
		report.WriteText(cmd.OutOrStdout(), verr)
		if verr != nil {
			return errVerifyFailed
		}
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check <artifact>",
	Short: "Check an existing artifact without building",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadConfig(nil); err != nil {
			return err
		}

		report := &bundle.Report{
			Artifact: args[0],
			Checks:   bundle.CheckArtifact(cmd.Context(), args[0]),
		}
		report.WriteText(cmd.OutOrStdout(), nil)
		if !report.Passed() {
			return errVerifyFailed
		}
		return nil
	},
}
