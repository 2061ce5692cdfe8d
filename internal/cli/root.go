// Package cli defines the Cobra commands of the coach binary.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/set-night/interviewcoach/internal/config"
)

var version = "dev" // set via ldflags at build time

var rootCmd = &cobra.Command{
	Use:   "coach",
	Short: "AI interview coach: HTTP API and Telegram bot",
	Long: `coach runs mock job interviews against Gemini or OpenRouter.
It plans an interview from a job posting and résumé, keeps the
conversation going, and writes feedback and cover letters.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(checkCmd)
}

// setup loads the environment config and installs the JSON logger.
func setup() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)
	return cfg, nil
}
