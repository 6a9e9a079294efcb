// Command lunchctl talks to the lunch bot from a terminal, without the
// messenger webhook in between.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ashureev/lunchbot/internal/app"
	"github.com/ashureev/lunchbot/internal/config"
)

var (
	userID  string
	verbose bool
	asJSON  bool
)

var rootCmd = &cobra.Command{
	Use:   "lunchctl",
	Short: "Lunch recommendation bot console",
	Long: `lunchctl runs the lunch bot pipeline locally.

Available commands:
  ask     - Send one message and print the reply
  history - List recorded lunch choices
  stats   - Summarize recorded lunch choices`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "cli", "User ID to act as")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log pipeline events to stderr")
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "Print machine-readable JSON")

	rootCmd.AddCommand(askCmd, historyCmd, statsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// withApp loads configuration, builds the application and runs fn with it.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	_ = godotenv.Load()

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build app: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("close app", "error", closeErr)
		}
	}()

	return fn(ctx, a)
}
