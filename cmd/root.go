package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/outboundlabs/leadflow/internal/config"
	"github.com/outboundlabs/leadflow/internal/runlock"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "leadflow",
	Short: "Automated lead generation and outreach pipeline",
	Long:  "Discovers agencies via Google Maps, enriches contacts via Apollo, scores and dedupes leads, generates personalized copy via Claude, and runs the outreach sequence through Instantly.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Distinct exit code so cron wrappers can tell an overlapping
		// invocation from a real failure.
		if errors.Is(err, runlock.ErrHeld) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
