package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/outboundlabs/leadflow/internal/pipeline"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Pull campaign engagement and sync it into the lead store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("reconcile"); err != nil {
			return err
		}

		lock, err := acquireLock()
		if err != nil {
			return err
		}
		defer lock.Release() //nolint:errcheck

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		// Reconcile only touches the store and the campaign provider.
		p := pipeline.New(st, nil, nil, nil, initOutreach(), pipelineConfig(nil))

		summary, err := p.RunReconcile(ctx)
		if err != nil {
			return eris.Wrap(err, "reconcile pass")
		}

		zap.L().Info("reconcile summary",
			zap.Int("synced", summary.Synced),
			zap.Int("replies", summary.RepliesFound),
			zap.Int("unmatched", summary.Unmatched),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}
