package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/outboundlabs/leadflow/internal/enrich"
	"github.com/outboundlabs/leadflow/internal/outreach"
	"github.com/outboundlabs/leadflow/internal/personalize"
	"github.com/outboundlabs/leadflow/internal/pipeline"
	"github.com/outboundlabs/leadflow/internal/source"
	anthropicpkg "github.com/outboundlabs/leadflow/pkg/anthropic"
	"github.com/outboundlabs/leadflow/pkg/apollo"
	"github.com/outboundlabs/leadflow/pkg/places"
)

var (
	runTarget int
	runDryRun bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the daily discovery-to-enqueue pass",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("run"); err != nil {
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

		// Init clients
		placesClient := places.NewClient(cfg.Places.Key, places.WithBaseURL(cfg.Places.BaseURL))
		apolloClient := apollo.NewClient(cfg.Apollo.Key, apollo.WithBaseURL(cfg.Apollo.BaseURL))
		anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)

		sourcer := source.New(placesClient, sourceConfig(cfg.Sourcing))
		enricher := enrich.New(apolloClient)
		personalizer := personalize.New(anthropicClient, cfg.Anthropic.Model, personalize.Sender{
			Name:             cfg.Sender.Name,
			Bio:              cfg.Sender.Bio,
			ValueProposition: cfg.Sender.ValueProposition,
		})

		sequences, err := outreach.LoadTemplates(cfg.Outreach.TemplatesPath)
		if err != nil {
			return err
		}

		pcfg := pipelineConfig(sequences)
		if runTarget > 0 {
			pcfg.DailyTarget = runTarget
		}
		pcfg.DryRun = runDryRun

		p := pipeline.New(st, sourcer, enricher, personalizer, initOutreach(), pcfg)

		// Fold in provider engagement first so status selection sees
		// current reality. A sync failure does not block discovery.
		if !runDryRun {
			if _, err := p.RunReconcile(ctx); err != nil {
				zap.L().Warn("pre-run engagement sync failed", zap.Error(err))
			}
		}

		summary, err := p.RunDaily(ctx)
		if err != nil {
			return eris.Wrap(err, "daily pass")
		}

		zap.L().Info("daily pass summary",
			zap.Int("discovered", summary.Discovered),
			zap.Int("stored", summary.Stored),
			zap.Int("enqueued", summary.Enqueued),
			zap.Int("errors", summary.Errors.Total()),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

func init() {
	runCmd.Flags().IntVar(&runTarget, "target", 0, "override the daily new-lead target")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "discover, enrich, and score only; write nothing")
	rootCmd.AddCommand(runCmd)
}
