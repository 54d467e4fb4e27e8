package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"transskribo/internal/config"
	"transskribo/internal/enrich"
	"transskribo/internal/logging"
	"transskribo/internal/services/llm"
)

func newEnrichCommand(ctx *commandContext) *cobra.Command {
	var (
		force    bool
		filePath string
	)

	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Add LLM-derived titles, summaries, and keywords to transcripts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.ValidateEnrich(); err != nil {
				return err
			}

			logger, err := logging.New(logging.Options{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
			})
			if err != nil {
				return err
			}

			client := llm.NewClient(llm.Config{
				APIKey:         cfg.Enrich.APIKey,
				BaseURL:        cfg.Enrich.BaseURL,
				Model:          cfg.Enrich.Model,
				TimeoutSeconds: cfg.Enrich.TimeoutSeconds,
			})
			enricher := enrich.New(client, cfg.Enrich.Model, logger)
			out := cmd.OutOrStdout()

			if filePath != "" {
				path, err := config.ExpandPath(filePath)
				if err != nil {
					return err
				}
				enriched, err := enricher.EnrichFile(cmd.Context(), path, force)
				if err != nil {
					return err
				}
				if !enriched {
					fmt.Fprintln(out, "Already enriched (use --force to redo)")
					return nil
				}
				fmt.Fprintf(out, "Enriched %s\n", path)
				return nil
			}

			summary, err := enricher.EnrichDirectory(cmd.Context(), cfg.Paths.OutputDir, cfg.StateDir(), force)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Enriched %d, skipped %d, failed %d\n",
				summary.Enriched, summary.Skipped, summary.Failed)
			if summary.Failed > 0 {
				return fmt.Errorf("%d documents failed enrichment", summary.Failed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Re-enrich documents that already have an enrichment section")
	cmd.Flags().StringVarP(&filePath, "file", "f", "", "Enrich a single output document instead of the whole tree")
	return cmd
}
