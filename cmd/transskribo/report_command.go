package main

import (
	"github.com/spf13/cobra"

	"transskribo/internal/logging"
	"transskribo/internal/registry"
	"transskribo/internal/report"
	"transskribo/internal/scanner"
)

func newReportCommand(ctx *commandContext) *cobra.Command {
	var showFailures bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show registry statistics and batch progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			reg, err := registry.Load(cfg.RegistryPath(), logging.NewNop())
			if err != nil {
				return err
			}
			entries := reg.Entries()

			// Pending count only needs the input tree; a missing one just
			// means no pending files to report.
			pending := 0
			if files, err := scanner.Scan(cfg.Paths.InputDir, cfg.Paths.OutputDir); err == nil {
				pending = len(scanner.FilterAlreadyProcessed(files))
			}

			out := cmd.OutOrStdout()
			report.Render(out, report.Compute(entries), pending)
			if showFailures {
				report.RenderFailures(out, report.Failures(reg.FailedSources()))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showFailures, "failures", false, "Include the failed-entry table")
	return cmd
}
