package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"transskribo/internal/config"
	"transskribo/internal/logging"
	"transskribo/internal/pipeline"
	"transskribo/internal/preflight"
	"transskribo/internal/services/whisperx"
	"transskribo/internal/validator"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		inputDir    string
		outputDir   string
		language    string
		modelSize   string
		device      string
		dryRun      bool
		retryFailed bool
		maxFiles    int
		maxMinutes  float64
		noProgress  bool
		skipChecks  bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Transcribe all pending files in the input directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := applyOverrides(cfg, inputDir, outputDir, language, modelSize, device); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}

			logger, err := logging.New(logging.Options{
				Level:       cfg.Logging.Level,
				Format:      cfg.Logging.Format,
				OutputPaths: []string{"stderr", cfg.LogFilePath()},
			})
			if err != nil {
				return err
			}

			// Every file is probed before it is attempted, so a missing
			// ffprobe fails the whole batch up front, even with --skip-checks.
			// Dry runs degrade to per-file skip reasons instead.
			if !dryRun {
				if err := validator.CheckFFprobe(cfg.FFprobeBinary()); err != nil {
					return err
				}
			}

			if !skipChecks && !dryRun {
				results := preflight.RunAll(cmd.Context(), cfg)
				if !preflight.AllPassed(results) {
					renderPreflight(cmd.OutOrStdout(), results)
					return fmt.Errorf("preflight checks failed")
				}
			}

			engine := whisperx.NewService(whisperx.Config{
				Model:       cfg.Whisper.ModelSize,
				Language:    cfg.Whisper.Language,
				ComputeType: cfg.Whisper.ComputeType,
				BatchSize:   cfg.Whisper.BatchSize,
				CUDAEnabled: cfg.Whisper.Device == "cuda",
				HFToken:     cfg.Whisper.HFToken,
				WorkDir:     filepath.Join(cfg.StateDir(), "work"),
			})

			runner := pipeline.NewRunner(cfg, engine, logger, pipeline.Options{
				DryRun:               dryRun,
				RetryFailed:          retryFailed,
				MaxFiles:             maxFiles,
				MaxProcessingMinutes: maxMinutes,
				ShowProgress:         !noProgress && isatty.IsTerminal(os.Stdout.Fd()),
			})
			runner.WithOutput(cmd.OutOrStdout())

			summary, err := runner.Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"Succeeded %d, duplicates %d, failed %d, skipped %d (elapsed %s)\n",
				summary.Succeeded, summary.Duplicates, summary.Failed, summary.Skipped,
				summary.Elapsed.Round(runElapsedPrecision))
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputDir, "input", "i", "", "Input directory (overrides config)")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory (overrides config)")
	cmd.Flags().StringVarP(&language, "language", "l", "", "Audio language (overrides config)")
	cmd.Flags().StringVarP(&modelSize, "model", "m", "", "WhisperX model size (overrides config)")
	cmd.Flags().StringVar(&device, "device", "", "Device: cuda or cpu (overrides config)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List pending files without processing")
	cmd.Flags().BoolVar(&retryFailed, "retry-failed", false, "Re-attempt previously failed files")
	cmd.Flags().IntVar(&maxFiles, "max-files", 0, "Stop after processing this many files")
	cmd.Flags().Float64Var(&maxMinutes, "max-minutes", 0, "Stop once this much processing time has passed")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")
	cmd.Flags().BoolVar(&skipChecks, "skip-checks", false, "Skip preflight checks")
	return cmd
}

func applyOverrides(cfg *config.Config, inputDir, outputDir, language, modelSize, device string) error {
	var err error
	if v := strings.TrimSpace(inputDir); v != "" {
		if cfg.Paths.InputDir, err = config.ExpandPath(v); err != nil {
			return err
		}
	}
	if v := strings.TrimSpace(outputDir); v != "" {
		if cfg.Paths.OutputDir, err = config.ExpandPath(v); err != nil {
			return err
		}
	}
	if v := strings.TrimSpace(language); v != "" {
		cfg.Whisper.Language = v
	}
	if v := strings.TrimSpace(modelSize); v != "" {
		cfg.Whisper.ModelSize = v
	}
	if v := strings.TrimSpace(device); v != "" {
		cfg.Whisper.Device = v
	}
	return nil
}
