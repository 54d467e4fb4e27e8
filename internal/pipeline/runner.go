package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/schollz/progressbar/v3"

	"transskribo/internal/config"
	"transskribo/internal/contentid"
	"transskribo/internal/logging"
	"transskribo/internal/output"
	"transskribo/internal/registry"
	"transskribo/internal/scanner"
	"transskribo/internal/services"
	"transskribo/internal/transcribe"
	"transskribo/internal/validator"
)

// Options controls a single batch run.
type Options struct {
	// DryRun reports the intended outcome per pending file (process,
	// duplicate, or skip) without touching models, outputs, or the registry.
	DryRun bool
	// RetryFailed re-attempts files whose content hash has a failed entry.
	RetryFailed bool
	// MaxFiles stops the run after this many files have been freshly
	// processed. Duplicates, skips, and failures do not count toward it.
	// Zero means no limit.
	MaxFiles int
	// MaxProcessingMinutes stops the run once this much wall time has passed
	// since the first file attempt. Checked only at file boundaries; the file
	// in flight always finishes. Zero means no limit.
	MaxProcessingMinutes float64
	// ShowProgress renders a progress bar during processing.
	ShowProgress bool
}

// StopReason records why the run ended.
type StopReason string

const (
	StopCompleted  StopReason = "completed"
	StopCancelled  StopReason = "cancelled"
	StopMaxFiles   StopReason = "max-files"
	StopMaxMinutes StopReason = "max-processing-minutes"
)

// Summary is the outcome of one batch run. Processed counts every file that
// reached the registry: successes, duplicates, and failures. Skipped files
// (invalid media, previously failed without retry) never count.
type Summary struct {
	Scanned    int
	Pending    int
	Processed  int
	Succeeded  int
	Duplicates int
	Failed     int
	Skipped    int
	StopReason StopReason
	Elapsed    time.Duration
}

type fileOutcome int

const (
	outcomeSkipped fileOutcome = iota
	outcomeSuccess
	outcomeDuplicate
	outcomeFailed
	outcomeAborted
)

// Runner sequences the batch: scan, admit, and drive each pending file
// through the per-file state machine, persisting the registry after every
// outcome.
type Runner struct {
	cfg    *config.Config
	engine transcribe.Engine
	logger *slog.Logger
	opts   Options
	out    io.Writer
	runID  string

	validate func(ctx context.Context, path string) validator.Outcome
	now      func() time.Time
}

// NewRunner creates a batch runner bound to one configuration and engine.
func NewRunner(cfg *config.Config, engine transcribe.Engine, logger *slog.Logger, opts Options) *Runner {
	r := &Runner{
		cfg:    cfg,
		engine: engine,
		logger: logging.NewComponentLogger(logger, "pipeline"),
		opts:   opts,
		out:    os.Stdout,
		runID:  uuid.NewString(),
		now:    time.Now,
	}
	r.validate = func(ctx context.Context, path string) validator.Outcome {
		return validator.Validate(ctx, cfg.FFprobeBinary(), path, cfg.Limits.MaxDurationHours)
	}
	return r
}

// WithOutput redirects human-facing output (tables, stop line, progress bar).
func (r *Runner) WithOutput(w io.Writer) {
	r.out = w
}

// WithValidator replaces media validation (for testing).
func (r *Runner) WithValidator(fn func(ctx context.Context, path string) validator.Outcome) {
	r.validate = fn
}

// RunID returns the identifier stamped on registry entries from this run.
func (r *Runner) RunID() string {
	return r.runID
}

// Run executes the batch and returns its summary. The registry is loaded
// before the first file and saved after every file outcome, so a crash at any
// point loses at most the file in flight.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	start := r.now()
	var summary Summary

	if err := r.cfg.EnsureDirectories(); err != nil {
		return summary, err
	}

	lock := flock.New(r.cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return summary, fmt.Errorf("acquire run lock: %w", err)
	}
	if !locked {
		return summary, services.Wrap(services.ErrValidation, "pipeline", "lock",
			"another run is already active for this output directory", nil)
	}
	defer lock.Unlock()

	reg, err := registry.Load(r.cfg.RegistryPath(), r.logger)
	if err != nil {
		return summary, err
	}

	files, err := scanner.Scan(r.cfg.Paths.InputDir, r.cfg.Paths.OutputDir)
	if err != nil {
		return summary, fmt.Errorf("scan input directory: %w", err)
	}
	summary.Scanned = len(files)

	pending := scanner.FilterAlreadyProcessed(files)
	summary.Pending = len(pending)

	r.logger.Info("batch starting",
		logging.String("run_id", r.runID),
		logging.Int("scanned", summary.Scanned),
		logging.Int("pending", summary.Pending),
		logging.Bool("dry_run", r.opts.DryRun),
		logging.Bool("retry_failed", r.opts.RetryFailed))

	if r.opts.DryRun {
		r.renderDryRun(ctx, reg, pending)
		summary.StopReason = StopCompleted
		summary.Elapsed = r.now().Sub(start)
		return summary, nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	graceful, stopSignals := notifyCancel(cancel, r.logger)
	defer stopSignals()

	var bar *progressbar.ProgressBar
	if r.opts.ShowProgress && len(pending) > 0 {
		bar = progressbar.NewOptions(len(pending),
			progressbar.OptionSetDescription("transcribing"),
			progressbar.OptionSetWriter(r.out),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	var firstAttempt time.Time
	for _, file := range pending {
		if reason, stopped := r.shouldStop(runCtx, graceful, summary.Succeeded, firstAttempt); stopped {
			summary.StopReason = reason
			break
		}
		if firstAttempt.IsZero() {
			firstAttempt = r.now()
		}

		outcome := r.processFile(runCtx, reg, file)
		if outcome == outcomeAborted {
			summary.StopReason = StopCancelled
			break
		}
		switch outcome {
		case outcomeSuccess:
			summary.Succeeded++
			summary.Processed++
		case outcomeDuplicate:
			summary.Duplicates++
			summary.Processed++
		case outcomeFailed:
			summary.Failed++
			summary.Processed++
		case outcomeSkipped:
			summary.Skipped++
		}
		if bar != nil {
			bar.Add(1)
		}
	}
	if bar != nil {
		bar.Finish()
	}

	if summary.StopReason == "" {
		summary.StopReason = StopCompleted
	}
	summary.Elapsed = r.now().Sub(start)
	r.renderStop(summary)
	return summary, nil
}

// shouldStop evaluates the stop conditions at a file boundary, in precedence
// order: cancellation, then max-files, then the processing time limit.
// max-files counts only fresh successful processing: duplicates and failures
// cost no model time, so they never consume the budget.
func (r *Runner) shouldStop(ctx context.Context, graceful *atomic.Bool, succeeded int, firstAttempt time.Time) (StopReason, bool) {
	if ctx.Err() != nil || graceful.Load() {
		return StopCancelled, true
	}
	if r.opts.MaxFiles > 0 && succeeded >= r.opts.MaxFiles {
		return StopMaxFiles, true
	}
	if r.opts.MaxProcessingMinutes > 0 && !firstAttempt.IsZero() {
		limit := time.Duration(r.opts.MaxProcessingMinutes * float64(time.Minute))
		if r.now().Sub(firstAttempt) >= limit {
			return StopMaxMinutes, true
		}
	}
	return "", false
}

// processFile drives one file through validate, hash, registry lookup, and
// either duplicate materialization or full transcription. Every outcome that
// reaches the registry is saved before the next file starts. A file abandoned
// by cancellation records nothing: the registry stays at its last durable
// state and the file is picked up again on the next run.
func (r *Runner) processFile(ctx context.Context, reg *registry.Registry, file scanner.MediaFile) fileOutcome {
	log := r.logger.With(logging.String("source", file.RelativePath))

	check := r.validate(ctx, file.Path)
	if !check.Valid {
		log.Warn("skipping invalid file", logging.String("reason", check.Reason))
		return outcomeSkipped
	}

	hash, err := contentid.Hash(file.Path)
	if err != nil {
		log.Error("cannot hash file", logging.Error(err))
		return outcomeSkipped
	}
	log = log.With(logging.String("hash", shortHash(hash)))

	if entry, ok := reg.Lookup(hash); ok {
		switch {
		case entry.Status == registry.StatusSuccess:
			if _, err := os.Stat(entry.OutputPath); err == nil {
				return r.materializeDuplicate(log, reg, hash, entry, file)
			}
			log.Warn("registered output missing, reprocessing",
				logging.String("expected_output", entry.OutputPath))
		case entry.Status == registry.StatusFailed && !r.opts.RetryFailed:
			log.Info("skipping previously failed file (use --retry-failed)",
				logging.String("previous_error", entry.Error))
			return outcomeSkipped
		}
	}

	entry, err := r.transcribeFile(ctx, file, hash, check.DurationSecs)
	if err != nil {
		// The stage error wraps tool output, not context.Canceled, so ask the
		// context itself whether this was an abort rather than a real failure.
		if ctx.Err() != nil {
			log.Warn("cancelled mid-file, leaving registry untouched", logging.Error(err))
			return outcomeAborted
		}
		log.Error("processing failed", logging.Error(err))
		reg.Upsert(hash, registry.Entry{
			SourcePath: file.Path,
			OutputPath: file.OutputPath,
			Timestamp:  registry.Now(),
			Status:     registry.StatusFailed,
			Error:      err.Error(),
			RunID:      r.runID,
		})
		r.saveRegistry(reg)
		return outcomeFailed
	}

	reg.Upsert(hash, entry)
	r.saveRegistry(reg)
	log.Info("file transcribed",
		logging.Float64("total_secs", entry.Timing.TotalSecs),
		logging.String("output", entry.OutputPath))
	return outcomeSuccess
}

// materializeDuplicate copies the earlier output for identical content. The
// new registry entry keeps the original run's audio duration and timing: no
// model work happened here, so re-stamping timing would be a lie.
func (r *Runner) materializeDuplicate(log *slog.Logger, reg *registry.Registry, hash string, prior registry.Entry, file scanner.MediaFile) fileOutcome {
	if err := output.CopyDuplicate(prior.OutputPath, file.OutputPath, file.Path); err != nil {
		log.Error("duplicate copy failed", logging.Error(err))
		reg.Upsert(hash, registry.Entry{
			SourcePath: file.Path,
			OutputPath: file.OutputPath,
			Timestamp:  registry.Now(),
			Status:     registry.StatusFailed,
			Error:      err.Error(),
			RunID:      r.runID,
		})
		r.saveRegistry(reg)
		return outcomeFailed
	}

	entry := prior
	entry.SourcePath = file.Path
	entry.OutputPath = file.OutputPath
	entry.Timestamp = registry.Now()
	entry.RunID = r.runID
	reg.Upsert(hash, entry)
	r.saveRegistry(reg)

	log.Info("duplicate content, copied existing output",
		logging.String("original", prior.SourcePath))
	return outcomeDuplicate
}

// transcribeFile runs the full per-file pipeline: decode once, recognition
// and alignment in one slot, diarization in the next, speaker assignment,
// then the atomic output write.
func (r *Runner) transcribeFile(ctx context.Context, file scanner.MediaFile, hash string, durationSecs *float64) (registry.Entry, error) {
	totalStart := r.now()

	audio, err := r.engine.DecodeAudio(ctx, file.Path)
	if err != nil {
		return registry.Entry{}, services.Wrap(services.ErrExternalTool, "pipeline", "decode", "extract audio", err)
	}
	defer audio.Cleanup()

	aligned, transcribeSecs, alignSecs, err := RunRecognitionStage(ctx, r.engine, audio)
	if err != nil {
		return registry.Entry{}, err
	}

	turns, diarizeSecs, err := RunDiarizationStage(ctx, r.engine, audio.SourcePath)
	if err != nil {
		return registry.Entry{}, err
	}

	final := transcribe.AssignSpeakers(aligned, turns)
	totalSecs := r.now().Sub(totalStart).Seconds()

	timing := transcribe.Timing{
		TranscribeSecs: transcribeSecs,
		AlignSecs:      alignSecs,
		DiarizeSecs:    diarizeSecs,
		TotalSecs:      totalSecs,
	}
	doc := output.BuildDocument(final, output.Metadata{
		SourceFile:   file.Path,
		FileHash:     hash,
		DurationSecs: durationSecs,
		ModelSize:    r.cfg.Whisper.ModelSize,
		Language:     r.cfg.Whisper.Language,
		ProcessedAt:  registry.Now(),
		Timing:       &timing,
	})
	if err := output.Write(doc, file.OutputPath); err != nil {
		return registry.Entry{}, err
	}

	return registry.Entry{
		SourcePath:        file.Path,
		OutputPath:        file.OutputPath,
		Timestamp:         registry.Now(),
		Status:            registry.StatusSuccess,
		DurationAudioSecs: durationSecs,
		Timing: &registry.Timing{
			TranscribeSecs: timing.TranscribeSecs,
			AlignSecs:      timing.AlignSecs,
			DiarizeSecs:    timing.DiarizeSecs,
			TotalSecs:      timing.TotalSecs,
		},
		RunID: r.runID,
	}, nil
}

func (r *Runner) saveRegistry(reg *registry.Registry) {
	if err := reg.Save(); err != nil {
		r.logger.Error("registry save failed", logging.Error(err))
	}
}

// renderDryRun reports the intended outcome per pending file. It runs
// validation, hashing, and the duplicate decision, but never opens a model
// slot, writes an output, or mutates the registry.
func (r *Runner) renderDryRun(ctx context.Context, reg *registry.Registry, pending []scanner.MediaFile) {
	if len(pending) == 0 {
		fmt.Fprintln(r.out, "Nothing to do: no pending files.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "File", "Size", "Action"})
	var totalBytes int64
	for i, file := range pending {
		t.AppendRow(table.Row{
			i + 1,
			file.RelativePath,
			humanize.Bytes(uint64(file.SizeBytes)),
			r.plannedAction(ctx, reg, file),
		})
		totalBytes += file.SizeBytes
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d files pending", len(pending)), humanize.Bytes(uint64(totalBytes)), ""})
	t.Render()
}

func (r *Runner) plannedAction(ctx context.Context, reg *registry.Registry, file scanner.MediaFile) string {
	check := r.validate(ctx, file.Path)
	if !check.Valid {
		return "skip: " + check.Reason
	}
	hash, err := contentid.Hash(file.Path)
	if err != nil {
		return "skip: cannot hash"
	}
	if entry, ok := reg.Lookup(hash); ok {
		switch {
		case entry.Status == registry.StatusSuccess:
			return "duplicate of " + entry.SourcePath
		case entry.Status == registry.StatusFailed && !r.opts.RetryFailed:
			return "skip: previously failed"
		}
	}
	return "process"
}

func (r *Runner) renderStop(summary Summary) {
	var line string
	switch summary.StopReason {
	case StopCancelled:
		line = "Stopped: cancelled by user"
	case StopMaxFiles:
		line = fmt.Sprintf("Stopped: max-files limit (%d) reached", r.opts.MaxFiles)
	case StopMaxMinutes:
		line = fmt.Sprintf("Stopped: processing time limit (%.1f minutes) reached", r.opts.MaxProcessingMinutes)
	default:
		line = "Completed: all pending files handled"
	}
	fmt.Fprintln(r.out, line)

	r.logger.Info("batch finished",
		logging.String("stop_reason", string(summary.StopReason)),
		logging.Int("succeeded", summary.Succeeded),
		logging.Int("duplicates", summary.Duplicates),
		logging.Int("failed", summary.Failed),
		logging.Int("skipped", summary.Skipped),
		logging.Duration("elapsed", summary.Elapsed))
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
