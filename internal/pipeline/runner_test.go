package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/require"

	"transskribo/internal/config"
	"transskribo/internal/logging"
	"transskribo/internal/output"
	"transskribo/internal/registry"
	"transskribo/internal/testsupport"
	"transskribo/internal/validator"
)

func newTestRunner(t *testing.T, cfg *config.Config, engine *testsupport.FakeEngine, opts Options) *Runner {
	t.Helper()

	r := NewRunner(cfg, engine, logging.NewNop(), opts)
	r.WithOutput(io.Discard)
	r.WithValidator(func(ctx context.Context, path string) validator.Outcome {
		duration := 120.0
		return validator.Outcome{Valid: true, DurationSecs: &duration}
	})
	return r
}

func addMedia(t *testing.T, cfg *config.Config, name, content string) string {
	t.Helper()
	path := filepath.Join(cfg.Paths.InputDir, name)
	testsupport.WriteFile(t, path, content)
	return path
}

func loadRegistry(t *testing.T, cfg *config.Config) *registry.Registry {
	t.Helper()
	reg, err := registry.Load(cfg.RegistryPath(), logging.NewNop())
	require.NoError(t, err)
	return reg
}

func TestRunProcessesAllPendingFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	addMedia(t, cfg, "a.mp3", "content-a")
	addMedia(t, cfg, "sub/b.mp3", "content-b")

	engine := testsupport.NewFakeEngine()
	runner := newTestRunner(t, cfg, engine, Options{})

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, summary.Scanned)
	require.Equal(t, 2, summary.Pending)
	require.Equal(t, 2, summary.Succeeded)
	require.Equal(t, 2, summary.Processed)
	require.Equal(t, StopCompleted, summary.StopReason)

	// Outputs mirror the input tree.
	require.FileExists(t, filepath.Join(cfg.Paths.OutputDir, "a.json"))
	require.FileExists(t, filepath.Join(cfg.Paths.OutputDir, "sub", "b.json"))

	reg := loadRegistry(t, cfg)
	require.Equal(t, 2, reg.Len())
	for _, entry := range reg.Entries() {
		require.Equal(t, registry.StatusSuccess, entry.Status)
		require.NotNil(t, entry.Timing)
		require.NotNil(t, entry.DurationAudioSecs)
		require.Equal(t, runner.RunID(), entry.RunID)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	addMedia(t, cfg, "a.mp3", "content-a")

	first := newTestRunner(t, cfg, testsupport.NewFakeEngine(), Options{})
	_, err := first.Run(context.Background())
	require.NoError(t, err)

	engine := testsupport.NewFakeEngine()
	second := newTestRunner(t, cfg, engine, Options{})
	summary, err := second.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, summary.Scanned)
	require.Equal(t, 0, summary.Pending)
	require.Equal(t, 0, summary.Processed)
	require.Empty(t, engine.Events())
}

func TestDuplicateContentCopiesOutputAndPreservesTiming(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	addMedia(t, cfg, "a.mp3", "same-content")

	_, err := newTestRunner(t, cfg, testsupport.NewFakeEngine(), Options{}).Run(context.Background())
	require.NoError(t, err)

	var hash string
	var original registry.Entry
	for h, entry := range loadRegistry(t, cfg).Entries() {
		hash, original = h, entry
	}
	require.NotEmpty(t, hash)

	// Same bytes under a new name: no model work, just a copy.
	duplicatePath := addMedia(t, cfg, "sub/a-copy.mp3", "same-content")
	engine := testsupport.NewFakeEngine()
	summary, err := newTestRunner(t, cfg, engine, Options{}).Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, summary.Duplicates)
	require.Equal(t, 0, summary.Succeeded)
	require.Empty(t, engine.Events())

	duplicateOutput := filepath.Join(cfg.Paths.OutputDir, "sub", "a-copy.json")
	require.FileExists(t, duplicateOutput)

	data, err := os.ReadFile(duplicateOutput)
	require.NoError(t, err)
	var doc output.Document
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Equal(t, duplicatePath, doc.Metadata.SourceFile)
	require.Equal(t, hash, doc.Metadata.FileHash)
	require.NotEmpty(t, doc.Segments)

	// Latest-wins: one entry per hash, pointing at the duplicate, keeping the
	// original run's timing and audio duration.
	reg := loadRegistry(t, cfg)
	require.Equal(t, 1, reg.Len())
	entry, ok := reg.Lookup(hash)
	require.True(t, ok)
	require.Equal(t, duplicatePath, entry.SourcePath)
	require.Equal(t, duplicateOutput, entry.OutputPath)
	require.Equal(t, *original.Timing, *entry.Timing)
	require.Equal(t, *original.DurationAudioSecs, *entry.DurationAudioSecs)
}

func TestFailureRecordsEntryWithoutOutput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	badPath := addMedia(t, cfg, "bad.mp3", "content-bad")
	addMedia(t, cfg, "good.mp3", "content-good")

	engine := testsupport.NewFakeEngine()
	engine.FailRecognize[badPath] = errors.New("model exploded")

	summary, err := newTestRunner(t, cfg, engine, Options{}).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Failed)
	require.Equal(t, 1, summary.Succeeded)

	require.NoFileExists(t, filepath.Join(cfg.Paths.OutputDir, "bad.json"))
	require.FileExists(t, filepath.Join(cfg.Paths.OutputDir, "good.json"))

	var failed *registry.Entry
	for _, entry := range loadRegistry(t, cfg).Entries() {
		if entry.Status == registry.StatusFailed {
			e := entry
			failed = &e
		}
	}
	require.NotNil(t, failed)
	require.Equal(t, badPath, failed.SourcePath)
	require.Contains(t, failed.Error, "model exploded")
	require.Nil(t, failed.Timing)
	require.Nil(t, failed.DurationAudioSecs)
}

func TestFailedFilesSkippedUnlessRetryRequested(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	badPath := addMedia(t, cfg, "bad.mp3", "content-bad")

	engine := testsupport.NewFakeEngine()
	engine.FailRecognize[badPath] = errors.New("boom")
	_, err := newTestRunner(t, cfg, engine, Options{}).Run(context.Background())
	require.NoError(t, err)

	// Default mode leaves the failed entry alone.
	skipEngine := testsupport.NewFakeEngine()
	summary, err := newTestRunner(t, cfg, skipEngine, Options{}).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Skipped)
	require.Equal(t, 0, summary.Processed)
	require.Empty(t, skipEngine.Events())

	// Retry mode re-attempts it; this time the engine cooperates.
	summary, err = newTestRunner(t, cfg, testsupport.NewFakeEngine(), Options{RetryFailed: true}).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Succeeded)
	require.FileExists(t, filepath.Join(cfg.Paths.OutputDir, "bad.json"))

	for _, entry := range loadRegistry(t, cfg).Entries() {
		require.Equal(t, registry.StatusSuccess, entry.Status)
		require.Empty(t, entry.Error)
	}
}

func TestInvalidFilesAreSkippedWithoutRegistryEntry(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	silentPath := addMedia(t, cfg, "silent.mp4", "no-audio")
	addMedia(t, cfg, "ok.mp3", "content-ok")

	runner := newTestRunner(t, cfg, testsupport.NewFakeEngine(), Options{})
	runner.WithValidator(func(ctx context.Context, path string) validator.Outcome {
		if path == silentPath {
			return validator.Outcome{Valid: false, Reason: "no audio stream found"}
		}
		duration := 60.0
		return validator.Outcome{Valid: true, DurationSecs: &duration}
	})

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Skipped)
	require.Equal(t, 1, summary.Succeeded)
	require.Equal(t, 1, loadRegistry(t, cfg).Len())
}

func TestMaxFilesStopsAtBoundary(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	for _, name := range []string{"a.mp3", "b.mp3", "c.mp3", "d.mp3"} {
		addMedia(t, cfg, name, "content-"+name)
	}

	summary, err := newTestRunner(t, cfg, testsupport.NewFakeEngine(), Options{MaxFiles: 2}).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, summary.Pending)
	require.Equal(t, 2, summary.Processed)
	require.Equal(t, StopMaxFiles, summary.StopReason)
	require.Equal(t, 2, loadRegistry(t, cfg).Len())
}

func TestProcessingTimeLimitStopsBetweenFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	addMedia(t, cfg, "a.mp3", "content-a")
	addMedia(t, cfg, "b.mp3", "content-b")

	engine := testsupport.NewFakeEngine()
	engine.RecognizeDelay = 50 * time.Millisecond

	// 0.0005 minutes = 30ms: expires during the first file, so the run stops
	// before starting the second. The in-flight file still completes.
	summary, err := newTestRunner(t, cfg, engine, Options{MaxProcessingMinutes: 0.0005}).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Processed)
	require.Equal(t, 1, summary.Succeeded)
	require.Equal(t, StopMaxMinutes, summary.StopReason)
}

func TestCancellationTakesPrecedence(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	addMedia(t, cfg, "a.mp3", "content-a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := newTestRunner(t, cfg, testsupport.NewFakeEngine(), Options{MaxFiles: 1}).Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, summary.Processed)
	require.Equal(t, StopCancelled, summary.StopReason)
}

func TestCancellationMidFileLeavesRegistryUntouched(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	addMedia(t, cfg, "a.mp3", "content-a")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancellation lands while the recognition slot is open. The abandoned
	// file must not be recorded as failed: that would make the next run skip
	// it unless --retry-failed were passed.
	engine := testsupport.NewFakeEngine()
	engine.RecognizeHook = func(hookCtx context.Context) error {
		cancel()
		return hookCtx.Err()
	}

	summary, err := newTestRunner(t, cfg, engine, Options{}).Run(ctx)
	require.NoError(t, err)
	require.Equal(t, StopCancelled, summary.StopReason)
	require.Equal(t, 0, summary.Processed)
	require.Equal(t, 0, summary.Failed)
	require.Equal(t, 0, loadRegistry(t, cfg).Len())

	// The next run picks the file up again and completes it normally.
	summary, err = newTestRunner(t, cfg, testsupport.NewFakeEngine(), Options{}).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Succeeded)
	require.FileExists(t, filepath.Join(cfg.Paths.OutputDir, "a.json"))
}

func TestSlotExclusivity(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	badPath := addMedia(t, cfg, "bad.mp3", "content-bad")
	addMedia(t, cfg, "a.mp3", "content-a")
	addMedia(t, cfg, "b.mp3", "content-b")

	engine := testsupport.NewFakeEngine()
	engine.FailRecognize[badPath] = errors.New("boom")

	_, err := newTestRunner(t, cfg, engine, Options{}).Run(context.Background())
	require.NoError(t, err)

	open := 0
	for _, event := range engine.Events() {
		switch event {
		case testsupport.EventRecognizerOpen, testsupport.EventDiarizerOpen:
			open++
		case testsupport.EventRecognizerClose, testsupport.EventDiarizerClose:
			open--
		}
		require.LessOrEqual(t, open, 1, "two model slots open at once: %v", engine.Events())
		require.GreaterOrEqual(t, open, 0)
	}
	require.Equal(t, 0, open, "slot left open at end of run: %v", engine.Events())
}

func TestDryRunReportsIntendedOutcomesWithoutTouchingAnything(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	addMedia(t, cfg, "a.mp3", "content-a")

	// Prime the registry so the dry run has a duplicate to classify.
	_, err := newTestRunner(t, cfg, testsupport.NewFakeEngine(), Options{}).Run(context.Background())
	require.NoError(t, err)

	addMedia(t, cfg, "copy.mp3", "content-a")
	addMedia(t, cfg, "fresh.mp3", "content-b")

	engine := testsupport.NewFakeEngine()
	runner := newTestRunner(t, cfg, engine, Options{DryRun: true})
	var out bytes.Buffer
	runner.WithOutput(&out)

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, summary.Pending)
	require.Equal(t, 0, summary.Processed)
	require.Empty(t, engine.Events())
	require.NoFileExists(t, filepath.Join(cfg.Paths.OutputDir, "copy.json"))
	require.Equal(t, 1, loadRegistry(t, cfg).Len())

	require.Contains(t, out.String(), "duplicate of")
	require.Contains(t, out.String(), "process")
}

func TestMaxFilesIgnoresDuplicatesAndFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	addMedia(t, cfg, "a.mp3", "same-content")
	_, err := newTestRunner(t, cfg, testsupport.NewFakeEngine(), Options{}).Run(context.Background())
	require.NoError(t, err)

	// One duplicate, one failure, two fresh files, in scan order. With
	// max-files=2 both fresh files still run: duplicates and failures cost
	// no model time and never consume the budget.
	addMedia(t, cfg, "aa-dup.mp3", "same-content")
	badPath := addMedia(t, cfg, "bad.mp3", "content-bad")
	addMedia(t, cfg, "b.mp3", "content-b")
	addMedia(t, cfg, "c.mp3", "content-c")

	engine := testsupport.NewFakeEngine()
	engine.FailRecognize[badPath] = errors.New("boom")

	summary, err := newTestRunner(t, cfg, engine, Options{MaxFiles: 2}).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, summary.Succeeded)
	require.Equal(t, 1, summary.Duplicates)
	require.Equal(t, 1, summary.Failed)
	require.Equal(t, StopCompleted, summary.StopReason)
}

func TestConcurrentRunRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	addMedia(t, cfg, "a.mp3", "content-a")
	require.NoError(t, cfg.EnsureDirectories())

	held := flock.New(cfg.LockPath())
	locked, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer held.Unlock()

	_, err = newTestRunner(t, cfg, testsupport.NewFakeEngine(), Options{}).Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "already active")
}

func TestCorruptRegistryIsFatal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	addMedia(t, cfg, "a.mp3", "content-a")
	require.NoError(t, cfg.EnsureDirectories())
	testsupport.WriteFile(t, cfg.RegistryPath(), "{not json")

	_, err := newTestRunner(t, cfg, testsupport.NewFakeEngine(), Options{}).Run(context.Background())
	require.ErrorIs(t, err, registry.ErrCorrupt)
}

func TestNotifyCancelTwoPhase(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	graceful, stop := notifyCancel(cancel, logging.NewNop())
	defer stop()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGINT))
	require.Eventually(t, graceful.Load, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, ctx.Err())

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGINT))
	require.Eventually(t, func() bool { return ctx.Err() != nil }, 2*time.Second, 10*time.Millisecond)
}
