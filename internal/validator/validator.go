package validator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"transskribo/internal/media/ffprobe"
)

const probeTimeout = 30 * time.Second

// Outcome is the result of validating one candidate file. A rejected file is
// skipped, never attempted, and never written to the registry.
type Outcome struct {
	Valid        bool
	DurationSecs *float64
	Reason       string
}

func rejected(reason string) Outcome {
	return Outcome{Valid: false, Reason: reason}
}

// CheckFFprobe verifies that ffprobe is on PATH. Used as a fail-fast
// precondition before any file is attempted.
func CheckFFprobe(binary string) error {
	if binary == "" {
		binary = "ffprobe"
	}
	if _, err := exec.LookPath(binary); err != nil {
		return fmt.Errorf("ffprobe not found on PATH (install ffmpeg): %w", err)
	}
	return nil
}

// Validate inspects one file with ffprobe and decides whether it can enter
// the pipeline. Checks, in order: non-zero size, readable container, at least
// one audio stream, known duration, and the configured duration limit
// (maxDurationHours <= 0 disables the limit).
func Validate(ctx context.Context, binary, path string, maxDurationHours float64) Outcome {
	info, err := os.Stat(path)
	if err != nil {
		return rejected(fmt.Sprintf("cannot stat file: %v", err))
	}
	if info.Size() == 0 {
		return rejected("zero-length file")
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	result, err := ffprobe.Inspect(probeCtx, binary, path)
	if err != nil {
		if errors.Is(probeCtx.Err(), context.DeadlineExceeded) {
			return rejected("ffprobe timed out")
		}
		return rejected("ffprobe failed, file may be corrupt or unreadable")
	}

	if len(result.AudioStreams()) == 0 {
		return rejected("no audio stream found")
	}

	duration, ok := result.DurationSeconds()
	if !ok {
		return rejected("could not determine duration")
	}

	if maxDurationHours > 0 {
		maxSecs := maxDurationHours * 3600
		if duration > maxSecs {
			out := rejected(fmt.Sprintf("duration %.1fs exceeds limit %.1fh (%.0fs)", duration, maxDurationHours, maxSecs))
			out.DurationSecs = &duration
			return out
		}
	}

	return Outcome{Valid: true, DurationSecs: &duration}
}
