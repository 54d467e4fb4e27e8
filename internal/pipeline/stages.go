package pipeline

import (
	"context"
	"time"

	"transskribo/internal/services"
	"transskribo/internal/transcribe"
)

// RunRecognitionStage runs recognition and forced alignment over one decoded
// buffer inside a single recognizer handle. The handle is the recognition
// model slot: it is acquired here and released before returning, success or
// failure, so the diarization slot never overlaps with it.
func RunRecognitionStage(ctx context.Context, engine transcribe.Engine, audio transcribe.Audio) (transcribe.Transcript, float64, float64, error) {
	recognizer, err := engine.NewRecognizer(ctx)
	if err != nil {
		return transcribe.Transcript{}, 0, 0, services.Wrap(services.ErrExternalTool, "pipeline", "recognition", "load recognition models", err)
	}
	defer recognizer.Close()

	start := time.Now()
	transcript, err := recognizer.Recognize(ctx, audio)
	if err != nil {
		return transcribe.Transcript{}, 0, 0, services.Wrap(services.ErrExternalTool, "pipeline", "recognition", "transcribe audio", err)
	}
	transcribeSecs := time.Since(start).Seconds()

	start = time.Now()
	aligned, err := recognizer.Align(ctx, transcript, audio)
	if err != nil {
		return transcribe.Transcript{}, 0, 0, services.Wrap(services.ErrExternalTool, "pipeline", "alignment", "align transcript", err)
	}
	alignSecs := time.Since(start).Seconds()

	return aligned, transcribeSecs, alignSecs, nil
}

// RunDiarizationStage runs speaker diarization inside its own handle. Callers
// must only invoke it after RunRecognitionStage has returned, which keeps at
// most one model slot open at any time.
func RunDiarizationStage(ctx context.Context, engine transcribe.Engine, sourcePath string) ([]transcribe.SpeakerTurn, float64, error) {
	diarizer, err := engine.NewDiarizer(ctx)
	if err != nil {
		return nil, 0, services.Wrap(services.ErrExternalTool, "pipeline", "diarization", "load diarization pipeline", err)
	}
	defer diarizer.Close()

	start := time.Now()
	turns, err := diarizer.Diarize(ctx, sourcePath)
	if err != nil {
		return nil, 0, services.Wrap(services.ErrExternalTool, "pipeline", "diarization", "diarize audio", err)
	}
	return turns, time.Since(start).Seconds(), nil
}
