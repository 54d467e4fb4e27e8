package transcribe

import (
	"context"
	"os"
)

// Audio is a decoded audio buffer materialized on disk. The pipeline decodes
// each source exactly once and hands the same buffer to recognition and
// alignment.
type Audio struct {
	SourcePath string
	WavPath    string
}

// Cleanup removes the decoded buffer. Safe to call when decoding reused the
// source file directly.
func (a Audio) Cleanup() error {
	if a.WavPath == "" || a.WavPath == a.SourcePath {
		return nil
	}
	return os.Remove(a.WavPath)
}

// Engine is the external transcription capability. Implementations own the
// heavy models; the pipeline only sequences them.
type Engine interface {
	// DecodeAudio prepares the audio buffer recognition and alignment share.
	DecodeAudio(ctx context.Context, sourcePath string) (Audio, error)
	// NewRecognizer loads the recognition and alignment models. The returned
	// Recognizer holds accelerator memory until Close.
	NewRecognizer(ctx context.Context) (Recognizer, error)
	// NewDiarizer loads the diarization pipeline. The returned Diarizer holds
	// accelerator memory until Close.
	NewDiarizer(ctx context.Context) (Diarizer, error)
}

// Recognizer performs speech recognition and forced alignment against a
// decoded audio buffer.
type Recognizer interface {
	Recognize(ctx context.Context, audio Audio) (Transcript, error)
	Align(ctx context.Context, transcript Transcript, audio Audio) (Transcript, error)
	Close() error
}

// Diarizer segments a recording by speaker.
type Diarizer interface {
	Diarize(ctx context.Context, sourcePath string) ([]SpeakerTurn, error)
	Close() error
}
