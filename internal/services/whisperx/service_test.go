package whisperx

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"transskribo/internal/transcribe"
)

func TestBuildArgsCUDA(t *testing.T) {
	svc := NewService(Config{
		Model:       "large-v3",
		Language:    "pt",
		ComputeType: "float16",
		BatchSize:   8,
		CUDAEnabled: true,
		HFToken:     "hf_test",
	})

	args := svc.buildArgs("/tmp/a.wav", "/tmp/out", false)

	require.Contains(t, args, "whisperx")
	require.Contains(t, args, "--model")
	require.Contains(t, args, "large-v3")
	require.Contains(t, args, "--language")
	require.Contains(t, args, "pt")
	require.Contains(t, args, "--device")
	require.Contains(t, args, CUDADevice)
	require.Contains(t, args, CUDAIndexURL)
	require.NotContains(t, args, "--diarize")
	require.NotContains(t, args, "hf_test")
}

func TestBuildArgsDiarize(t *testing.T) {
	svc := NewService(Config{Model: "large-v3", HFToken: "hf_test"})

	args := svc.buildArgs("/tmp/a.wav", "/tmp/out", true)

	require.Contains(t, args, "--diarize")
	require.Contains(t, args, "--hf_token")
	require.Contains(t, args, "hf_test")
	// CPU fallback when CUDA is off.
	require.Contains(t, args, CPUDevice)
	require.Contains(t, args, CPUComputeType)
}

func TestDecodeAudioInvokesFFmpeg(t *testing.T) {
	workDir := t.TempDir()
	svc := NewService(Config{WorkDir: workDir})

	var gotName string
	var gotArgs []string
	svc.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		gotName = name
		gotArgs = args
		return nil
	})

	audio, err := svc.DecodeAudio(context.Background(), "/input/talk.mp3")
	require.NoError(t, err)
	require.Equal(t, FFmpegCommand, gotName)
	require.Contains(t, gotArgs, "/input/talk.mp3")
	require.Equal(t, "/input/talk.mp3", audio.SourcePath)
	require.Equal(t, filepath.Join(workDir, "talk.decoded.wav"), audio.WavPath)
	require.Contains(t, gotArgs, audio.WavPath)
}

func writeWhisperXOutput(t *testing.T, dir, base, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, base+".json"), []byte(body), 0o644))
}

func TestRecognizeParsesOutputAndCachesAlignment(t *testing.T) {
	workDir := t.TempDir()
	svc := NewService(Config{WorkDir: workDir})
	svc.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		return nil
	})

	writeWhisperXOutput(t, filepath.Join(workDir, "recognize"), "talk.decoded", `{
		"segments": [
			{"start": 0, "end": 2.5, "text": "ola mundo",
			 "words": [{"word": "ola", "start": 0, "end": 1.1, "score": 0.98}]}
		]
	}`)

	rec, err := svc.NewRecognizer(context.Background())
	require.NoError(t, err)
	defer rec.Close()

	audio := transcribe.Audio{SourcePath: "/input/talk.mp3", WavPath: filepath.Join(workDir, "talk.decoded.wav")}
	transcript, err := rec.Recognize(context.Background(), audio)
	require.NoError(t, err)
	require.Len(t, transcript.Segments, 1)
	require.Equal(t, "ola mundo", transcript.Segments[0].Text)

	aligned, err := rec.Align(context.Background(), transcript, audio)
	require.NoError(t, err)
	require.Len(t, aligned.Segments[0].Words, 1)
	require.NotNil(t, aligned.Segments[0].Words[0].Score)
}

func TestAlignWithoutRecognizeFails(t *testing.T) {
	svc := NewService(Config{WorkDir: t.TempDir()})
	rec, err := svc.NewRecognizer(context.Background())
	require.NoError(t, err)

	_, err = rec.Align(context.Background(), transcribe.Transcript{}, transcribe.Audio{})
	require.Error(t, err)
}

func TestClosedRecognizerRejectsUse(t *testing.T) {
	svc := NewService(Config{WorkDir: t.TempDir()})
	rec, err := svc.NewRecognizer(context.Background())
	require.NoError(t, err)
	require.NoError(t, rec.Close())

	_, err = rec.Recognize(context.Background(), transcribe.Audio{})
	require.Error(t, err)
}

func TestDiarizeExtractsSpeakerTurns(t *testing.T) {
	workDir := t.TempDir()
	svc := NewService(Config{WorkDir: workDir, HFToken: "hf_test"})
	svc.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		require.Contains(t, args, "--diarize")
		return nil
	})

	writeWhisperXOutput(t, filepath.Join(workDir, "diarize"), "talk", `{
		"segments": [
			{"start": 0, "end": 2, "text": "a", "speaker": "SPEAKER_00"},
			{"start": 2, "end": 4, "text": "b", "speaker": "SPEAKER_00"},
			{"start": 4, "end": 6, "text": "c", "speaker": "SPEAKER_01"}
		]
	}`)

	d, err := svc.NewDiarizer(context.Background())
	require.NoError(t, err)
	defer d.Close()

	turns, err := d.Diarize(context.Background(), "/input/talk.mp3")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	require.Equal(t, "SPEAKER_00", turns[0].Speaker)
	require.InDelta(t, 4.0, turns[0].End, 1e-9)
	require.Equal(t, "SPEAKER_01", turns[1].Speaker)
}
