package whisperx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"transskribo/internal/transcribe"
)

// Service drives the WhisperX CLI (via uvx) as a transcribe.Engine. Each
// Recognizer/Diarizer handle maps to one CLI invocation: the model is
// resident for exactly the lifetime of that invocation, which is what makes
// the pipeline's slot discipline hold at the process level.
type Service struct {
	cfg           Config
	ffmpegBinary  string
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewService creates a WhisperX engine with the given configuration.
func NewService(cfg Config) *Service {
	return &Service{
		cfg:          cfg,
		ffmpegBinary: FFmpegCommand,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	s.commandRunner = runner
}

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	if s.cfg.Model != "" {
		return s.cfg.Model
	}
	return DefaultModel
}

func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec

	// Torch 2.6 changed torch.load default to weights_only=true, breaking
	// WhisperX/pyannote. Force legacy behavior so checkpoints load.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// DecodeAudio extracts the audio stream of sourcePath into a mono 16kHz WAV
// in the work directory. Recognition and alignment share this one buffer.
func (s *Service) DecodeAudio(ctx context.Context, sourcePath string) (transcribe.Audio, error) {
	if err := os.MkdirAll(s.cfg.WorkDir, 0o755); err != nil {
		return transcribe.Audio{}, fmt.Errorf("decode audio: ensure work dir: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	wavPath := filepath.Join(s.cfg.WorkDir, base+".decoded.wav")

	if s.commandRunner != nil {
		if err := s.commandRunner(ctx, s.ffmpegBinary, buildFFmpegExtractArgs(sourcePath, wavPath)...); err != nil {
			return transcribe.Audio{}, err
		}
	} else if err := extractAudio(ctx, s.ffmpegBinary, sourcePath, wavPath); err != nil {
		return transcribe.Audio{}, err
	}

	return transcribe.Audio{SourcePath: sourcePath, WavPath: wavPath}, nil
}

// NewRecognizer returns a handle for the recognition+alignment pass.
func (s *Service) NewRecognizer(ctx context.Context) (transcribe.Recognizer, error) {
	outputDir := filepath.Join(s.cfg.WorkDir, "recognize")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("recognizer: ensure output dir: %w", err)
	}
	return &recognizer{svc: s, outputDir: outputDir}, nil
}

// NewDiarizer returns a handle for the diarization pass.
func (s *Service) NewDiarizer(ctx context.Context) (transcribe.Diarizer, error) {
	outputDir := filepath.Join(s.cfg.WorkDir, "diarize")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("diarizer: ensure output dir: %w", err)
	}
	return &diarizer{svc: s, outputDir: outputDir}, nil
}

type recognizer struct {
	svc       *Service
	outputDir string
	aligned   *transcribe.Transcript
	closed    bool
}

// Recognize runs the WhisperX recognition pass. The CLI fuses recognition and
// forced alignment into a single invocation over the same decoded buffer, so
// the word-timed result is cached here and surfaced by Align.
func (r *recognizer) Recognize(ctx context.Context, audio transcribe.Audio) (transcribe.Transcript, error) {
	if r.closed {
		return transcribe.Transcript{}, errors.New("recognizer: already closed")
	}

	args := r.svc.buildArgs(audio.WavPath, r.outputDir, false)
	if err := r.svc.run(ctx, UVXCommand, args...); err != nil {
		return transcribe.Transcript{}, fmt.Errorf("whisperx recognize: %w", err)
	}

	transcript, err := loadTranscript(outputJSONPath(r.outputDir, audio.WavPath))
	if err != nil {
		return transcribe.Transcript{}, fmt.Errorf("whisperx recognize: %w", err)
	}
	r.aligned = &transcript
	return transcript, nil
}

// Align surfaces the word-level alignment produced by Recognize.
func (r *recognizer) Align(ctx context.Context, transcript transcribe.Transcript, audio transcribe.Audio) (transcribe.Transcript, error) {
	if r.closed {
		return transcribe.Transcript{}, errors.New("recognizer: already closed")
	}
	if r.aligned == nil {
		return transcribe.Transcript{}, errors.New("whisperx align: no recognition result to align")
	}
	return *r.aligned, nil
}

// Close releases the handle. The CLI process already exited, so accelerator
// memory is free; this guards against use after the slot is released.
func (r *recognizer) Close() error {
	r.closed = true
	r.aligned = nil
	return nil
}

type diarizer struct {
	svc       *Service
	outputDir string
	closed    bool
}

// Diarize runs the WhisperX diarization pass and extracts speaker turns.
func (d *diarizer) Diarize(ctx context.Context, sourcePath string) ([]transcribe.SpeakerTurn, error) {
	if d.closed {
		return nil, errors.New("diarizer: already closed")
	}

	args := d.svc.buildArgs(sourcePath, d.outputDir, true)
	if err := d.svc.run(ctx, UVXCommand, args...); err != nil {
		return nil, fmt.Errorf("whisperx diarize: %w", err)
	}

	transcript, err := loadTranscript(outputJSONPath(d.outputDir, sourcePath))
	if err != nil {
		return nil, fmt.Errorf("whisperx diarize: %w", err)
	}
	return speakerTurns(transcript), nil
}

func (d *diarizer) Close() error {
	d.closed = true
	return nil
}

// buildArgs constructs the uvx command arguments for WhisperX.
func (s *Service) buildArgs(source, outputDir string, diarize bool) []string {
	args := make([]string, 0, 24)

	if s.cfg.CUDAEnabled {
		args = append(args,
			"--index-url", CUDAIndexURL,
			"--extra-index-url", PypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}

	model := s.cfg.Model
	if model == "" {
		model = DefaultModel
	}
	batchSize := s.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 8
	}

	args = append(args,
		"whisperx",
		source,
		"--model", model,
		"--batch_size", strconv.Itoa(batchSize),
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
	)

	if lang := strings.TrimSpace(s.cfg.Language); lang != "" {
		args = append(args, "--language", lang)
	}

	if diarize {
		args = append(args, "--diarize")
		if s.cfg.HFToken != "" {
			args = append(args, "--hf_token", s.cfg.HFToken)
		}
	}

	if s.cfg.CUDAEnabled {
		args = append(args, "--device", CUDADevice)
		if s.cfg.ComputeType != "" {
			args = append(args, "--compute_type", s.cfg.ComputeType)
		}
	} else {
		args = append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
	}

	return args
}

// outputJSONPath derives the JSON file WhisperX writes for a given input.
func outputJSONPath(outputDir, source string) string {
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	return filepath.Join(outputDir, base+".json")
}
