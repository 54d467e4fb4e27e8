package testsupport

import (
	"context"
	"sync"
	"time"

	"transskribo/internal/transcribe"
)

// Slot lifecycle events recorded by FakeEngine.
const (
	EventDecode          = "decode"
	EventRecognizerOpen  = "recognizer-open"
	EventRecognizerClose = "recognizer-close"
	EventDiarizerOpen    = "diarizer-open"
	EventDiarizerClose   = "diarizer-close"
)

// FakeEngine is an in-memory transcribe.Engine. It records every slot open
// and close so tests can assert that recognition and diarization handles are
// never held at the same time.
type FakeEngine struct {
	mu     sync.Mutex
	events []string

	// FailRecognize and FailDiarize inject per-source failures.
	FailRecognize map[string]error
	FailDiarize   map[string]error
	// RecognizeHook runs at the start of every Recognize when set; a non-nil
	// return aborts the stage. Lets tests cancel a run mid-file.
	RecognizeHook func(ctx context.Context) error
	// RecognizeDelay simulates model time inside Recognize.
	RecognizeDelay time.Duration
	// Turns is the diarization result. Defaults to one speaker over 0-10s.
	Turns []transcribe.SpeakerTurn
}

// NewFakeEngine returns a fake engine producing a small fixed transcript.
func NewFakeEngine() *FakeEngine {
	return &FakeEngine{
		FailRecognize: make(map[string]error),
		FailDiarize:   make(map[string]error),
		Turns: []transcribe.SpeakerTurn{
			{Start: 0, End: 10, Speaker: "SPEAKER_00"},
		},
	}
}

// Events returns a copy of the recorded slot events in order.
func (e *FakeEngine) Events() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.events...)
}

func (e *FakeEngine) record(event string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
}

// DecodeAudio reuses the source file as the decoded buffer.
func (e *FakeEngine) DecodeAudio(ctx context.Context, sourcePath string) (transcribe.Audio, error) {
	e.record(EventDecode)
	return transcribe.Audio{SourcePath: sourcePath, WavPath: sourcePath}, nil
}

func (e *FakeEngine) NewRecognizer(ctx context.Context) (transcribe.Recognizer, error) {
	e.record(EventRecognizerOpen)
	return &fakeRecognizer{engine: e}, nil
}

func (e *FakeEngine) NewDiarizer(ctx context.Context) (transcribe.Diarizer, error) {
	e.record(EventDiarizerOpen)
	return &fakeDiarizer{engine: e}, nil
}

type fakeRecognizer struct {
	engine *FakeEngine
}

func (r *fakeRecognizer) Recognize(ctx context.Context, audio transcribe.Audio) (transcribe.Transcript, error) {
	if r.engine.RecognizeHook != nil {
		if err := r.engine.RecognizeHook(ctx); err != nil {
			return transcribe.Transcript{}, err
		}
	}
	if r.engine.RecognizeDelay > 0 {
		time.Sleep(r.engine.RecognizeDelay)
	}
	if err := r.engine.FailRecognize[audio.SourcePath]; err != nil {
		return transcribe.Transcript{}, err
	}
	return fixedTranscript(), nil
}

func (r *fakeRecognizer) Align(ctx context.Context, transcript transcribe.Transcript, audio transcribe.Audio) (transcribe.Transcript, error) {
	return transcript, nil
}

func (r *fakeRecognizer) Close() error {
	r.engine.record(EventRecognizerClose)
	return nil
}

type fakeDiarizer struct {
	engine *FakeEngine
}

func (d *fakeDiarizer) Diarize(ctx context.Context, sourcePath string) ([]transcribe.SpeakerTurn, error) {
	if err := d.engine.FailDiarize[sourcePath]; err != nil {
		return nil, err
	}
	return d.engine.Turns, nil
}

func (d *fakeDiarizer) Close() error {
	d.engine.record(EventDiarizerClose)
	return nil
}

func fixedTranscript() transcribe.Transcript {
	f := func(v float64) *float64 { return &v }
	return transcribe.Transcript{Segments: []transcribe.Segment{
		{
			Start: 0, End: 3.2, Text: "bom dia a todos",
			Words: []transcribe.Word{
				{Word: "bom", Start: f(0.1), End: f(0.5), Score: f(0.99)},
				{Word: "dia", Start: f(0.6), End: f(1.0), Score: f(0.98)},
				{Word: "a", Start: f(1.1), End: f(1.2), Score: f(0.91)},
				{Word: "todos", Start: f(1.3), End: f(1.9), Score: f(0.97)},
			},
		},
	}}
}
