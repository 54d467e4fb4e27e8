// Package whisperx runs WhisperX through uvx as the production transcription
// engine.
//
// The upstream CLI fuses recognition and forced alignment into a single
// invocation over one decoded buffer, and runs diarization as a second,
// independent invocation. Each invocation holds its models only while the
// subprocess lives, so the pipeline's one-slot-at-a-time rule translates
// directly into bounded accelerator memory.
package whisperx
