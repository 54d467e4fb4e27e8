// Package services holds shared error classification for the external
// capabilities transskribo drives (ffprobe, WhisperX, LLM enrichment).
//
// Stage code wraps failures with a sentinel marker so the pipeline can decide
// whether an error is a per-file failure or a fatal precondition.
package services
