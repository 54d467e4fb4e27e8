// Package validator decides whether a discovered file is worth sending into
// the transcription pipeline. Rejections are local and non-fatal: the file is
// logged and skipped without a registry entry, because it was never attempted.
package validator
