// Package preflight provides readiness checks for the external tools and
// credentials a transcription run depends on. The run command executes them
// before touching any file: a missing binary or token fails fast instead of
// surfacing hours into a batch.
package preflight
