// Package output builds and atomically writes the per-file transcription
// documents. Duplicates are materialized as full copies with their own
// metadata, never as links to an earlier output.
package output
