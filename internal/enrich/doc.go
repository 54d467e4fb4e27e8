// Package enrich post-processes transcription documents with an LLM, adding
// a title, summary, keywords, and concepts section. Enrichment is separate
// from the transcription run so it can be re-run, forced, or skipped without
// touching the registry.
package enrich
