package enrich

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"transskribo/internal/logging"
	"transskribo/internal/output"
	"transskribo/internal/services/llm"
)

// transcriptCharLimit bounds how much transcript text goes into the prompt.
const transcriptCharLimit = 12000

const systemPrompt = `You analyze meeting and lecture transcripts. Respond with JSON only,
using this exact shape:
{"title": "...", "summary": "...", "keywords": ["..."], "concepts": ["..."]}
The title is one short line. The summary is one paragraph. Keywords are 5-10
terms. Concepts are the 3-6 main topics discussed. Answer in the language of
the transcript.`

// Completer is the LLM capability enrichment needs.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Summary reports a batch enrichment pass over an output tree.
type Summary struct {
	Enriched int
	Skipped  int
	Failed   int
}

// Enricher adds an LLM-derived title, summary, keywords, and concepts section
// to transcription documents that do not have one yet.
type Enricher struct {
	client Completer
	model  string
	logger *slog.Logger
	now    func() time.Time
}

// New creates an enricher backed by the given completion client.
func New(client Completer, model string, logger *slog.Logger) *Enricher {
	return &Enricher{
		client: client,
		model:  model,
		logger: logging.NewComponentLogger(logger, "enrich"),
		now:    time.Now,
	}
}

// EnrichFile enriches one output document in place. Returns false when the
// document already carries an enrichment section and force is off.
func (e *Enricher) EnrichFile(ctx context.Context, path string, force bool) (bool, error) {
	doc, err := output.Load(path)
	if err != nil {
		return false, err
	}
	if doc.Enrichment != nil && !force {
		return false, nil
	}

	text := transcriptText(doc)
	if text == "" {
		return false, fmt.Errorf("enrich %s: document has no transcript text", path)
	}

	content, err := e.client.CompleteJSON(ctx, systemPrompt, text)
	if err != nil {
		return false, fmt.Errorf("enrich %s: %w", path, err)
	}

	var parsed struct {
		Title    string   `json:"title"`
		Summary  string   `json:"summary"`
		Keywords []string `json:"keywords"`
		Concepts []string `json:"concepts"`
	}
	if err := llm.DecodeJSON(content, &parsed); err != nil {
		return false, fmt.Errorf("enrich %s: parse response: %w", path, err)
	}

	doc.Enrichment = &output.Enrichment{
		Title:      strings.TrimSpace(parsed.Title),
		Summary:    strings.TrimSpace(parsed.Summary),
		Keywords:   parsed.Keywords,
		Concepts:   parsed.Concepts,
		Model:      e.model,
		EnrichedAt: e.now().UTC().Format(time.RFC3339),
	}
	if err := output.Write(doc, path); err != nil {
		return false, err
	}
	return true, nil
}

// EnrichDirectory walks the output tree and enriches every transcription
// document that needs it. Per-file failures are logged and counted, not
// fatal; cancellation stops the walk.
func (e *Enricher) EnrichDirectory(ctx context.Context, outputDir, stateDir string, force bool) (Summary, error) {
	var summary Summary

	err := filepath.WalkDir(outputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// Registry and lock files live under the state dir, skip it.
			if path == stateDir {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".json" {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		enriched, err := e.EnrichFile(ctx, path, force)
		switch {
		case err != nil:
			e.logger.Error("enrichment failed",
				logging.String("path", path),
				logging.Error(err))
			summary.Failed++
		case enriched:
			e.logger.Info("document enriched", logging.String("path", path))
			summary.Enriched++
		default:
			summary.Skipped++
		}
		return nil
	})
	if err != nil {
		return summary, fmt.Errorf("walk output directory: %w", err)
	}
	return summary, nil
}

// transcriptText flattens the segments into prompt text, capped so very long
// recordings do not blow the model context.
func transcriptText(doc output.Document) string {
	var b strings.Builder
	for _, segment := range doc.Segments {
		text := strings.TrimSpace(segment.Text)
		if text == "" {
			continue
		}
		if segment.Speaker != nil && *segment.Speaker != "" {
			b.WriteString(*segment.Speaker)
			b.WriteString(": ")
		}
		b.WriteString(text)
		b.WriteString("\n")
		if b.Len() >= transcriptCharLimit {
			break
		}
	}
	text := b.String()
	if len(text) > transcriptCharLimit {
		text = text[:transcriptCharLimit]
	}
	return strings.TrimSpace(text)
}
