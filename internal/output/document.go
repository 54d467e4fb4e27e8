package output

import (
	"transskribo/internal/transcribe"
)

// Metadata identifies the source recording and how it was processed.
type Metadata struct {
	SourceFile   string             `json:"source_file"`
	FileHash     string             `json:"file_hash"`
	DurationSecs *float64           `json:"duration_secs"`
	NumSpeakers  int                `json:"num_speakers"`
	ModelSize    string             `json:"model_size"`
	Language     string             `json:"language"`
	ProcessedAt  string             `json:"processed_at"`
	Timing       *transcribe.Timing `json:"timing"`
}

// Enrichment is the optional LLM-derived section added after transcription.
type Enrichment struct {
	Title      string   `json:"title"`
	Summary    string   `json:"summary"`
	Keywords   []string `json:"keywords"`
	Concepts   []string `json:"concepts"`
	Model      string   `json:"model"`
	EnrichedAt string   `json:"enriched_at"`
}

// Document is the JSON document written per input file.
type Document struct {
	Segments   []transcribe.Segment `json:"segments"`
	Words      []transcribe.Word    `json:"words"`
	Metadata   Metadata             `json:"metadata"`
	Enrichment *Enrichment          `json:"enrichment,omitempty"`
}

// BuildDocument structures the final transcript into the output document:
// segment list, flattened word list, and metadata. The speaker count is
// derived from the segments when the caller does not supply one.
func BuildDocument(result transcribe.Transcript, meta Metadata) Document {
	var words []transcribe.Word
	speakers := make(map[string]struct{})

	for _, segment := range result.Segments {
		words = append(words, segment.Words...)
		if segment.Speaker != nil && *segment.Speaker != "" {
			speakers[*segment.Speaker] = struct{}{}
		}
	}

	if meta.NumSpeakers == 0 {
		meta.NumSpeakers = len(speakers)
	}

	return Document{
		Segments: result.Segments,
		Words:    words,
		Metadata: meta,
	}
}
