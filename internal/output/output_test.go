package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"transskribo/internal/transcribe"
)

func ptr[T any](v T) *T { return &v }

func sampleTranscript() transcribe.Transcript {
	return transcribe.Transcript{Segments: []transcribe.Segment{
		{
			Start:   0,
			End:     2.4,
			Text:    "bom dia",
			Speaker: ptr("SPEAKER_00"),
			Words: []transcribe.Word{
				{Word: "bom", Start: ptr(0.0), End: ptr(0.8), Score: ptr(0.99), Speaker: ptr("SPEAKER_00")},
				{Word: "dia", Start: ptr(0.9), End: ptr(1.4), Score: ptr(0.97), Speaker: ptr("SPEAKER_00")},
			},
		},
		{
			Start:   2.5,
			End:     4.0,
			Text:    "ola",
			Speaker: ptr("SPEAKER_01"),
			Words: []transcribe.Word{
				{Word: "ola", Start: ptr(2.6), End: ptr(3.1), Score: ptr(0.95), Speaker: ptr("SPEAKER_01")},
			},
		},
	}}
}

func TestBuildDocumentFlattensWordsAndCountsSpeakers(t *testing.T) {
	doc := BuildDocument(sampleTranscript(), Metadata{
		SourceFile: "/input/talk.mp3",
		FileHash:   "abc123",
		ModelSize:  "large-v3",
		Language:   "pt",
	})

	require.Len(t, doc.Segments, 2)
	require.Len(t, doc.Words, 3)
	require.Equal(t, 2, doc.Metadata.NumSpeakers)
	require.Equal(t, "abc123", doc.Metadata.FileHash)
}

func TestWriteIsAtomicAndCreatesParents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "sub", "talk.json")

	doc := BuildDocument(sampleTranscript(), Metadata{SourceFile: "/input/talk.mp3"})
	require.NoError(t, Write(doc, path))

	// No temp file remains next to the output.
	_, err := os.Stat(path + ".tmp")
	require.True(t, os.IsNotExist(err))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var round Document
	require.NoError(t, json.Unmarshal(data, &round))
	require.Equal(t, "/input/talk.mp3", round.Metadata.SourceFile)
	require.Len(t, round.Words, 3)
}

func TestCopyDuplicateRewritesOnlySourceIdentity(t *testing.T) {
	dir := t.TempDir()
	original := filepath.Join(dir, "original.json")
	copied := filepath.Join(dir, "sub", "copy.json")

	doc := BuildDocument(sampleTranscript(), Metadata{
		SourceFile:   "/input/a/talk.mp3",
		FileHash:     "abc123",
		DurationSecs: ptr(240.0),
		ModelSize:    "large-v3",
		Language:     "pt",
		ProcessedAt:  "2026-08-01T10:00:00Z",
		Timing:       &transcribe.Timing{TranscribeSecs: 12.5, AlignSecs: 3.2, DiarizeSecs: 8.1, TotalSecs: 24.0},
	})
	require.NoError(t, Write(doc, original))

	require.NoError(t, CopyDuplicate(original, copied, "/input/b/talk-copy.mp3"))

	data, err := os.ReadFile(copied)
	require.NoError(t, err)
	var dup Document
	require.NoError(t, json.Unmarshal(data, &dup))

	require.Equal(t, "/input/b/talk-copy.mp3", dup.Metadata.SourceFile)
	require.NotEqual(t, "2026-08-01T10:00:00Z", dup.Metadata.ProcessedAt)

	// Everything else carries over from the original run.
	require.Equal(t, "abc123", dup.Metadata.FileHash)
	require.Equal(t, 240.0, *dup.Metadata.DurationSecs)
	require.Equal(t, 12.5, dup.Metadata.Timing.TranscribeSecs)
	require.Equal(t, doc.Segments, dup.Segments)
	require.Equal(t, doc.Words, dup.Words)

	// The duplicate must be a regular file, not a link.
	info, err := os.Lstat(copied)
	require.NoError(t, err)
	require.True(t, info.Mode().IsRegular())
}

func TestCopyDuplicateMissingOriginal(t *testing.T) {
	dir := t.TempDir()
	err := CopyDuplicate(filepath.Join(dir, "gone.json"), filepath.Join(dir, "copy.json"), "/input/x.mp3")
	require.Error(t, err)
}
