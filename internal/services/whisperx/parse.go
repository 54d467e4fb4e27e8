package whisperx

import (
	"encoding/json"
	"fmt"
	"os"

	"transskribo/internal/transcribe"
)

// payload mirrors the WhisperX JSON output structure.
type payload struct {
	Segments []payloadSegment `json:"segments"`
}

type payloadSegment struct {
	Start   float64       `json:"start"`
	End     float64       `json:"end"`
	Text    string        `json:"text"`
	Speaker *string       `json:"speaker"`
	Words   []payloadWord `json:"words"`
}

type payloadWord struct {
	Word    string   `json:"word"`
	Start   *float64 `json:"start"`
	End     *float64 `json:"end"`
	Score   *float64 `json:"score"`
	Speaker *string  `json:"speaker"`
}

// loadTranscript reads a WhisperX JSON file into a Transcript.
func loadTranscript(jsonPath string) (transcribe.Transcript, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return transcribe.Transcript{}, fmt.Errorf("read whisperx output: %w", err)
	}

	var decoded payload
	if err := json.Unmarshal(data, &decoded); err != nil {
		return transcribe.Transcript{}, fmt.Errorf("parse whisperx json: %w", err)
	}

	transcript := transcribe.Transcript{Segments: make([]transcribe.Segment, len(decoded.Segments))}
	for i, seg := range decoded.Segments {
		words := make([]transcribe.Word, len(seg.Words))
		for j, word := range seg.Words {
			words[j] = transcribe.Word{
				Word:    word.Word,
				Start:   word.Start,
				End:     word.End,
				Score:   word.Score,
				Speaker: word.Speaker,
			}
		}
		transcript.Segments[i] = transcribe.Segment{
			Start:   seg.Start,
			End:     seg.End,
			Text:    seg.Text,
			Speaker: seg.Speaker,
			Words:   words,
		}
	}
	return transcript, nil
}

// speakerTurns flattens a diarized transcript into contiguous speaker turns.
func speakerTurns(transcript transcribe.Transcript) []transcribe.SpeakerTurn {
	var turns []transcribe.SpeakerTurn
	for _, seg := range transcript.Segments {
		if seg.Speaker == nil || *seg.Speaker == "" {
			continue
		}
		if n := len(turns); n > 0 && turns[n-1].Speaker == *seg.Speaker && seg.Start <= turns[n-1].End {
			turns[n-1].End = max(turns[n-1].End, seg.End)
			continue
		}
		turns = append(turns, transcribe.SpeakerTurn{
			Start:   seg.Start,
			End:     seg.End,
			Speaker: *seg.Speaker,
		})
	}
	return turns
}
