package transcribe

// Word is a single recognized word with forced-alignment timing. Start, End,
// and Score are pointers because alignment cannot time every token (numbers,
// punctuation-only tokens); Speaker is set during speaker assignment.
type Word struct {
	Start   *float64 `json:"start"`
	End     *float64 `json:"end"`
	Word    string   `json:"word"`
	Score   *float64 `json:"score"`
	Speaker *string  `json:"speaker"`
}

// Segment is a sentence-level span of the transcript.
type Segment struct {
	Start   float64  `json:"start"`
	End     float64  `json:"end"`
	Text    string   `json:"text"`
	Speaker *string  `json:"speaker"`
	Words   []Word   `json:"words"`
}

// Transcript is the recognized (and, after alignment, word-timed) text of one
// recording.
type Transcript struct {
	Segments []Segment `json:"segments"`
}

// SpeakerTurn is one diarized span: who spoke between Start and End.
type SpeakerTurn struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

// Timing is the wall-clock breakdown of one file's processing.
type Timing struct {
	TranscribeSecs float64 `json:"transcribe_secs"`
	AlignSecs      float64 `json:"align_secs"`
	DiarizeSecs    float64 `json:"diarize_secs"`
	TotalSecs      float64 `json:"total_secs"`
}
