package transcribe

// AssignSpeakers merges diarized speaker turns into an aligned transcript.
// Each timed word gets the speaker whose turn overlaps it the most; each
// segment gets the majority speaker of its words. Words without timing keep a
// nil speaker. The input transcript is not mutated.
func AssignSpeakers(aligned Transcript, turns []SpeakerTurn) Transcript {
	result := Transcript{Segments: make([]Segment, len(aligned.Segments))}

	for i, segment := range aligned.Segments {
		out := segment
		out.Words = make([]Word, len(segment.Words))

		votes := make(map[string]int)
		for j, word := range segment.Words {
			w := word
			if w.Start != nil && w.End != nil {
				if speaker, ok := dominantSpeaker(*w.Start, *w.End, turns); ok {
					w.Speaker = &speaker
					votes[speaker]++
				}
			}
			out.Words[j] = w
		}

		if speaker, ok := majority(votes); ok {
			out.Speaker = &speaker
		} else if speaker, ok := dominantSpeaker(segment.Start, segment.End, turns); ok {
			// Segment had no timed words; fall back to the segment span.
			out.Speaker = &speaker
		}
		result.Segments[i] = out
	}
	return result
}

// dominantSpeaker returns the speaker whose turns overlap [start, end] the
// longest.
func dominantSpeaker(start, end float64, turns []SpeakerTurn) (string, bool) {
	overlap := make(map[string]float64)
	for _, turn := range turns {
		lo := max(start, turn.Start)
		hi := min(end, turn.End)
		if hi > lo {
			overlap[turn.Speaker] += hi - lo
		}
	}

	best := ""
	bestOverlap := 0.0
	for speaker, total := range overlap {
		if total > bestOverlap || (total == bestOverlap && best != "" && speaker < best) {
			best = speaker
			bestOverlap = total
		}
	}
	return best, best != ""
}

func majority(votes map[string]int) (string, bool) {
	best := ""
	bestCount := 0
	for speaker, count := range votes {
		if count > bestCount || (count == bestCount && best != "" && speaker < best) {
			best = speaker
			bestCount = count
		}
	}
	return best, best != ""
}
