package report

import (
	"math"
	"sort"
	"time"

	"transskribo/internal/registry"
)

// StageStats summarizes one processing stage across successful entries.
type StageStats struct {
	Name string
	Avg  float64
	Min  float64
	Max  float64
}

// Stats is the aggregate view of a registry.
type Stats struct {
	TotalEntries        int
	Succeeded           int
	Failed              int
	TotalAudioSecs      float64
	TotalProcessingSecs float64
	AvgTotalSecs        float64
	// SpeedRatio is seconds of audio handled per second of processing.
	SpeedRatio float64
	Stages     []StageStats
}

// Failure is one failed registry entry, for the failures table.
type Failure struct {
	SourcePath string
	Timestamp  string
	Error      string
}

// Compute aggregates registry entries into batch statistics. Only successful
// entries carry timing, so stage stats and speed come from those alone.
func Compute(entries map[string]registry.Entry) Stats {
	stats := Stats{TotalEntries: len(entries)}

	var transcribe, align, diarize, total []float64
	for _, entry := range entries {
		switch entry.Status {
		case registry.StatusSuccess:
			stats.Succeeded++
		case registry.StatusFailed:
			stats.Failed++
		}
		if entry.DurationAudioSecs != nil {
			stats.TotalAudioSecs += *entry.DurationAudioSecs
		}
		if entry.Timing == nil {
			continue
		}
		transcribe = append(transcribe, entry.Timing.TranscribeSecs)
		align = append(align, entry.Timing.AlignSecs)
		diarize = append(diarize, entry.Timing.DiarizeSecs)
		total = append(total, entry.Timing.TotalSecs)
		stats.TotalProcessingSecs += entry.Timing.TotalSecs
	}

	stats.Stages = []StageStats{
		stageStats("transcribe", transcribe),
		stageStats("align", align),
		stageStats("diarize", diarize),
		stageStats("total", total),
	}
	if len(total) > 0 {
		stats.AvgTotalSecs = stats.TotalProcessingSecs / float64(len(total))
	}
	if stats.TotalProcessingSecs > 0 {
		stats.SpeedRatio = stats.TotalAudioSecs / stats.TotalProcessingSecs
	}
	return stats
}

// Estimate projects the processing time for pending files from the average
// per-file total. Zero when no successful run has been recorded yet.
func (s Stats) Estimate(pending int) time.Duration {
	if pending <= 0 || s.AvgTotalSecs <= 0 {
		return 0
	}
	return time.Duration(float64(pending) * s.AvgTotalSecs * float64(time.Second))
}

// Failures flattens the registry's failed-source view (source path -> entry,
// see registry.FailedSources) into rows sorted by source path.
func Failures(failed map[string]registry.Entry) []Failure {
	var failures []Failure
	for source, entry := range failed {
		failures = append(failures, Failure{
			SourcePath: source,
			Timestamp:  entry.Timestamp,
			Error:      entry.Error,
		})
	}
	sort.Slice(failures, func(i, j int) bool {
		return failures[i].SourcePath < failures[j].SourcePath
	})
	return failures
}

func stageStats(name string, values []float64) StageStats {
	s := StageStats{Name: name}
	if len(values) == 0 {
		return s
	}
	s.Min = math.Inf(1)
	var sum float64
	for _, v := range values {
		sum += v
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	s.Avg = sum / float64(len(values))
	return s
}
