package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"transskribo/internal/registry"
)

func successEntry(source string, audioSecs float64, timing registry.Timing) registry.Entry {
	return registry.Entry{
		SourcePath:        source,
		OutputPath:        source + ".json",
		Status:            registry.StatusSuccess,
		DurationAudioSecs: &audioSecs,
		Timing:            &timing,
	}
}

func sampleEntries() map[string]registry.Entry {
	return map[string]registry.Entry{
		"h1": successEntry("/in/a.mp3", 600, registry.Timing{
			TranscribeSecs: 30, AlignSecs: 10, DiarizeSecs: 20, TotalSecs: 60,
		}),
		"h2": successEntry("/in/b.mp3", 1200, registry.Timing{
			TranscribeSecs: 60, AlignSecs: 20, DiarizeSecs: 40, TotalSecs: 120,
		}),
		"h3": {
			SourcePath: "/in/c.mp3",
			Status:     registry.StatusFailed,
			Error:      "model exploded",
			Timestamp:  "2026-08-20T10:00:00Z",
		},
	}
}

func TestComputeAggregates(t *testing.T) {
	stats := Compute(sampleEntries())

	require.Equal(t, 3, stats.TotalEntries)
	require.Equal(t, 2, stats.Succeeded)
	require.Equal(t, 1, stats.Failed)
	require.InDelta(t, 1800.0, stats.TotalAudioSecs, 1e-9)
	require.InDelta(t, 180.0, stats.TotalProcessingSecs, 1e-9)
	require.InDelta(t, 90.0, stats.AvgTotalSecs, 1e-9)
	require.InDelta(t, 10.0, stats.SpeedRatio, 1e-9)

	byName := map[string]StageStats{}
	for _, stage := range stats.Stages {
		byName[stage.Name] = stage
	}
	require.InDelta(t, 45.0, byName["transcribe"].Avg, 1e-9)
	require.InDelta(t, 30.0, byName["transcribe"].Min, 1e-9)
	require.InDelta(t, 60.0, byName["transcribe"].Max, 1e-9)
	require.InDelta(t, 30.0, byName["diarize"].Avg, 1e-9)
}

func TestComputeEmptyRegistry(t *testing.T) {
	stats := Compute(map[string]registry.Entry{})
	require.Zero(t, stats.TotalEntries)
	require.Zero(t, stats.SpeedRatio)
	require.Zero(t, stats.Estimate(10))
}

func TestEstimate(t *testing.T) {
	stats := Compute(sampleEntries())
	require.Equal(t, 3*time.Minute, stats.Estimate(2).Round(time.Second))
	require.Zero(t, stats.Estimate(0))
}

func sampleFailedSources() map[string]registry.Entry {
	return map[string]registry.Entry{
		"/in/c.mp3": {
			SourcePath: "/in/c.mp3",
			Status:     registry.StatusFailed,
			Error:      "model exploded",
			Timestamp:  "2026-08-20T10:00:00Z",
		},
	}
}

func TestFailuresSorted(t *testing.T) {
	failed := sampleFailedSources()
	failed["/in/0-first.mp3"] = registry.Entry{
		SourcePath: "/in/0-first.mp3",
		Status:     registry.StatusFailed,
		Error:      "boom",
	}

	failures := Failures(failed)
	require.Len(t, failures, 2)
	require.Equal(t, "/in/0-first.mp3", failures[0].SourcePath)
	require.Equal(t, "/in/c.mp3", failures[1].SourcePath)
	require.Equal(t, "model exploded", failures[1].Error)
}

func TestRenderIncludesKeyFigures(t *testing.T) {
	var buf bytes.Buffer
	Render(&buf, Compute(sampleEntries()), 2)

	out := buf.String()
	require.Contains(t, out, "Succeeded")
	require.Contains(t, out, "10.0x realtime")
	require.Contains(t, out, "transcribe")
	require.Contains(t, out, "Estimated time")
}

func TestRenderFailuresTable(t *testing.T) {
	var buf bytes.Buffer
	RenderFailures(&buf, Failures(sampleFailedSources()))
	require.Contains(t, buf.String(), "model exploded")

	buf.Reset()
	RenderFailures(&buf, nil)
	require.Empty(t, buf.String())
}
