package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"transskribo/internal/logging"
)

// ErrCorrupt marks a registry file that exists but cannot be parsed. The
// pipeline treats this as fatal at startup: running against an untrustworthy
// duplicate/resume source would silently redo or skip work.
var ErrCorrupt = errors.New("registry corrupt")

// Status is the durable outcome recorded for a content hash.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Timing is the per-stage processing time breakdown in seconds.
type Timing struct {
	TranscribeSecs float64 `json:"transcribe_secs"`
	AlignSecs      float64 `json:"align_secs"`
	DiarizeSecs    float64 `json:"diarize_secs"`
	TotalSecs      float64 `json:"total_secs"`
}

// Entry is the durable record for one content hash. The registry keeps the
// latest known source/output association per hash, not a history.
type Entry struct {
	SourcePath        string   `json:"source_path"`
	OutputPath        string   `json:"output_path"`
	Timestamp         string   `json:"timestamp"`
	Status            Status   `json:"status"`
	DurationAudioSecs *float64 `json:"duration_audio_secs"`
	Timing            *Timing  `json:"timing"`
	Error             string   `json:"error,omitempty"`
	RunID             string   `json:"run_id,omitempty"`
}

// Registry maps content hashes to processing outcomes, held in memory during
// a run and persisted to a single JSON file.
type Registry struct {
	path    string
	logger  *slog.Logger
	entries map[string]Entry
}

// Load reads the persisted registry. A missing file yields an empty registry;
// an unparseable file yields ErrCorrupt.
func Load(path string, logger *slog.Logger) (*Registry, error) {
	logger = logging.NewComponentLogger(logger, "registry")

	r := &Registry{
		path:    path,
		logger:  logger,
		entries: make(map[string]Entry),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return r, nil
		}
		return nil, fmt.Errorf("read registry %s: %w", path, err)
	}
	if len(data) == 0 {
		return r, nil
	}

	if err := json.Unmarshal(data, &r.entries); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", ErrCorrupt, path, err)
	}

	logger.Debug("loaded registry",
		logging.Int("entry_count", len(r.entries)),
		logging.String("path", path))
	return r, nil
}

// Lookup returns the entry for hash if one exists. Callers must check the
// entry status themselves: only StatusSuccess counts as "already done".
func (r *Registry) Lookup(hash string) (Entry, bool) {
	entry, ok := r.entries[hash]
	return entry, ok
}

// Upsert replaces any existing entry for hash. The change is in-memory only
// until Save is called; a crash in between means the file is retried on the
// next run, which is the safe direction.
func (r *Registry) Upsert(hash string, entry Entry) {
	r.entries[hash] = entry
}

// Save writes the full mapping to disk by writing a temp sibling and renaming
// it over the final path, so the file is never observed half-written.
func (r *Registry) Save() error {
	data, err := json.MarshalIndent(r.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create registry directory: %w", err)
	}

	tmpPath := r.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp registry: %w", err)
	}
	if err := os.Rename(tmpPath, r.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp registry: %w", err)
	}
	return nil
}

// Len returns the number of registered hashes.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Path returns the on-disk location of the registry file.
func (r *Registry) Path() string {
	return r.path
}

// Entries returns a copy of the full mapping for read-only consumers.
func (r *Registry) Entries() map[string]Entry {
	cp := make(map[string]Entry, len(r.entries))
	for hash, entry := range r.entries {
		cp[hash] = entry
	}
	return cp
}

// FailedSources returns source path -> entry for every failed entry. The
// report failures table is built from this view.
func (r *Registry) FailedSources() map[string]Entry {
	failed := make(map[string]Entry)
	for _, entry := range r.entries {
		if entry.Status == StatusFailed && entry.SourcePath != "" {
			failed[entry.SourcePath] = entry
		}
	}
	return failed
}

// Now returns the timestamp format used for registry entries.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
