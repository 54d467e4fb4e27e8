// Package testsupport provides shared helpers for package tests: temp-dir
// configurations, file fixtures, and a fake transcription engine that records
// model slot usage.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"transskribo/internal/config"
)

// NewConfig returns a validated-shape configuration rooted in temp
// directories that vanish with the test.
func NewConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.Paths.InputDir = t.TempDir()
	cfg.Paths.OutputDir = t.TempDir()
	cfg.Whisper.HFToken = "hf_test_token"
	return &cfg
}

// WriteFile creates path (and parent directories) with the given content.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
