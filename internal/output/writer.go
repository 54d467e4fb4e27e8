package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Write serializes the document to path atomically. The JSON lands in a
// sibling temp file first and is renamed into place, so a crash mid-write
// never leaves a truncated document behind.
func Write(doc Document, path string) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output document: %w", err)
	}
	return writeAtomic(path, data)
}

// Load reads a previously written output document.
func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read output %s: %w", path, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("parse output %s: %w", path, err)
	}
	return doc, nil
}

// CopyDuplicate materializes the output for a duplicate source by copying an
// earlier output document and rewriting only the metadata fields that identify
// this particular file. The transcript content is carried over untouched.
// A real file is always written, never a symlink or hard link.
func CopyDuplicate(existingPath, newPath, newSourceFile string) error {
	data, err := os.ReadFile(existingPath)
	if err != nil {
		return fmt.Errorf("read existing output %s: %w", existingPath, err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse existing output %s: %w", existingPath, err)
	}

	doc.Metadata.SourceFile = newSourceFile
	doc.Metadata.ProcessedAt = time.Now().UTC().Format(time.RFC3339)

	rewritten, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal duplicate output: %w", err)
	}
	return writeAtomic(newPath, rewritten)
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure output dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write output temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("finalize output %s: %w", path, err)
	}
	return nil
}
