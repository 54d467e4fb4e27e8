package scanner

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// supportedExtensions lists the container formats ffmpeg can reliably decode
// audio from.
var supportedExtensions = map[string]struct{}{
	// Audio
	".mp3": {}, ".m4a": {}, ".wav": {}, ".flac": {},
	".ogg": {}, ".opus": {}, ".wma": {}, ".aac": {},
	// Video
	".mp4": {}, ".mkv": {}, ".avi": {}, ".webm": {},
	".mov": {}, ".wmv": {},
}

// MediaFile is a discovered audio/video file with its computed output path.
type MediaFile struct {
	Path         string
	RelativePath string
	OutputPath   string
	SizeBytes    int64
}

// Supported reports whether the file extension is one transskribo processes.
func Supported(path string) bool {
	_, ok := supportedExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Scan walks inputDir recursively and returns supported media files. Each
// file gets a mirrored output path under outputDir with a .json extension.
// Results are sorted by relative path for deterministic ordering.
func Scan(inputDir, outputDir string) ([]MediaFile, error) {
	var files []MediaFile

	err := filepath.WalkDir(inputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !Supported(path) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		relative, err := filepath.Rel(inputDir, path)
		if err != nil {
			return err
		}

		ext := filepath.Ext(relative)
		outputPath := filepath.Join(outputDir, strings.TrimSuffix(relative, ext)+".json")

		files = append(files, MediaFile{
			Path:         path,
			RelativePath: relative,
			OutputPath:   outputPath,
			SizeBytes:    info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].RelativePath < files[j].RelativePath
	})
	return files, nil
}

// FilterAlreadyProcessed removes files whose output path already exists on
// disk. Outputs are written atomically, so an existing output is always a
// complete one.
func FilterAlreadyProcessed(files []MediaFile) []MediaFile {
	pending := make([]MediaFile, 0, len(files))
	for _, file := range files {
		if _, err := os.Stat(file.OutputPath); err == nil {
			continue
		}
		pending = append(pending, file)
	}
	return pending
}
