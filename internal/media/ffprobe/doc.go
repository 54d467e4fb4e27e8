// Package ffprobe shells out to ffprobe to inspect media containers before
// they enter the pipeline.
package ffprobe
