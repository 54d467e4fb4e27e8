package preflight

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"transskribo/internal/config"
	"transskribo/internal/services/llm"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the readiness checks a transcription run depends on:
// directories, external binaries, and the Hugging Face token diarization
// needs. The LLM endpoint is only checked when enrichment is configured.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Input directory", cfg.Paths.InputDir, unix.R_OK|unix.X_OK),
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir, unix.R_OK|unix.W_OK|unix.X_OK),
		CheckBinary("FFmpeg", "ffmpeg", "required for audio extraction"),
		CheckBinary("FFprobe", cfg.FFprobeBinary(), "required for media validation"),
		CheckBinary("uvx", "uvx", "required to run WhisperX"),
		CheckHFToken(cfg.Whisper.HFToken),
	}

	if cfg.Enrich.APIKey != "" {
		results = append(results, CheckLLM(ctx, cfg))
	}
	return results
}

// AllPassed reports whether every check succeeded.
func AllPassed(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return false
		}
	}
	return true
}

// CheckDirectoryAccess verifies the directory exists with the given access
// bits (unix.R_OK and friends).
func CheckDirectoryAccess(name, path string, mode uint32) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	if err := unix.Access(path, mode); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	var stat unix.Stat_t
	if err := unix.Stat(path, &stat); err != nil || stat.Mode&unix.S_IFMT != unix.S_IFDIR {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not a directory)", path)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckBinary verifies an external command is on PATH.
func CheckBinary(name, command, purpose string) Result {
	path, err := exec.LookPath(command)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%q not found on PATH, %s", command, purpose)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckHFToken verifies the Hugging Face token diarization models require.
func CheckHFToken(token string) Result {
	const name = "Hugging Face token"
	if strings.TrimSpace(token) == "" {
		return Result{Name: name, Detail: "missing (set hf_token or HF_TOKEN)"}
	}
	return Result{Name: name, Passed: true, Detail: "configured"}
}

// CheckLLM verifies the enrichment API is reachable and the key is valid.
// One attempt, 30-second timeout.
func CheckLLM(ctx context.Context, cfg *config.Config) Result {
	const name = "Enrichment LLM"

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := llm.NewClient(llm.Config{
		APIKey:         cfg.Enrich.APIKey,
		BaseURL:        cfg.Enrich.BaseURL,
		Model:          cfg.Enrich.Model,
		TimeoutSeconds: cfg.Enrich.TimeoutSeconds,
	}, llm.WithRetryMaxAttempts(1))

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}
