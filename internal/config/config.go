package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	InputDir  string `toml:"input_dir"`
	OutputDir string `toml:"output_dir"`
}

// Whisper contains WhisperX model and device settings.
type Whisper struct {
	ModelSize   string `toml:"model_size"`
	Language    string `toml:"language"`
	ComputeType string `toml:"compute_type"`
	BatchSize   int    `toml:"batch_size"`
	Device      string `toml:"device"`
	HFToken     string `toml:"hf_token"`
}

// Limits contains per-file validation limits.
type Limits struct {
	MaxDurationHours float64 `toml:"max_duration_hours"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Enrich contains LLM connection settings for the enrich command.
type Enrich struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Config encapsulates all configuration values for transskribo.
//
// Configuration sections by subsystem:
//   - Paths: input tree and mirrored output tree
//   - Whisper: WhisperX model, language, and accelerator settings
//   - Limits: validation limits applied before processing
//   - Logging: log format and level
//   - Enrich: LLM connection settings for post-processing
type Config struct {
	Paths   Paths   `toml:"paths"`
	Whisper Whisper `toml:"whisper"`
	Limits  Limits  `toml:"limits"`
	Logging Logging `toml:"logging"`
	Enrich  Enrich  `toml:"enrich"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/transskribo/config.toml")
}

// Load locates, parses, and normalizes a configuration file. Validation is a
// separate step so CLI flag overrides can be applied in between. The returned
// path is the resolved location; exists reports whether a file was read.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("config.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}

	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.InputDir != "" {
		if c.Paths.InputDir, err = expandPath(c.Paths.InputDir); err != nil {
			return err
		}
	}
	if c.Paths.OutputDir != "" {
		if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
			return err
		}
	}

	if strings.TrimSpace(c.Whisper.HFToken) == "" {
		c.Whisper.HFToken = strings.TrimSpace(os.Getenv("HF_TOKEN"))
	}
	if strings.TrimSpace(c.Enrich.APIKey) == "" {
		c.Enrich.APIKey = strings.TrimSpace(os.Getenv("ENRICH_API_KEY"))
	}
	return nil
}

// StateDir returns the directory holding the registry, lock, and log file.
// It lives under the output tree so registry and outputs travel together.
func (c *Config) StateDir() string {
	return filepath.Join(c.Paths.OutputDir, ".transskribo")
}

// RegistryPath returns the path of the content-hash registry file.
func (c *Config) RegistryPath() string {
	return filepath.Join(c.StateDir(), "registry.json")
}

// LockPath returns the path of the single-run lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.StateDir(), "run.lock")
}

// LogFilePath returns the path of the append-only batch log file.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.StateDir(), "transskribo.log")
}

// FFprobeBinary returns the ffprobe executable name used for media validation.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// EnsureDirectories creates the output and state directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.StateDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ExpandPath expands a leading ~ and returns a cleaned absolute path.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
