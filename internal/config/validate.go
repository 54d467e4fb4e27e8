package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/language"
)

// Validate ensures the configuration is usable for a processing run.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateWhisper(); err != nil {
		return err
	}
	if err := c.validateLimits(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.InputDir) == "" {
		return errors.New("paths.input_dir is required")
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir is required")
	}
	info, err := os.Stat(c.Paths.InputDir)
	if err != nil {
		return fmt.Errorf("paths.input_dir does not exist: %s", c.Paths.InputDir)
	}
	if !info.IsDir() {
		return fmt.Errorf("paths.input_dir is not a directory: %s", c.Paths.InputDir)
	}
	return nil
}

func (c *Config) validateWhisper() error {
	if strings.TrimSpace(c.Whisper.ModelSize) == "" {
		return errors.New("whisper.model_size must be set")
	}
	if c.Whisper.BatchSize <= 0 {
		return errors.New("whisper.batch_size must be positive")
	}
	if strings.TrimSpace(c.Whisper.HFToken) == "" {
		return errors.New("whisper.hf_token is required for diarization (set in config or HF_TOKEN env var)")
	}
	lang := strings.TrimSpace(c.Whisper.Language)
	if lang == "" {
		return errors.New("whisper.language must be set")
	}
	if _, err := language.Parse(lang); err != nil {
		return fmt.Errorf("whisper.language %q is not a valid language tag: %w", lang, err)
	}
	switch c.Whisper.Device {
	case "cuda", "cpu":
	default:
		return fmt.Errorf("whisper.device must be \"cuda\" or \"cpu\", got %q", c.Whisper.Device)
	}
	return nil
}

func (c *Config) validateLimits() error {
	if c.Limits.MaxDurationHours < 0 {
		return errors.New("limits.max_duration_hours must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format must be \"console\" or \"json\", got %q", c.Logging.Format)
	}
	return nil
}

// ValidateEnrich checks the settings needed by the enrich command. Kept apart
// from Validate because a processing run does not need an LLM key.
func (c *Config) ValidateEnrich() error {
	if strings.TrimSpace(c.Enrich.APIKey) == "" {
		return errors.New("enrich.api_key is required (set in config or ENRICH_API_KEY env var)")
	}
	if strings.TrimSpace(c.Enrich.BaseURL) == "" {
		return errors.New("enrich.base_url must be set")
	}
	if strings.TrimSpace(c.Enrich.Model) == "" {
		return errors.New("enrich.model must be set")
	}
	return nil
}
