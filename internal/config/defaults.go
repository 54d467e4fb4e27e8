package config

const (
	defaultModelSize      = "large-v3"
	defaultLanguage       = "pt"
	defaultComputeType    = "float16"
	defaultBatchSize      = 8
	defaultDevice         = "cuda"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
	defaultEnrichBaseURL  = "https://api.openai.com/v1"
	defaultEnrichModel    = "gpt-4o-mini"
	defaultEnrichTimeout  = 60
	defaultMaxDurationHrs = 0
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Whisper: Whisper{
			ModelSize:   defaultModelSize,
			Language:    defaultLanguage,
			ComputeType: defaultComputeType,
			BatchSize:   defaultBatchSize,
			Device:      defaultDevice,
		},
		Limits: Limits{
			MaxDurationHours: defaultMaxDurationHrs,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Enrich: Enrich{
			BaseURL:        defaultEnrichBaseURL,
			Model:          defaultEnrichModel,
			TimeoutSeconds: defaultEnrichTimeout,
		},
	}
}
