package config

// Config holds glean configuration.
// Stored at: ./glean.yaml or ~/.glean/config.yaml
type Config struct {
	Providers map[string]ProviderCfg `mapstructure:"providers" yaml:"providers"`
	Defaults  DefaultsCfg            `mapstructure:"defaults" yaml:"defaults"`
}

// ProviderCfg configures a model backend.
type ProviderCfg struct {
	Model      string  `mapstructure:"model" yaml:"model"`             // Model identifier, e.g. "gemini-2.5-flash"
	APIKey     string  `mapstructure:"api_key" yaml:"api_key"`         // API key (supports ${ENV_VAR} syntax)
	ModelURL   string  `mapstructure:"model_url" yaml:"model_url"`     // Base URL for local Ollama-compatible backends
	RateLimit  float64 `mapstructure:"rate_limit" yaml:"rate_limit"`   // Requests per second
	MaxRetries int     `mapstructure:"max_retries" yaml:"max_retries"` // Transport retry attempts
	Enabled    bool    `mapstructure:"enabled" yaml:"enabled"`
}

// DefaultsCfg specifies default run parameters. Fenced-output and
// schema-constraint defaults are not configured here; they follow the
// resolved backend and are overridden per run with the --fence and
// --schema flags.
type DefaultsCfg struct {
	Provider      string  `mapstructure:"provider" yaml:"provider"`               // Default provider entry
	Passes        int     `mapstructure:"passes" yaml:"passes"`                   // Extraction passes per run
	MaxWorkers    int     `mapstructure:"max_workers" yaml:"max_workers"`         // Max concurrent model calls
	MaxCharBuffer int     `mapstructure:"max_char_buffer" yaml:"max_char_buffer"` // Chunk budget in bytes (0 = single chunk)
	Temperature   float64 `mapstructure:"temperature" yaml:"temperature"`         // Sampling temperature
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Providers: map[string]ProviderCfg{
			"gemini": {
				Model:     "gemini-2.5-flash",
				APIKey:    "${GEMINI_API_KEY}",
				RateLimit: 2.0,
				Enabled:   true,
			},
			"openai": {
				Model:     "gpt-4o-mini",
				APIKey:    "${OPENAI_API_KEY}",
				RateLimit: 2.0,
				Enabled:   false,
			},
			"ollama": {
				Model:    "gemma2:2b",
				ModelURL: "http://localhost:11434",
				Enabled:  false,
			},
		},
		Defaults: DefaultsCfg{
			Provider:      "gemini",
			Passes:        1,
			MaxWorkers:    10,
			MaxCharBuffer: 1000,
			Temperature:   0.3,
		},
	}
}

// GetProvider returns a provider config by name.
func (c *Config) GetProvider(name string) (ProviderCfg, bool) {
	cfg, ok := c.Providers[name]
	return cfg, ok
}

// EnabledProviders returns all enabled providers.
func (c *Config) EnabledProviders() map[string]ProviderCfg {
	result := make(map[string]ProviderCfg)
	for name, cfg := range c.Providers {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}
