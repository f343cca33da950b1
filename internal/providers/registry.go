package providers

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Registry holds instantiated providers keyed by name and resolves
// model IDs to backends.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	logger    *slog.Logger
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		logger:    slog.Default(),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// Register registers a provider by name.
func (r *Registry) Register(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
	if r.logger != nil {
		r.logger.Info("registered provider", "name", name)
	}
}

// Get returns a provider by name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider not found: %s", name)
	}
	return p, nil
}

// List returns all registered provider names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

// BackendConfig is the caller-facing configuration for provider
// construction: a model ID plus optional credential and endpoint.
type BackendConfig struct {
	ModelID    string
	APIKey     string
	ModelURL   string // non-empty selects a local Ollama-compatible backend
	RPS        float64
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
}

// Family returns the backend family a model identifier routes to:
// GeminiName for "gemini-*", OpenAIName for "gpt-*" and the o1/o3/o4
// reasoning series, or "" when nothing matches. Only the documented
// OpenAI prefixes count; a bare "o" prefix would swallow unrelated
// model names.
func Family(model string) string {
	model = strings.TrimSpace(model)
	switch {
	case strings.HasPrefix(model, "gemini"):
		return GeminiName
	case strings.HasPrefix(model, "gpt"),
		strings.HasPrefix(model, "o1"),
		strings.HasPrefix(model, "o3"),
		strings.HasPrefix(model, "o4"):
		return OpenAIName
	default:
		return ""
	}
}

// OutputDefaults returns the fence and schema-constraint defaults for
// a backend: Gemini supports fenced output with native schema
// constraints, OpenAI fenced output only (its strict structured-output
// mode rejects free-form attribute maps), local backends emit raw
// output.
func OutputDefaults(name string) (fenceOutput, useSchemaConstraints bool) {
	switch name {
	case GeminiName:
		return true, true
	case OpenAIName:
		return true, false
	default:
		return false, false
	}
}

// ForModel builds the provider matching a model identifier:
// an explicit ModelURL routes to Ollama, everything else by Family.
func ForModel(cfg BackendConfig) (Provider, error) {
	model := strings.TrimSpace(cfg.ModelID)
	if cfg.ModelURL != "" {
		return NewOllamaClient(OllamaConfig{
			BaseURL:    cfg.ModelURL,
			Model:      model,
			MaxRetries: cfg.MaxRetries,
			RetryDelay: cfg.RetryDelay,
			Timeout:    cfg.Timeout,
		}), nil
	}
	switch Family(model) {
	case GeminiName:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("model %q requires an API key", model)
		}
		return NewGeminiClient(GeminiConfig{
			APIKey:     cfg.APIKey,
			Model:      model,
			RPS:        cfg.RPS,
			MaxRetries: cfg.MaxRetries,
			RetryDelay: cfg.RetryDelay,
			Timeout:    cfg.Timeout,
		}), nil
	case OpenAIName:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("model %q requires an API key", model)
		}
		return NewOpenAIClient(OpenAIConfig{
			APIKey:     cfg.APIKey,
			Model:      model,
			RPS:        cfg.RPS,
			MaxRetries: cfg.MaxRetries,
			Timeout:    cfg.Timeout,
		}), nil
	default:
		return nil, fmt.Errorf("cannot infer a backend for model %q; set a model URL for local models", model)
	}
}
