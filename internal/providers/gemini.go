package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const GeminiName = "gemini"

// GeminiConfig holds configuration for the Gemini backend.
type GeminiConfig struct {
	APIKey     string
	Model      string // e.g. "gemini-2.5-flash"
	RPS        float64
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
}

// GeminiClient implements Provider against the Google Generative AI
// API.
type GeminiClient struct {
	apiKey     string
	model      string
	maxRetries int
	retryDelay time.Duration
	timeout    time.Duration
	limiter    *RateLimiter
}

// NewGeminiClient creates a new Gemini provider.
func NewGeminiClient(cfg GeminiConfig) *GeminiClient {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxAttempts
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &GeminiClient{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		timeout:    cfg.Timeout,
		limiter:    NewRateLimiter(cfg.RPS),
	}
}

// Name returns the provider identifier.
func (c *GeminiClient) Name() string { return GeminiName }

// Generate sends one extraction request to Gemini.
func (c *GeminiClient) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error) {
	if c.apiKey == "" {
		return nil, &BackendError{Provider: GeminiName, Message: "API key is empty"}
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	timeout := req.Timeout
	if timeout == 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()

	cl, err := genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
	if err != nil {
		return nil, &BackendError{Provider: GeminiName, Message: "failed to create client", Err: err}
	}
	defer cl.Close()

	m := cl.GenerativeModel(strings.TrimSpace(c.model))
	temp := float32(req.Temperature)
	m.GenerationConfig = genai.GenerationConfig{Temperature: &temp}
	if len(req.Schema) > 0 {
		// Gemini constrains output natively. The genai schema type
		// cannot express free-form attribute maps, so the constraint
		// covers the envelope and the class/text fields; attributes
		// stay prompt-enforced.
		m.GenerationConfig.ResponseMIMEType = "application/json"
		m.GenerationConfig.ResponseSchema = geminiExtractionSchema()
	}
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(req.System)},
	}

	var raw string
	var resp *genai.GenerateContentResponse
	attempts := 0

	err = retry.Do(
		func() error {
			attempts++
			var genErr error
			resp, genErr = m.GenerateContent(ctx, genai.Text(req.User))
			if genErr != nil {
				return genErr
			}
			raw = firstText(resp)
			if raw == "" {
				return fmt.Errorf("empty response")
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.maxRetries)),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(geminiRetryable),
	)
	if err != nil {
		status := 0
		var gerr *googleapi.Error
		if errors.As(err, &gerr) {
			status = gerr.Code
		}
		return nil, &BackendError{
			Provider: GeminiName,
			Status:   status,
			Message:  err.Error(),
			Err:      err,
		}
	}

	result := &GenerateResult{
		Raw:           raw,
		Provider:      GeminiName,
		ModelUsed:     c.model,
		Attempts:      attempts,
		ExecutionTime: time.Since(start),
		RequestID:     req.RequestID,
	}
	if resp.UsageMetadata != nil {
		result.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		result.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		result.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	return result, nil
}

// geminiRetryable reports whether an invocation error is transient.
// Auth and quota-exceeded failures surface immediately.
func geminiRetryable(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return retryableStatus(gerr.Code)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	// Network-level failures and empty responses are retried.
	return true
}

// geminiExtractionSchema mirrors prompt.ExtractionSchema in the genai
// schema dialect.
func geminiExtractionSchema() *genai.Schema {
	return &genai.Schema{
		Type:     genai.TypeObject,
		Required: []string{"extractions"},
		Properties: map[string]*genai.Schema{
			"extractions": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type:     genai.TypeObject,
					Required: []string{"extraction_class", "extraction_text"},
					Properties: map[string]*genai.Schema{
						"extraction_class": {
							Type:        genai.TypeString,
							Description: "One of the allowed classes",
						},
						"extraction_text": {
							Type:        genai.TypeString,
							Description: "Exact verbatim substring of the passage",
						},
					},
				},
			},
		},
	}
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

// Verify interface
var _ Provider = (*GeminiClient)(nil)
