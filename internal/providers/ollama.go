package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	OllamaName    = "ollama"
	OllamaBaseURL = "http://localhost:11434"
)

// OllamaConfig holds configuration for a local Ollama-compatible
// backend.
type OllamaConfig struct {
	BaseURL    string
	Model      string // e.g. "gemma2:2b"
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
	HTTPClient *http.Client // optional (tests)
}

// OllamaClient implements Provider against the Ollama generate API.
// Local models emit raw output; schema constraints degrade to
// format=json.
type OllamaClient struct {
	baseURL    string
	model      string
	maxRetries int
	retryDelay time.Duration
	client     *http.Client
}

// NewOllamaClient creates a new Ollama provider.
func NewOllamaClient(cfg OllamaConfig) *OllamaClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = OllamaBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = "gemma2:2b"
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
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &OllamaClient{
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		client:     client,
	}
}

// Name returns the provider identifier.
func (c *OllamaClient) Name() string { return OllamaName }

type ollamaRequest struct {
	Model   string         `json:"model"`
	System  string         `json:"system,omitempty"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Format  string         `json:"format,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaResponse struct {
	Response        string `json:"response"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Done            bool   `json:"done"`
}

// Generate sends one extraction request to the local backend.
func (c *OllamaClient) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error) {
	timeout := req.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()

	oReq := ollamaRequest{
		Model:  c.model,
		System: req.System,
		Prompt: req.User,
		Stream: false,
		Options: map[string]any{
			"temperature": req.Temperature,
		},
	}
	if len(req.Schema) > 0 {
		oReq.Format = "json"
	}
	body, err := json.Marshal(oReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var oResp ollamaResponse
	attempts := 0

	err = retry.Do(
		func() error {
			attempts++
			httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
				c.baseURL+"/api/generate", bytes.NewReader(body))
			if err != nil {
				return retry.Unrecoverable(err)
			}
			httpReq.Header.Set("Content-Type", "application/json")

			resp, err := c.client.Do(httpReq)
			if err != nil {
				return fmt.Errorf("request failed: %w", err)
			}
			defer resp.Body.Close()

			respBody, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("failed to read response: %w", err)
			}
			if resp.StatusCode != http.StatusOK {
				statusErr := &BackendError{
					Provider: OllamaName,
					Status:   resp.StatusCode,
					Message:  string(respBody),
				}
				if retryableStatus(resp.StatusCode) {
					return statusErr
				}
				return retry.Unrecoverable(statusErr)
			}
			if err := json.Unmarshal(respBody, &oResp); err != nil {
				return retry.Unrecoverable(fmt.Errorf("failed to unmarshal response: %w", err))
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.maxRetries)),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		var berr *BackendError
		if !errors.As(err, &berr) {
			err = &BackendError{Provider: OllamaName, Message: err.Error(), Err: err}
		}
		return nil, err
	}

	return &GenerateResult{
		Raw:              oResp.Response,
		Provider:         OllamaName,
		ModelUsed:        c.model,
		PromptTokens:     oResp.PromptEvalCount,
		CompletionTokens: oResp.EvalCount,
		TotalTokens:      oResp.PromptEvalCount + oResp.EvalCount,
		Attempts:         attempts,
		ExecutionTime:    time.Since(start),
		RequestID:        req.RequestID,
	}, nil
}

// Verify interface
var _ Provider = (*OllamaClient)(nil)
