package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

const OpenAIName = "openai"

// OpenAIConfig holds configuration for the OpenAI backend.
type OpenAIConfig struct {
	APIKey     string
	Model      string // e.g. "gpt-4o-mini"
	BaseURL    string // optional override (tests, proxies)
	RPS        float64
	MaxRetries int
	Timeout    time.Duration
	HTTPClient *http.Client // optional (tests)
}

// OpenAIClient implements Provider using the official OpenAI SDK.
// Transport retries are delegated to the SDK's retry option.
type OpenAIClient struct {
	model   string
	timeout time.Duration
	limiter *RateLimiter
	client  openai.Client
}

// NewOpenAIClient creates a new OpenAI provider.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxAttempts
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		model:   cfg.Model,
		timeout: cfg.Timeout,
		limiter: NewRateLimiter(cfg.RPS),
		client:  openai.NewClient(opts...),
	}
}

// Name returns the provider identifier.
func (c *OpenAIClient) Name() string { return OpenAIName }

// Generate sends one extraction request to the chat completions API.
func (c *OpenAIClient) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error) {
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

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.User),
		},
		Temperature: openai.Float(req.Temperature),
	}
	if len(req.Schema) > 0 {
		rf, err := openAIResponseFormat(req.Schema)
		if err != nil {
			return nil, &BackendError{Provider: OpenAIName, Message: "invalid output schema", Err: err}
		}
		params.ResponseFormat = rf
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, mapOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &BackendError{Provider: OpenAIName, Message: "no choices in response"}
	}

	return &GenerateResult{
		Raw:              resp.Choices[0].Message.Content,
		Provider:         OpenAIName,
		ModelUsed:        resp.Model,
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
		Attempts:         1,
		ExecutionTime:    time.Since(start),
		RequestID:        req.RequestID,
	}, nil
}

// openAIResponseFormat wraps the extraction schema in the chat API's
// json_schema response format. The incoming document is the canonical
// {"name","strict","schema":{...}} wrapper.
func openAIResponseFormat(schemaRaw json.RawMessage) (openai.ChatCompletionNewParamsResponseFormatUnion, error) {
	var wrapper struct {
		Name   string         `json:"name"`
		Strict bool           `json:"strict"`
		Schema map[string]any `json:"schema"`
	}
	if err := json.Unmarshal(schemaRaw, &wrapper); err != nil {
		return openai.ChatCompletionNewParamsResponseFormatUnion{}, fmt.Errorf("failed to parse schema wrapper: %w", err)
	}
	return openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
			JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
				Name:   wrapper.Name,
				Strict: openai.Bool(wrapper.Strict),
				Schema: wrapper.Schema,
			},
		},
	}, nil
}

// mapOpenAIError converts SDK errors into BackendError, preserving
// status codes for the caller's retry/abort decisions.
func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = "request failed"
		}
		return &BackendError{
			Provider: OpenAIName,
			Status:   apiErr.StatusCode,
			Message:  msg,
			Err:      err,
		}
	}
	return &BackendError{Provider: OpenAIName, Message: err.Error(), Err: err}
}

// Verify interface
var _ Provider = (*OpenAIClient)(nil)
