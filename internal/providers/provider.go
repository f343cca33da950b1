// Package providers implements the language-model backends the
// extraction pipeline invokes. Each backend satisfies the Provider
// interface: one blocking, context-aware call per chunk that returns
// the model's raw output.
//
// Transport failures (timeouts, 5xx, 429) are retried with bounded
// attempts inside the provider. Malformed-but-delivered output is NOT
// retried here — rejecting it is the resolver's job.
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Provider is the invocation boundary between the pipeline and a
// language-model backend.
type Provider interface {
	// Generate sends one compiled prompt + chunk to the backend and
	// returns its raw output. Blocks on network I/O; honors ctx.
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error)

	// Name returns the provider identifier (e.g. "gemini", "openai").
	Name() string
}

// GenerateRequest is one model invocation.
type GenerateRequest struct {
	// System is the compiled instruction payload, shared across chunks.
	System string
	// User is the per-chunk prompt.
	User string
	// Schema, when non-nil, requests backend-native structured output
	// constrained to this JSON schema. Providers that cannot constrain
	// output ignore it.
	Schema json.RawMessage

	Temperature float64
	Timeout     time.Duration

	// RequestID tracks the invocation through logs and diagnostics.
	RequestID string
}

// GenerateResult is the raw outcome of one model invocation. The text
// is opaque to this package; parsing happens downstream.
type GenerateResult struct {
	Raw       string `json:"raw"`
	Provider  string `json:"provider"`
	ModelUsed string `json:"model_used"`

	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`

	Attempts      int           `json:"attempts"`
	ExecutionTime time.Duration `json:"execution_time"`
	RequestID     string        `json:"request_id,omitempty"`
}

// BackendError reports a failed backend invocation after retries are
// exhausted, or a non-retryable failure (auth, quota, bad request).
type BackendError struct {
	Provider string
	Status   int // HTTP-ish status code, 0 if not applicable
	Message  string
	Err      error
}

func (e *BackendError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s backend error (status %d): %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s backend error: %s", e.Provider, e.Message)
}

func (e *BackendError) Unwrap() error { return e.Err }

// retryableStatus reports whether an HTTP status is worth retrying:
// rate limits and server-side failures, never auth or client errors.
func retryableStatus(status int) bool {
	if status == 429 {
		return true
	}
	return status >= 500
}

const (
	defaultMaxAttempts = 3
	defaultRetryDelay  = time.Second
	defaultTimeout     = 120 * time.Second
	defaultTemperature = 0.3
)
