package providers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const MockName = "mock"

// MockProvider is a deterministic Provider for testing. Responses are
// scripted per user-prompt substring, with a fallback response for
// everything else.
type MockProvider struct {
	// Configurable behavior
	Latency    time.Duration
	ShouldFail bool
	FailAfter  int // fail after N requests (0 = never)
	FailStatus int // status reported on failure (default 500)

	// Response is returned when no scripted match applies.
	Response string

	mu        sync.RWMutex
	responses []scriptedResponse

	requestCount atomic.Int64
}

type scriptedResponse struct {
	match string
	raw   string
}

// NewMockProvider creates a mock with sensible defaults.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Response:   `{"extractions": []}`,
		FailStatus: 500,
	}
}

// Name returns the provider identifier.
func (m *MockProvider) Name() string { return MockName }

// Respond scripts a raw response for any user prompt containing match.
// Scripts are checked in registration order.
func (m *MockProvider) Respond(match, raw string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, scriptedResponse{match: match, raw: raw})
	return m
}

// Generate returns the scripted response for the request.
func (m *MockProvider) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error) {
	count := m.requestCount.Add(1)

	if m.ShouldFail || (m.FailAfter > 0 && int(count) > m.FailAfter) {
		status := m.FailStatus
		if status == 0 {
			status = 500
		}
		return nil, &BackendError{
			Provider: MockName,
			Status:   status,
			Message:  fmt.Sprintf("mock failure on request %d", count),
		}
	}

	if m.Latency > 0 {
		select {
		case <-time.After(m.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	raw := m.Response
	m.mu.RLock()
	for _, s := range m.responses {
		if s.match != "" && strings.Contains(req.User, s.match) {
			raw = s.raw
			break
		}
	}
	m.mu.RUnlock()

	return &GenerateResult{
		Raw:           raw,
		Provider:      MockName,
		ModelUsed:     "mock-model",
		PromptTokens:  len(req.System+req.User) / 4,
		Attempts:      1,
		ExecutionTime: time.Millisecond,
		RequestID:     req.RequestID,
	}, nil
}

// RequestCount returns the number of requests made.
func (m *MockProvider) RequestCount() int64 { return m.requestCount.Load() }

// Reset resets the request counter.
func (m *MockProvider) Reset() { m.requestCount.Store(0) }

// Verify interface
var _ Provider = (*MockProvider)(nil)
