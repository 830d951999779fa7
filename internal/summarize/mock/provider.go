package mock

import (
	"context"
	"sync"

	"github.com/kiranshivaraju/scribe/internal/summarize"
	"github.com/kiranshivaraju/scribe/pkg/models"
)

// MockProvider satisfies models.CompletionProvider for testing.
type MockProvider struct {
	Name_        string
	CompleteFunc func(ctx context.Context, req models.CompletionRequest) (string, error)

	mu       sync.Mutex
	requests []models.CompletionRequest
}

func (m *MockProvider) Name() string { return m.Name_ }

func (m *MockProvider) CompleteJSON(ctx context.Context, req models.CompletionRequest) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return "", nil
}

// Requests returns every request received so far.
func (m *MockProvider) Requests() []models.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.CompletionRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// Calls returns how many requests were received.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// DefaultReply is the JSON body returned by NewMockProvider.
const DefaultReply = `{"short_summary":"Mock summary of the meeting.","key_points":["Budget reviewed","Timeline agreed"],"action_items":["Send minutes"]}`

// NewMockProvider returns a MockProvider that always answers DefaultReply.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock",
		CompleteFunc: func(_ context.Context, _ models.CompletionRequest) (string, error) {
			return DefaultReply, nil
		},
	}
}

// NewFailingProvider returns a MockProvider that always returns the given error.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_: "mock-failing",
		CompleteFunc: func(_ context.Context, _ models.CompletionRequest) (string, error) {
			return "", err
		},
	}
}

// NewScriptedProvider answers each call with the next scripted step.
// Calls past the end of the script repeat the last step.
func NewScriptedProvider(steps ...Step) *MockProvider {
	var mu sync.Mutex
	i := 0
	return &MockProvider{
		Name_: "mock-scripted",
		CompleteFunc: func(_ context.Context, _ models.CompletionRequest) (string, error) {
			mu.Lock()
			defer mu.Unlock()
			if len(steps) == 0 {
				return "", nil
			}
			s := steps[min(i, len(steps)-1)]
			i++
			return s.Reply, s.Err
		},
	}
}

// Step is one scripted reply.
type Step struct {
	Reply string
	Err   error
}

// NewTimeoutProvider returns a MockProvider that blocks until context is cancelled.
func NewTimeoutProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock-timeout",
		CompleteFunc: func(ctx context.Context, _ models.CompletionRequest) (string, error) {
			<-ctx.Done()
			return "", summarize.ErrCallFailed
		},
	}
}

// Compile-time check that MockProvider implements CompletionProvider.
var _ models.CompletionProvider = (*MockProvider)(nil)
