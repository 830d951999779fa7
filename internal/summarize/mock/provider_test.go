package mock_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kiranshivaraju/scribe/internal/summarize"
	"github.com/kiranshivaraju/scribe/internal/summarize/mock"
	"github.com/kiranshivaraju/scribe/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRequest() models.CompletionRequest {
	return models.CompletionRequest{
		SystemPrompt:    "system",
		UserMessage:     "Transcript:\nHola.",
		Temperature:     0.3,
		MaxOutputTokens: 1024,
	}
}

// --- NewMockProvider ---

func TestNewMockProvider(t *testing.T) {
	p := mock.NewMockProvider()
	reply, err := p.CompleteJSON(context.Background(), sampleRequest())

	require.NoError(t, err)
	assert.Equal(t, "mock", p.Name())
	assert.Equal(t, mock.DefaultReply, reply)
	assert.Equal(t, 1, p.Calls())
	assert.Equal(t, []models.CompletionRequest{sampleRequest()}, p.Requests())
}

// --- NewFailingProvider ---

func TestNewFailingProvider(t *testing.T) {
	customErr := errors.New("custom provider error")
	p := mock.NewFailingProvider(customErr)

	_, err := p.CompleteJSON(context.Background(), sampleRequest())

	assert.Equal(t, "mock-failing", p.Name())
	assert.ErrorIs(t, err, customErr)
}

// --- NewScriptedProvider ---

func TestNewScriptedProvider_RepeatsLastStep(t *testing.T) {
	boom := errors.New("boom")
	p := mock.NewScriptedProvider(mock.Step{Err: boom}, mock.Step{Reply: "{}"})

	_, err := p.CompleteJSON(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, boom)

	for i := 0; i < 2; i++ {
		reply, err := p.CompleteJSON(context.Background(), sampleRequest())
		require.NoError(t, err)
		assert.Equal(t, "{}", reply)
	}
	assert.Equal(t, 3, p.Calls())
}

// --- NewTimeoutProvider ---

func TestNewTimeoutProvider(t *testing.T) {
	p := mock.NewTimeoutProvider()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.CompleteJSON(ctx, sampleRequest())
	assert.ErrorIs(t, err, summarize.ErrCallFailed)
}

// --- Zero-value MockProvider ---

func TestMockProvider_NilFunc(t *testing.T) {
	p := &mock.MockProvider{Name_: "bare"}

	reply, err := p.CompleteJSON(context.Background(), sampleRequest())
	assert.NoError(t, err)
	assert.Equal(t, "", reply)
}
