package generativeAI

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/munchmate-api/config"
	"github.com/FACorreiaa/munchmate-api/internal/types"
)

func TestGenerationConfig(t *testing.T) {
	gc := generationConfig(config.GeminiConfig{Temperature: 0.7, TopP: 0.95, TopK: 40, MaxOutputTokens: 500})
	require.NotNil(t, gc.Temperature)
	assert.InDelta(t, 0.7, *gc.Temperature, 1e-6)
	assert.InDelta(t, 0.95, *gc.TopP, 1e-6)
	assert.InDelta(t, 40, *gc.TopK, 1e-6)
	assert.Equal(t, int32(500), gc.MaxOutputTokens)

	empty := generationConfig(config.GeminiConfig{})
	assert.Nil(t, empty.Temperature)
	assert.Nil(t, empty.TopK)
}

func TestDisabledClient(t *testing.T) {
	ai, err := NewAIClient(context.Background(), config.GeminiConfig{})
	require.NoError(t, err)
	assert.False(t, ai.Enabled())
	assert.Equal(t, defaultModel, ai.model)

	_, err = ai.GenerateContent(context.Background(), "hi")
	var upstreamErr *types.UpstreamError
	require.True(t, errors.As(err, &upstreamErr))
	assert.Equal(t, "gemini", upstreamErr.Provider)
	assert.ErrorIs(t, err, ErrNotConfigured)

	var streamErr error
	for _, err := range ai.GenerateContentStream(context.Background(), "hi") {
		streamErr = err
	}
	assert.ErrorIs(t, streamErr, ErrNotConfigured)
}
