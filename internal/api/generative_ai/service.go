package generativeAI

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	"github.com/FACorreiaa/munchmate-api/config"
	"github.com/FACorreiaa/munchmate-api/internal/types"
)

const (
	providerName = "gemini"
	defaultModel = "gemini-2.0-flash"
)

var ErrNotConfigured = errors.New("gemini api key is not configured")

// AIClient generates text with a fixed sampling configuration.
type AIClient struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

// NewAIClient returns a client with a nil backend when no API key is set;
// calls on it then fail with ErrNotConfigured wrapped in an UpstreamError.
func NewAIClient(ctx context.Context, cfg config.GeminiConfig) (*AIClient, error) {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "NewAIClient")
	defer span.End()

	ai := &AIClient{
		model:  cfg.Model,
		config: generationConfig(cfg),
	}
	if ai.model == "" {
		ai.model = defaultModel
	}
	if cfg.APIKey == "" {
		span.SetStatus(codes.Ok, "disabled")
		return ai, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create Gemini client")
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	ai.client = client

	span.SetStatus(codes.Ok, "AI client created successfully")
	return ai, nil
}

func generationConfig(cfg config.GeminiConfig) *genai.GenerateContentConfig {
	gc := &genai.GenerateContentConfig{MaxOutputTokens: cfg.MaxOutputTokens}
	if cfg.Temperature > 0 {
		gc.Temperature = genai.Ptr(cfg.Temperature)
	}
	if cfg.TopP > 0 {
		gc.TopP = genai.Ptr(cfg.TopP)
	}
	if cfg.TopK > 0 {
		gc.TopK = genai.Ptr(cfg.TopK)
	}
	return gc
}

func (ai *AIClient) Enabled() bool {
	return ai.client != nil
}

func (ai *AIClient) GenerateContent(ctx context.Context, prompt string) (string, error) {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "GenerateContent", trace.WithAttributes(
		attribute.Int("prompt.length", len(prompt)),
		attribute.String("model", ai.model),
	))
	defer span.End()

	if ai.client == nil {
		return "", upstream(ErrNotConfigured)
	}

	result, err := ai.client.Models.GenerateContent(ctx, ai.model, genai.Text(prompt), ai.config)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to generate content")
		return "", upstream(err)
	}

	responseText := result.Text()
	span.SetAttributes(attribute.Int("response.length", len(responseText)))
	span.SetStatus(codes.Ok, "Content generated successfully")
	return responseText, nil
}

// GenerateContentStream yields text chunks as they arrive. Iteration stops at
// the first error.
func (ai *AIClient) GenerateContentStream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "GenerateContentStream", trace.WithAttributes(
			attribute.Int("prompt.length", len(prompt)),
			attribute.String("model", ai.model),
		))
		defer span.End()

		if ai.client == nil {
			yield("", upstream(ErrNotConfigured))
			return
		}

		for resp, err := range ai.client.Models.GenerateContentStream(ctx, ai.model, genai.Text(prompt), ai.config) {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "stream failed")
				yield("", upstream(err))
				return
			}
			if text := chunkText(resp); text != "" {
				if !yield(text, nil) {
					return
				}
			}
		}
		span.SetStatus(codes.Ok, "")
	}
}

func chunkText(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.Text != "" {
				b.WriteString(part.Text)
			}
		}
	}
	return b.String()
}

func upstream(err error) error {
	return &types.UpstreamError{Provider: providerName, Err: err}
}
