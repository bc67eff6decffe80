package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/DagneMan123/simuAI-sub001/config"
	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

type geminiGenerator struct {
	model   *genai.GenerativeModel
	modelID string
}

// NewGeminiGenerator builds the Gemini-backed Generator. With no API key
// configured it still constructs, and every Generate reports unavailability, so
// submissions queue as pending instead of failing.
func NewGeminiGenerator(cfg *config.Config) (Generator, error) {
	if cfg.GeminiApiKey == "" {
		log.Warn().Msg("GEMINI_API_KEY is not set. Generation capability will report unavailable.")
		return &geminiGenerator{model: nil, modelID: cfg.GeminiModel}, nil
	}
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiApiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
	}
	return &geminiGenerator{
		model:   client.GenerativeModel(cfg.GeminiModel),
		modelID: cfg.GeminiModel,
	}, nil
}

func (g *geminiGenerator) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if g.model == nil {
		return nil, ErrGeneratorUnavailable
	}

	resp, err := g.model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && (apiErr.Code == 429 || apiErr.Code >= 500) {
			log.Warn().Err(err).Str("consumer", req.Consumer).Msg("Gemini unavailable or rate limited")
			return nil, fmt.Errorf("%w: %s", ErrGeneratorUnavailable, apiErr.Message)
		}
		log.Error().Err(err).Str("consumer", req.Consumer).Msg("Gemini API error")
		return nil, err
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		log.Warn().Str("consumer", req.Consumer).Msg("Gemini returned no candidates or parts in response")
		return nil, fmt.Errorf("gemini returned no content")
	}

	text := ""
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text += string(txt)
		}
	}
	if text == "" {
		return nil, fmt.Errorf("gemini returned no text content")
	}

	result := &GenerateResult{Text: text, ModelID: g.modelID}
	if resp.UsageMetadata != nil {
		result.InputTokens = resp.UsageMetadata.PromptTokenCount
		result.OutputTokens = resp.UsageMetadata.CandidatesTokenCount
	}

	// Usage accounting is an observability side effect, never a blocking
	// dependency of the grading decision.
	log.Info().
		Str("consumer", req.Consumer).
		Str("model", result.ModelID).
		Int32("input_tokens", result.InputTokens).
		Int32("output_tokens", result.OutputTokens).
		Msg("generation_usage")

	return result, nil
}
