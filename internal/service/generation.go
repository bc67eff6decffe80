package service

import (
	"context"
	"errors"
)

// ErrGeneratorUnavailable is returned when the generation capability is down or
// rate limited. The evaluation pipeline translates it into a deferral and
// retries with backoff.
var ErrGeneratorUnavailable = errors.New("generation capability unavailable")

// GenerateRequest is one prompt to the generation capability. Consumer names the
// caller for quota accounting.
type GenerateRequest struct {
	Consumer string
	Prompt   string
}

// GenerateResult carries the raw text plus the usage metadata logged for quota
// accounting.
type GenerateResult struct {
	Text         string
	ModelID      string
	InputTokens  int32
	OutputTokens int32
}

// Generator is the single abstracted generation capability. Question drafting
// and response evaluation both go through it; nothing else in the engine talks
// to an AI vendor.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
}
