package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/DagneMan123/simuAI-sub001/internal/apperr"
	"github.com/DagneMan123/simuAI-sub001/internal/model"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
)

const maxStepScore = 100.0

// ScoreResult is the outcome of evaluating one submission.
type ScoreResult struct {
	Score    float64
	Feedback string
}

// EvaluatorService turns a submission's raw content plus its step's grading spec
// into a score and feedback. Grading strategy varies by step type behind a
// uniform contract; when the generation capability is unavailable the error
// wraps apperr.ErrEvaluationDeferred.
type EvaluatorService interface {
	Evaluate(ctx context.Context, step *model.Step, submission *model.Submission) (*ScoreResult, error)
	// GenerateSteps drafts simulation steps from a job description. Used by the
	// admin question-generation endpoint.
	GenerateSteps(ctx context.Context, jobDescription string, requirements []string) ([]model.Step, error)
}

type evaluatorService struct {
	generator Generator
}

func NewEvaluatorService(generator Generator) EvaluatorService {
	return &evaluatorService{generator: generator}
}

func (s *evaluatorService) Evaluate(ctx context.Context, step *model.Step, submission *model.Submission) (*ScoreResult, error) {
	prompt, err := buildEvaluationPrompt(step, submission)
	if err != nil {
		return nil, err
	}

	result, err := s.generator.Generate(ctx, GenerateRequest{
		Consumer: fmt.Sprintf("evaluate:session=%d:step=%d", submission.SessionID, step.ID),
		Prompt:   prompt,
	})
	if err != nil {
		if errors.Is(err, ErrGeneratorUnavailable) {
			return nil, fmt.Errorf("%w: %s", apperr.ErrEvaluationDeferred, err.Error())
		}
		return nil, err
	}

	scoreStr, feedback, parseErr := parseScoreAndFeedback(result.Text)
	if parseErr != nil {
		log.Warn().Err(parseErr).Uint("submissionID", submission.ID).Msg("Failed to parse score and feedback from model response")
		return nil, parseErr
	}

	score, scoreErr := strconv.ParseFloat(strings.TrimSpace(scoreStr), 64)
	if scoreErr != nil {
		return nil, fmt.Errorf("could not parse score value (%q) from model response: %w", scoreStr, scoreErr)
	}
	if score > maxStepScore {
		score = maxStepScore
	}
	if score < 0 {
		score = 0
	}

	return &ScoreResult{Score: score, Feedback: strings.TrimSpace(feedback)}, nil
}

func (s *evaluatorService) GenerateSteps(ctx context.Context, jobDescription string, requirements []string) ([]model.Step, error) {
	var b strings.Builder
	b.WriteString("You are designing a timed skill simulation for candidate assessment.\n")
	b.WriteString("Job description:\n---\n")
	b.WriteString(jobDescription)
	b.WriteString("\n---\n\n")
	if len(requirements) > 0 {
		b.WriteString("Requirements to assess:\n")
		for _, r := range requirements {
			b.WriteString("- ")
			b.WriteString(r)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	b.WriteString(`Draft 3 to 5 assessment steps. Respond with ONLY a JSON array; each element:
{"title": string, "type": "conversational"|"code_review"|"document_analysis", "instructions": string, "persona": string, "grading_spec": {"criteria": [string]}}
`)

	result, err := s.generator.Generate(ctx, GenerateRequest{
		Consumer: "generate_steps",
		Prompt:   b.String(),
	})
	if err != nil {
		if errors.Is(err, ErrGeneratorUnavailable) {
			return nil, fmt.Errorf("%w: %s", apperr.ErrEvaluationDeferred, err.Error())
		}
		return nil, err
	}

	steps, err := parseGeneratedSteps(result.Text)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to parse generated steps from model response")
		return nil, err
	}
	return steps, nil
}

type generatedStep struct {
	Title        string          `json:"title"`
	Type         string          `json:"type"`
	Instructions string          `json:"instructions"`
	Persona      string          `json:"persona"`
	GradingSpec  json.RawMessage `json:"grading_spec"`
}

func parseGeneratedSteps(raw string) ([]model.Step, error) {
	// Models wrap JSON in fences more often than not.
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("model response does not contain a JSON array")
	}

	var drafts []generatedStep
	if err := json.Unmarshal([]byte(raw[start:end+1]), &drafts); err != nil {
		return nil, fmt.Errorf("failed to decode generated steps: %w", err)
	}
	if len(drafts) == 0 {
		return nil, fmt.Errorf("model returned no steps")
	}

	steps := make([]model.Step, 0, len(drafts))
	for i, d := range drafts {
		stepType := d.Type
		switch stepType {
		case model.StepTypeConversational, model.StepTypeCodeReview, model.StepTypeDocumentAnalysis:
		default:
			stepType = model.StepTypeConversational
		}
		step := model.Step{
			Title:             d.Title,
			Type:              stepType,
			Instructions:      d.Instructions,
			OrderInSimulation: i + 1,
			GradingSpec:       datatypes.JSON(d.GradingSpec),
			MaxScore:          maxStepScore,
		}
		if d.Persona != "" {
			persona := d.Persona
			step.Persona = &persona
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func buildEvaluationPrompt(step *model.Step, submission *model.Submission) (string, error) {
	var b strings.Builder
	b.WriteString("You are a senior assessor scoring one step of a timed, proctored skill simulation.\n")
	if step.Persona != nil && *step.Persona != "" {
		b.WriteString("Assume the following persona while judging realism of the exchange:\n")
		b.WriteString(*step.Persona)
		b.WriteString("\n\n")
	}

	switch step.Type {
	case model.StepTypeConversational:
		b.WriteString("The candidate held a work conversation (e.g., with a stakeholder or teammate).\n")
		b.WriteString("Judge clarity, professionalism, and whether the conversation achieved the task below.\n\n")
	case model.StepTypeCodeReview:
		b.WriteString("The candidate reviewed a piece of code.\n")
		b.WriteString("Judge correctness of the findings, severity calibration, and actionability of the comments.\n\n")
	case model.StepTypeDocumentAnalysis:
		b.WriteString("The candidate analysed a document.\n")
		b.WriteString("Judge accuracy of the extracted facts, depth of analysis, and soundness of conclusions.\n\n")
	default:
		return "", fmt.Errorf("unsupported step type for scoring: %s", step.Type)
	}

	b.WriteString("Task instructions given to the candidate:\n---\n")
	b.WriteString(step.Instructions)
	b.WriteString("\n---\n\n")

	if len(step.GradingSpec) > 0 {
		b.WriteString("Grading rubric (never shown to the candidate):\n---\n")
		b.Write(step.GradingSpec)
		b.WriteString("\n---\n\n")
	}

	b.WriteString("Candidate's submission:\n---\n")
	b.Write(submission.Content)
	b.WriteString("\n---\n\n")

	b.WriteString(fmt.Sprintf(`Provide your evaluation in two parts:
1. Score: a number from 0.0 to %.1f reflecting the rubric.
2. Feedback: concise, concrete feedback naming strengths and specific shortcomings.

Format your response strictly as:
Score: [number]
Feedback:
[feedback]
`, maxStepScore))

	return b.String(), nil
}

// parseScoreAndFeedback extracts the "Score:" and "Feedback:" sections from the
// model's free-text response.
func parseScoreAndFeedback(rawResponse string) (scoreStr string, feedbackStr string, err error) {
	scorePrefix := "Score:"
	feedbackPrefix := "Feedback:"

	scoreIndex := strings.Index(rawResponse, scorePrefix)
	feedbackIndex := strings.Index(rawResponse, feedbackPrefix)

	if scoreIndex == -1 {
		return "", rawResponse, fmt.Errorf("response does not contain 'Score:' prefix")
	}

	endOfScoreLine := strings.Index(rawResponse[scoreIndex:], "\n")
	if endOfScoreLine == -1 {
		scoreStr = strings.TrimSpace(rawResponse[scoreIndex+len(scorePrefix):])
	} else {
		scoreStr = strings.TrimSpace(rawResponse[scoreIndex+len(scorePrefix) : scoreIndex+endOfScoreLine])
	}

	if feedbackIndex != -1 && feedbackIndex > scoreIndex {
		feedbackStr = strings.TrimSpace(rawResponse[feedbackIndex+len(feedbackPrefix):])
	} else if endOfScoreLine != -1 && len(rawResponse) > scoreIndex+endOfScoreLine+1 {
		feedbackStr = strings.TrimSpace(rawResponse[scoreIndex+endOfScoreLine+1:])
	} else {
		feedbackStr = "Feedback not found in the expected format after the score."
	}

	// The score line must reduce to the leading number.
	parts := strings.Fields(scoreStr)
	if len(parts) > 0 {
		scoreStr = parts[0]
	}

	return scoreStr, feedbackStr, nil
}
