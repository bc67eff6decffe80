package service

import (
	"context"
	"errors"
	"testing"

	"github.com/DagneMan123/simuAI-sub001/internal/apperr"
	"github.com/DagneMan123/simuAI-sub001/internal/dto"
	"github.com/DagneMan123/simuAI-sub001/internal/model"
	"gorm.io/datatypes"
)

type simulationEnv struct {
	sims        *fakeSimulationRepo
	invitations *fakeInvitationRepo
	sessions    *fakeSessionRepo
	gen         *fakeGenerator
	svc         SimulationService
}

func newSimulationEnv() *simulationEnv {
	env := &simulationEnv{
		sims:        newFakeSimulationRepo(),
		invitations: newFakeInvitationRepo(),
		gen:         &fakeGenerator{},
	}
	env.sessions = newFakeSessionRepo(env.sims)
	env.svc = NewSimulationService(env.sims, env.invitations, env.sessions, NewEvaluatorService(env.gen))
	return env
}

func validCreateDTO() dto.SimulationCreateDTO {
	return dto.SimulationCreateDTO{
		Title:           "Backend screen",
		Description:     "Timed backend assessment",
		DurationSeconds: 3600,
		Steps: []dto.StepCreateDTO{
			{
				Title:             "Stakeholder sync",
				Instructions:      "Align the stakeholder.",
				Type:              model.StepTypeConversational,
				OrderInSimulation: 1,
				GradingSpec:       datatypes.JSON(`{"criteria":["clarity"]}`),
			},
			{
				Title:             "PR review",
				Instructions:      "Review the diff.",
				Type:              model.StepTypeCodeReview,
				OrderInSimulation: 2,
				GradingSpec:       datatypes.JSON(`{"criteria":["correctness"]}`),
			},
		},
	}
}

func TestCreateSimulation(t *testing.T) {
	env := newSimulationEnv()

	resp, err := env.svc.Create(1, validCreateDTO())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(resp.Steps) != 2 {
		t.Fatalf("got %d steps, want 2", len(resp.Steps))
	}

	stored, err := env.sims.FindByIDWithSteps(resp.ID)
	if err != nil {
		t.Fatalf("FindByIDWithSteps: %v", err)
	}
	if stored.Published {
		t.Error("new simulation must start unpublished")
	}
	for i, step := range stored.Steps {
		if step.MaxScore != 100 {
			t.Errorf("step %d MaxScore = %v, want default 100", i, step.MaxScore)
		}
	}
}

func TestCreateSimulationRejectsBadStepOrder(t *testing.T) {
	tests := []struct {
		name   string
		orders []int
	}{
		{"duplicate order", []int{1, 1}},
		{"gap in order", []int{1, 3}},
		{"not starting at one", []int{2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newSimulationEnv()
			req := validCreateDTO()
			for i := range req.Steps {
				req.Steps[i].OrderInSimulation = tt.orders[i]
			}
			if _, err := env.svc.Create(1, req); err == nil {
				t.Error("Create accepted malformed step ordering")
			}
		})
	}
}

func TestPublishSimulation(t *testing.T) {
	env := newSimulationEnv()
	created, err := env.svc.Create(1, validCreateDTO())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := env.svc.Publish(2, created.ID); !errors.Is(err, apperr.ErrAccessDenied) {
		t.Errorf("foreign owner publish error = %v, want ErrAccessDenied", err)
	}
	if err := env.svc.Publish(1, created.ID); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	// Re-publishing is a no-op.
	if err := env.svc.Publish(1, created.ID); err != nil {
		t.Fatalf("second Publish: %v", err)
	}
	if err := env.svc.Publish(1, 999); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown simulation publish error = %v, want ErrNotFound", err)
	}

	summaries, err := env.svc.ListPublished()
	if err != nil {
		t.Fatalf("ListPublished: %v", err)
	}
	if len(summaries) != 1 || summaries[0].StepCount != 2 {
		t.Errorf("summaries = %+v, want one entry with 2 steps", summaries)
	}
}

func TestCandidateViewHidesGradingSpec(t *testing.T) {
	env := newSimulationEnv()
	created, err := env.svc.Create(1, validCreateDTO())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	view, err := env.svc.CandidateView(created.ID)
	if err != nil {
		t.Fatalf("CandidateView: %v", err)
	}
	// StepResponseDTO has no grading field at all; what the candidate sees is
	// the task, not the rubric.
	for _, step := range view.Steps {
		if step.Instructions == "" || step.Title == "" {
			t.Errorf("candidate view missing task content: %+v", step)
		}
	}
}

func TestGenerateSimulation(t *testing.T) {
	env := newSimulationEnv()
	env.gen.responses = []string{`[
		{"title":"Kickoff","type":"conversational","instructions":"Talk to the PM.","grading_spec":{"criteria":["clarity"]}},
		{"title":"Diff review","type":"code_review","instructions":"Review it.","grading_spec":{"criteria":["depth"]}}
	]`}

	resp, err := env.svc.Generate(context.Background(), 1, dto.SimulationGenerateDTO{
		Title:           "Drafted screen",
		JobDescription:  "Senior backend engineer",
		Requirements:    []string{"Go"},
		DurationSeconds: 1800,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(resp.Steps) != 2 {
		t.Errorf("got %d steps, want 2", len(resp.Steps))
	}
}

func TestGenerateDeferredWhenUnavailable(t *testing.T) {
	env := newSimulationEnv()
	env.gen.errs = []error{ErrGeneratorUnavailable}

	_, err := env.svc.Generate(context.Background(), 1, dto.SimulationGenerateDTO{
		Title:           "Drafted screen",
		JobDescription:  "Senior backend engineer",
		DurationSeconds: 1800,
	})
	if !errors.Is(err, apperr.ErrEvaluationDeferred) {
		t.Errorf("error = %v, want ErrEvaluationDeferred", err)
	}
}

func TestInvite(t *testing.T) {
	env := newSimulationEnv()
	created, err := env.svc.Create(1, validCreateDTO())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	candidateID := uint(7)
	invitation, err := env.svc.Invite(created.ID, dto.InvitationCreateDTO{CandidateID: &candidateID, TTLHours: 48})
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if invitation.Token == "" {
		t.Error("invitation token is empty")
	}
	if invitation.Status != model.InvitationPending {
		t.Errorf("status = %q, want PENDING", invitation.Status)
	}

	if _, err := env.svc.Invite(created.ID, dto.InvitationCreateDTO{TTLHours: 48}); err == nil {
		t.Error("Invite without candidate or email returned nil error")
	}
	if _, err := env.svc.Invite(999, dto.InvitationCreateDTO{CandidateID: &candidateID, TTLHours: 48}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown simulation invite error = %v, want ErrNotFound", err)
	}
}
