package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DagneMan123/simuAI-sub001/internal/apperr"
	"github.com/DagneMan123/simuAI-sub001/internal/dto"
	"github.com/DagneMan123/simuAI-sub001/internal/model"
	"github.com/DagneMan123/simuAI-sub001/internal/repository"
	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// SimulationService is the author-facing surface: create and publish
// simulations, draft steps via the generation capability, issue invitations,
// and review a session's integrity ledger.
type SimulationService interface {
	Create(ownerID uint, req dto.SimulationCreateDTO) (*dto.SimulationResponseDTO, error)
	Generate(ctx context.Context, ownerID uint, req dto.SimulationGenerateDTO) (*dto.SimulationResponseDTO, error)
	Publish(ownerID, simulationID uint) error
	Invite(simulationID uint, req dto.InvitationCreateDTO) (*dto.InvitationResponseDTO, error)
	ListPublished() ([]dto.SimulationSummaryDTO, error)
	CandidateView(simulationID uint) (*dto.SimulationResponseDTO, error)
	SessionsForSimulation(simulationID uint) ([]model.Session, error)
}

type simulationService struct {
	simulationRepo repository.SimulationRepository
	invitationRepo repository.InvitationRepository
	sessionRepo    repository.SessionRepository
	evaluator      EvaluatorService
}

func NewSimulationService(
	simulationRepo repository.SimulationRepository,
	invitationRepo repository.InvitationRepository,
	sessionRepo repository.SessionRepository,
	evaluator EvaluatorService,
) SimulationService {
	return &simulationService{
		simulationRepo: simulationRepo,
		invitationRepo: invitationRepo,
		sessionRepo:    sessionRepo,
		evaluator:      evaluator,
	}
}

func (s *simulationService) Create(ownerID uint, req dto.SimulationCreateDTO) (*dto.SimulationResponseDTO, error) {
	// Steps must be ordered 1..N with no gaps.
	orderMap := make(map[int]bool)
	for _, stepDto := range req.Steps {
		if orderMap[stepDto.OrderInSimulation] {
			return nil, fmt.Errorf("duplicate order_in_simulation %d", stepDto.OrderInSimulation)
		}
		orderMap[stepDto.OrderInSimulation] = true
	}
	for i := 1; i <= len(req.Steps); i++ {
		if !orderMap[i] {
			return nil, fmt.Errorf("step order must be contiguous 1..%d, missing %d", len(req.Steps), i)
		}
	}

	var steps []model.Step
	for _, stepDto := range req.Steps {
		var step model.Step
		copier.Copy(&step, &stepDto)
		if step.MaxScore <= 0 {
			step.MaxScore = maxStepScore
		}
		steps = append(steps, step)
	}

	simulation := model.Simulation{
		Title:           req.Title,
		Description:     req.Description,
		OwnerID:         ownerID,
		DurationSeconds: req.DurationSeconds,
		Rubric:          req.Rubric,
		Steps:           steps,
	}
	if err := s.simulationRepo.Create(&simulation); err != nil {
		log.Error().Err(err).Msg("Failed to create simulation")
		return nil, fmt.Errorf("database error creating simulation: %w", err)
	}

	return s.CandidateView(simulation.ID)
}

func (s *simulationService) Generate(ctx context.Context, ownerID uint, req dto.SimulationGenerateDTO) (*dto.SimulationResponseDTO, error) {
	steps, err := s.evaluator.GenerateSteps(ctx, req.JobDescription, req.Requirements)
	if err != nil {
		return nil, err
	}

	simulation := model.Simulation{
		Title:           req.Title,
		Description:     req.JobDescription,
		OwnerID:         ownerID,
		DurationSeconds: req.DurationSeconds,
		Steps:           steps,
	}
	if err := s.simulationRepo.Create(&simulation); err != nil {
		log.Error().Err(err).Msg("Failed to persist generated simulation")
		return nil, fmt.Errorf("database error creating generated simulation: %w", err)
	}

	log.Info().Uint("simulationID", simulation.ID).Int("steps", len(steps)).Msg("Simulation drafted from job description")
	return s.CandidateView(simulation.ID)
}

func (s *simulationService) Publish(ownerID, simulationID uint) error {
	simulation, err := s.simulationRepo.FindByID(simulationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: simulation %d", apperr.ErrNotFound, simulationID)
		}
		return err
	}
	// Published simulations are immutable except by their owning author.
	if simulation.OwnerID != ownerID {
		return fmt.Errorf("%w: simulation %d belongs to another author", apperr.ErrAccessDenied, simulationID)
	}
	if simulation.Published {
		return nil
	}
	simulation.Published = true
	return s.simulationRepo.Update(simulation)
}

func (s *simulationService) Invite(simulationID uint, req dto.InvitationCreateDTO) (*dto.InvitationResponseDTO, error) {
	if req.CandidateID == nil && req.Email == nil {
		return nil, fmt.Errorf("invitation requires a candidate id or an email")
	}
	if _, err := s.simulationRepo.FindByID(simulationID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: simulation %d", apperr.ErrNotFound, simulationID)
		}
		return nil, err
	}

	invitation := model.Invitation{
		SimulationID: simulationID,
		CandidateID:  req.CandidateID,
		Email:        req.Email,
		Token:        uuid.NewString(),
		Status:       model.InvitationPending,
		ExpiresAt:    time.Now().Add(time.Duration(req.TTLHours) * time.Hour),
	}
	if err := s.invitationRepo.Create(&invitation); err != nil {
		log.Error().Err(err).Uint("simulationID", simulationID).Msg("Failed to create invitation")
		return nil, fmt.Errorf("database error creating invitation: %w", err)
	}

	var resp dto.InvitationResponseDTO
	copier.Copy(&resp, &invitation)
	return &resp, nil
}

func (s *simulationService) ListPublished() ([]dto.SimulationSummaryDTO, error) {
	simulationsWithCount, err := s.simulationRepo.FindAllPublishedWithStepCount()
	if err != nil {
		log.Error().Err(err).Msg("Failed to list published simulations")
		return nil, fmt.Errorf("error fetching simulations: %w", err)
	}

	var dtos []dto.SimulationSummaryDTO
	for _, swc := range simulationsWithCount {
		dtos = append(dtos, dto.SimulationSummaryDTO{
			ID:              swc.Simulation.ID,
			Title:           swc.Simulation.Title,
			Description:     swc.Simulation.Description,
			DurationSeconds: swc.Simulation.DurationSeconds,
			StepCount:       swc.StepCount,
			CreatedAt:       swc.Simulation.CreatedAt,
		})
	}
	return dtos, nil
}

// CandidateView returns the simulation with its steps, stripped of grading
// internals by the DTO shape.
func (s *simulationService) CandidateView(simulationID uint) (*dto.SimulationResponseDTO, error) {
	simulation, err := s.simulationRepo.FindByIDWithSteps(simulationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: simulation %d", apperr.ErrNotFound, simulationID)
		}
		return nil, fmt.Errorf("error fetching simulation %d: %w", simulationID, err)
	}

	var resp dto.SimulationResponseDTO
	if err := copier.Copy(&resp, simulation); err != nil {
		log.Error().Err(err).Msg("Failed to copy Simulation model to response DTO")
		return nil, fmt.Errorf("error preparing simulation response: %w", err)
	}
	return &resp, nil
}

func (s *simulationService) SessionsForSimulation(simulationID uint) ([]model.Session, error) {
	return s.sessionRepo.FindAllBySimulation(simulationID)
}
