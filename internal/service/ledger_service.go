package service

import (
	"fmt"

	"github.com/DagneMan123/simuAI-sub001/config"
	"github.com/DagneMan123/simuAI-sub001/internal/model"
	"github.com/DagneMan123/simuAI-sub001/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
)

// LedgerService is the append-only record of integrity events per session.
// Events are never deleted; Resolve only flips the acknowledgement flag.
type LedgerService interface {
	Record(sessionID uint, violationType model.ViolationType, severity model.Severity, dedupeKey string, metadata datatypes.JSON) (*model.ViolationEvent, error)
	// Score derives the session integrity score in 0..100. Low-severity events
	// are logged but carry no penalty.
	Score(sessionID uint) (int, error)
	Count(sessionID uint, unresolvedOnly bool) (int, error)
	Resolve(eventID uint) (*model.ViolationEvent, error)
	EventsForSession(sessionID uint) ([]model.ViolationEvent, error)
}

type ledgerService struct {
	violationRepo repository.ViolationRepository
	cfg           *config.Config
}

func NewLedgerService(violationRepo repository.ViolationRepository, cfg *config.Config) LedgerService {
	return &ledgerService{violationRepo: violationRepo, cfg: cfg}
}

func (s *ledgerService) Record(sessionID uint, violationType model.ViolationType, severity model.Severity, dedupeKey string, metadata datatypes.JSON) (*model.ViolationEvent, error) {
	event := &model.ViolationEvent{
		SessionID:  sessionID,
		Type:       violationType,
		Severity:   severity,
		DedupeKey:  dedupeKey,
		Metadata:   metadata,
		OccurredAt: timeNow(),
	}
	stored, err := s.violationRepo.Create(event)
	if err != nil {
		log.Error().Err(err).Uint("sessionID", sessionID).Str("type", string(violationType)).Msg("Failed to record violation event")
		return nil, fmt.Errorf("failed to record violation for session %d: %w", sessionID, err)
	}
	log.Info().
		Uint("sessionID", sessionID).
		Str("type", string(violationType)).
		Str("severity", string(severity)).
		Msg("Violation recorded")
	return stored, nil
}

func (s *ledgerService) Score(sessionID uint) (int, error) {
	high, err := s.violationRepo.CountBySeverity(sessionID, model.SeverityHigh, true)
	if err != nil {
		return 0, fmt.Errorf("failed to count high-severity violations: %w", err)
	}
	critical, err := s.violationRepo.CountBySeverity(sessionID, model.SeverityCritical, true)
	if err != nil {
		return 0, fmt.Errorf("failed to count critical violations: %w", err)
	}
	medium, err := s.violationRepo.CountBySeverity(sessionID, model.SeverityMedium, true)
	if err != nil {
		return 0, fmt.Errorf("failed to count medium-severity violations: %w", err)
	}

	// Critical events weigh the same as high; they force completion elsewhere.
	score := 100 -
		s.cfg.Integrity.HighPenaltyPoints*int(high+critical) -
		s.cfg.Integrity.MediumPenaltyPoints*int(medium)
	if score < 0 {
		score = 0
	}
	return score, nil
}

func (s *ledgerService) Count(sessionID uint, unresolvedOnly bool) (int, error) {
	count, err := s.violationRepo.CountBySession(sessionID, unresolvedOnly)
	if err != nil {
		return 0, fmt.Errorf("failed to count violations for session %d: %w", sessionID, err)
	}
	return int(count), nil
}

func (s *ledgerService) Resolve(eventID uint) (*model.ViolationEvent, error) {
	event, err := s.violationRepo.FindByID(eventID)
	if err != nil {
		return nil, fmt.Errorf("violation event %d not found: %w", eventID, err)
	}
	if event.Resolved {
		return event, nil
	}
	event.Resolved = true
	if err := s.violationRepo.Update(event); err != nil {
		return nil, fmt.Errorf("failed to resolve violation event %d: %w", eventID, err)
	}
	log.Info().Uint("eventID", eventID).Uint("sessionID", event.SessionID).Msg("Violation event resolved")
	return event, nil
}

func (s *ledgerService) EventsForSession(sessionID uint) ([]model.ViolationEvent, error) {
	return s.violationRepo.FindAllBySession(sessionID, false)
}
