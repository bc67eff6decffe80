package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/DagneMan123/simuAI-sub001/internal/apperr"
	"github.com/DagneMan123/simuAI-sub001/internal/model"
	"github.com/DagneMan123/simuAI-sub001/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SessionService owns the lifecycle of one candidate-simulation pairing:
// eligibility, start, per-step submission, completion, expiry. Operations on one
// session are serialized through a per-session lock because submitStep,
// candidate completion, clock expiry, and monitor-forced completion all race on
// the same record.
type SessionService interface {
	Start(candidateID, simulationID uint) (*model.Session, error)
	SubmitStep(sessionID, stepID uint, content datatypes.JSON, integrityFlags []string) (*model.Submission, error)
	Complete(sessionID uint, trigger string) (*Result, error)
	Result(sessionID uint) (*Result, error)
	Signal(sessionID uint, violationType model.ViolationType, occurredAt time.Time, dedupeKey string, metadata datatypes.JSON)
	// ResolveViolation acknowledges a ledger event and recomputes the owning
	// session's integrity score so the reported result reflects the resolution.
	ResolveViolation(eventID uint) (*model.ViolationEvent, error)
	SessionsForCandidate(candidateID uint) ([]model.Session, error)
	// SweepExpired completes overrun sessions with the TIMEOUT trigger and
	// expires stale invitations. Safe to run concurrently with candidate
	// completions.
	SweepExpired() error
	// Recover rebuilds countdowns and monitors for in-progress sessions after a
	// restart, with remaining time recomputed from startedAt.
	Recover() error
}

type sessionService struct {
	sessionRepo    repository.SessionRepository
	simulationRepo repository.SimulationRepository
	invitationRepo repository.InvitationRepository
	submissionRepo repository.SubmissionRepository
	clock          ClockService
	monitor        MonitorService
	ledger         LedgerService
	results        ResultService
	queue          EvaluationQueue

	mu      sync.Mutex
	locks   map[uint]*sync.Mutex
	handles map[uint]*CountdownHandle

	// pairLocks serializes Start calls per (candidate, simulation) pair.
	// Striped so the set never grows with traffic.
	pairLocks [64]sync.Mutex
}

func NewSessionService(
	sessionRepo repository.SessionRepository,
	simulationRepo repository.SimulationRepository,
	invitationRepo repository.InvitationRepository,
	submissionRepo repository.SubmissionRepository,
	clock ClockService,
	monitor MonitorService,
	ledger LedgerService,
	results ResultService,
	queue EvaluationQueue,
) SessionService {
	return &sessionService{
		sessionRepo:    sessionRepo,
		simulationRepo: simulationRepo,
		invitationRepo: invitationRepo,
		submissionRepo: submissionRepo,
		clock:          clock,
		monitor:        monitor,
		ledger:         ledger,
		results:        results,
		queue:          queue,
		locks:          make(map[uint]*sync.Mutex),
		handles:        make(map[uint]*CountdownHandle),
	}
}

// lockFor returns the serialization point for one session.
func (s *sessionService) lockFor(sessionID uint) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.locks[sessionID]; ok {
		return l
	}
	l := &sync.Mutex{}
	s.locks[sessionID] = l
	return l
}

func (s *sessionService) pairLock(candidateID, simulationID uint) *sync.Mutex {
	return &s.pairLocks[(candidateID*31+simulationID)%uint(len(s.pairLocks))]
}

func (s *sessionService) Start(candidateID, simulationID uint) (*model.Session, error) {
	simulation, err := s.simulationRepo.FindByID(simulationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: simulation %d", apperr.ErrNotFound, simulationID)
		}
		return nil, fmt.Errorf("failed to load simulation %d: %w", simulationID, err)
	}

	// Eligibility: a pending, unexpired invitation, or a published simulation.
	var invitation *model.Invitation
	if inv, err := s.invitationRepo.FindPending(simulationID, candidateID); err == nil {
		if inv.ExpiresAt.After(timeNow()) {
			invitation = inv
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check invitation: %w", err)
	}
	if invitation == nil && !simulation.Published {
		return nil, fmt.Errorf("%w: no valid invitation for simulation %d", apperr.ErrAccessDenied, simulationID)
	}

	// A second start for the pair is rejected, not silently ignored. A session
	// completed by timeout frees the pair for another attempt. The pair lock
	// makes the check-then-create atomic against a concurrent Start.
	pairLock := s.pairLock(candidateID, simulationID)
	pairLock.Lock()
	defer pairLock.Unlock()

	if existing, err := s.sessionRepo.FindNonExpiredByPair(candidateID, simulationID); err == nil {
		return nil, fmt.Errorf("%w: session %d", apperr.ErrAlreadyStarted, existing.ID)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check existing session: %w", err)
	}

	session := &model.Session{
		SimulationID: simulationID,
		CandidateID:  candidateID,
		Status:       model.SessionInProgress,
		StartedAt:    timeNow(),
	}
	if err := s.sessionRepo.Create(session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if invitation != nil {
		invitation.Status = model.InvitationAccepted
		if err := s.invitationRepo.Update(invitation); err != nil {
			log.Error().Err(err).Uint("invitationID", invitation.ID).Msg("Failed to mark invitation accepted")
		}
	}

	s.arm(session.ID, time.Duration(simulation.DurationSeconds)*time.Second)

	log.Info().
		Uint("sessionID", session.ID).
		Uint("candidateID", candidateID).
		Uint("simulationID", simulationID).
		Msg("Session started")
	return session, nil
}

// arm starts the countdown and the integrity monitor for a session.
func (s *sessionService) arm(sessionID uint, duration time.Duration) {
	handle := s.clock.StartCountdown(duration, nil, func() {
		// Expiry races with a candidate's manual completion; Complete is
		// idempotent so the loser becomes a no-op.
		if _, err := s.Complete(sessionID, model.TriggerTimeout); err != nil {
			log.Error().Err(err).Uint("sessionID", sessionID).Msg("Timeout completion failed")
		}
	})
	s.mu.Lock()
	s.handles[sessionID] = handle
	s.mu.Unlock()

	s.monitor.Watch(sessionID,
		func(event *model.ViolationEvent) {
			log.Warn().
				Uint("sessionID", sessionID).
				Str("type", string(event.Type)).
				Str("severity", string(event.Severity)).
				Msg("Integrity warning raised")
		},
		func() {
			if _, err := s.Complete(sessionID, model.TriggerForced); err != nil {
				log.Error().Err(err).Uint("sessionID", sessionID).Msg("Forced completion failed")
			}
		},
	)
}

func (s *sessionService) SubmitStep(sessionID, stepID uint, content datatypes.JSON, integrityFlags []string) (*model.Submission, error) {
	lock := s.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.sessionRepo.FindByID(sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: session %d", apperr.ErrNotFound, sessionID)
		}
		return nil, fmt.Errorf("failed to load session %d: %w", sessionID, err)
	}
	if session.Status != model.SessionInProgress {
		return nil, fmt.Errorf("%w: session %d is %s", apperr.ErrInvalidState, sessionID, session.Status)
	}

	simulation, err := s.simulationRepo.FindByIDWithSteps(session.SimulationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load simulation for session %d: %w", sessionID, err)
	}
	stepBelongs := false
	for _, step := range simulation.Steps {
		if step.ID == stepID {
			stepBelongs = true
			break
		}
	}
	if !stepBelongs {
		return nil, fmt.Errorf("%w: step %d does not belong to simulation %d", apperr.ErrStepNotFound, stepID, simulation.ID)
	}

	submission, err := s.submissionRepo.FindBySessionAndStep(sessionID, stepID)
	switch {
	case err == nil:
		// Resubmission: overwrite content, union integrity flags, re-queue for
		// scoring. Flags recorded earlier are never dropped.
		submission.Content = content
		submission.IntegrityFlags = unionFlags(submission.IntegrityFlags, integrityFlags)
		submission.EvaluationStatus = model.EvaluationPending
		submission.Score = nil
		submission.Feedback = nil
		submission.Version++
		if err := s.submissionRepo.Update(submission); err != nil {
			return nil, fmt.Errorf("failed to update submission: %w", err)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		submission = &model.Submission{
			SessionID:        sessionID,
			StepID:           stepID,
			Content:          content,
			IntegrityFlags:   unionFlags(nil, integrityFlags),
			EvaluationStatus: model.EvaluationPending,
			Version:          1,
		}
		if err := s.submissionRepo.Create(submission); err != nil {
			return nil, fmt.Errorf("failed to create submission: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to load submission: %w", err)
	}

	// Scoring happens off the critical path; the candidate moves on immediately.
	s.queue.Enqueue(submission.ID)

	log.Info().
		Uint("sessionID", sessionID).
		Uint("stepID", stepID).
		Int("version", submission.Version).
		Msg("Step submission accepted")
	return submission, nil
}

// unionFlags merges new integrity flags into the stored JSON array without
// dropping or duplicating existing entries.
func unionFlags(stored datatypes.JSON, incoming []string) datatypes.JSON {
	existing := []string{}
	if len(stored) > 0 {
		if err := json.Unmarshal(stored, &existing); err != nil {
			log.Warn().Err(err).Msg("Failed to decode stored integrity flags, keeping raw set")
		}
	}
	seen := make(map[string]bool, len(existing))
	for _, f := range existing {
		seen[f] = true
	}
	for _, f := range incoming {
		if !seen[f] {
			existing = append(existing, f)
			seen[f] = true
		}
	}
	merged, err := json.Marshal(existing)
	if err != nil {
		return stored
	}
	return merged
}

func (s *sessionService) Complete(sessionID uint, trigger string) (*Result, error) {
	lock := s.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.sessionRepo.FindByID(sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: session %d", apperr.ErrNotFound, sessionID)
		}
		return nil, fmt.Errorf("failed to load session %d: %w", sessionID, err)
	}

	// Idempotent: completing a terminal session returns the existing result
	// with no further side effects. This settles the race between candidate
	// submit, clock expiry, and monitor force.
	if session.Terminal() {
		return s.assembleFor(session)
	}

	now := timeNow()
	session.Status = model.SessionCompleted
	if trigger == model.TriggerTimeout {
		session.Status = model.SessionExpired
	}
	session.Trigger = &trigger
	session.CompletedAt = &now
	session.TimeSpentSeconds = int(now.Sub(session.StartedAt) / time.Second)

	integrity, err := s.ledger.Score(sessionID)
	if err != nil {
		log.Error().Err(err).Uint("sessionID", sessionID).Msg("Failed to derive integrity score at completion")
	} else {
		session.IntegrityScore = &integrity
	}

	if err := s.sessionRepo.Update(session); err != nil {
		return nil, fmt.Errorf("failed to complete session %d: %w", sessionID, err)
	}

	// The session is terminal; drop its in-memory state so long-lived processes
	// don't accumulate an entry per finished session. The lock entry is removed
	// while held, which is safe: waiters holding the same pointer still
	// serialize, and late fetchers only see a terminal row.
	s.mu.Lock()
	handle := s.handles[sessionID]
	delete(s.handles, sessionID)
	delete(s.locks, sessionID)
	s.mu.Unlock()
	s.clock.Cancel(handle)
	s.monitor.Forget(sessionID)

	if invitation, err := s.invitationRepo.FindAccepted(session.SimulationID, session.CandidateID); err == nil {
		invitation.Status = model.InvitationCompleted
		if err := s.invitationRepo.Update(invitation); err != nil {
			log.Error().Err(err).Uint("invitationID", invitation.ID).Msg("Failed to mark invitation completed")
		}
	}

	log.Info().
		Uint("sessionID", sessionID).
		Str("trigger", trigger).
		Int("timeSpentSeconds", session.TimeSpentSeconds).
		Msg("Session completed")

	return s.assembleFor(session)
}

func (s *sessionService) assembleFor(session *model.Session) (*Result, error) {
	submissions, err := s.submissionRepo.FindAllBySession(session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load submissions for session %d: %w", session.ID, err)
	}
	simulation, err := s.simulationRepo.FindByIDWithSteps(session.SimulationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load simulation for session %d: %w", session.ID, err)
	}
	return s.results.AssembleCached(session, submissions, len(simulation.Steps)), nil
}

func (s *sessionService) Result(sessionID uint) (*Result, error) {
	session, err := s.sessionRepo.FindByID(sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: session %d", apperr.ErrNotFound, sessionID)
		}
		return nil, fmt.Errorf("failed to load session %d: %w", sessionID, err)
	}
	if !session.Terminal() {
		return nil, fmt.Errorf("%w: session %d is %s", apperr.ErrResultNotAvailable, sessionID, session.Status)
	}
	return s.assembleFor(session)
}

// Signal is fire-and-forget ingestion into the integrity monitor. Errors are
// logged, never surfaced to the signal transport.
func (s *sessionService) Signal(sessionID uint, violationType model.ViolationType, occurredAt time.Time, dedupeKey string, metadata datatypes.JSON) {
	if err := s.monitor.Signal(sessionID, violationType, occurredAt, dedupeKey, metadata); err != nil {
		log.Warn().Err(err).Uint("sessionID", sessionID).Str("type", string(violationType)).Msg("Integrity signal dropped")
	}
}

func (s *sessionService) ResolveViolation(eventID uint) (*model.ViolationEvent, error) {
	event, err := s.ledger.Resolve(eventID)
	if err != nil {
		return nil, err
	}

	session, err := s.sessionRepo.FindByID(event.SessionID)
	if err != nil {
		log.Error().Err(err).Uint("sessionID", event.SessionID).Msg("Failed to load session after violation resolve")
		return event, nil
	}
	if !session.Terminal() {
		// In-progress sessions derive their score at completion; nothing is
		// snapshotted yet.
		return event, nil
	}

	// Re-derive the snapshotted integrity score and drop the cached result so
	// reports reflect the resolution.
	integrity, err := s.ledger.Score(session.ID)
	if err != nil {
		log.Error().Err(err).Uint("sessionID", session.ID).Msg("Failed to rescore integrity after violation resolve")
		return event, nil
	}
	session.IntegrityScore = &integrity
	if err := s.sessionRepo.Update(session); err != nil {
		log.Error().Err(err).Uint("sessionID", session.ID).Msg("Failed to persist rescored integrity")
		return event, nil
	}
	s.results.Invalidate(session.ID)

	log.Info().
		Uint("eventID", eventID).
		Uint("sessionID", session.ID).
		Int("integrityScore", integrity).
		Msg("Violation resolved, integrity rescored")
	return event, nil
}

func (s *sessionService) SessionsForCandidate(candidateID uint) ([]model.Session, error) {
	return s.sessionRepo.FindAllByCandidate(candidateID)
}

func (s *sessionService) SweepExpired() error {
	now := timeNow()

	sessions, err := s.sessionRepo.FindOverrunInProgress(now)
	if err != nil {
		return fmt.Errorf("expiry sweep query failed: %w", err)
	}
	for _, session := range sessions {
		if _, err := s.Complete(session.ID, model.TriggerTimeout); err != nil {
			log.Error().Err(err).Uint("sessionID", session.ID).Msg("Expiry sweep failed to complete session")
		}
	}

	invitations, err := s.invitationRepo.FindStalePending(now)
	if err != nil {
		return fmt.Errorf("invitation sweep query failed: %w", err)
	}
	for i := range invitations {
		invitations[i].Status = model.InvitationExpired
		if err := s.invitationRepo.Update(&invitations[i]); err != nil {
			log.Error().Err(err).Uint("invitationID", invitations[i].ID).Msg("Failed to expire invitation")
		}
	}
	return nil
}

func (s *sessionService) Recover() error {
	now := timeNow()
	sessions, err := s.sessionRepo.FindAllInProgress()
	if err != nil {
		return fmt.Errorf("recovery query failed: %w", err)
	}
	for _, session := range sessions {
		simulation, err := s.simulationRepo.FindByID(session.SimulationID)
		if err != nil {
			log.Error().Err(err).Uint("sessionID", session.ID).Msg("Recovery: failed to load simulation")
			continue
		}
		remaining := session.StartedAt.Add(time.Duration(simulation.DurationSeconds) * time.Second).Sub(now)
		if remaining <= 0 {
			if _, err := s.Complete(session.ID, model.TriggerTimeout); err != nil {
				log.Error().Err(err).Uint("sessionID", session.ID).Msg("Recovery failed to complete overrun session")
			}
			continue
		}
		s.arm(session.ID, remaining)
		log.Info().Uint("sessionID", session.ID).Dur("remaining", remaining).Msg("Recovered in-progress session")
	}
	return nil
}
