package service

import (
	"sync"

	"github.com/DagneMan123/simuAI-sub001/internal/model"
)

// Result is the aggregate of a completed session's submissions. Derived, never
// stored: it is always re-derivable from the submissions it summarizes.
type Result struct {
	SessionID      uint `json:"session_id"`
	CompletedSteps int  `json:"completed_steps"`
	TotalSteps     int  `json:"total_steps"`
	PendingSteps   int  `json:"pending_steps"`
	// OverallScore is the mean of scored submissions. nil means nothing has
	// been graded yet, which is distinct from a graded zero.
	OverallScore   *float64 `json:"overall_score"`
	IntegrityScore *int     `json:"integrity_score"`
	Trigger        *string  `json:"trigger,omitempty"`
}

type ResultService interface {
	// Assemble is a pure reduction over the session and its submissions.
	Assemble(session *model.Session, submissions []model.Submission, totalSteps int) *Result
	// AssembleCached serves completed sessions from the per-session cache,
	// computing on first read.
	AssembleCached(session *model.Session, submissions []model.Submission, totalSteps int) *Result
	// Invalidate drops a session's cached result so the next read re-derives
	// it. Called when the integrity score changes after completion.
	Invalidate(sessionID uint)
}

type resultService struct {
	mu    sync.RWMutex
	cache map[uint]*Result
}

func NewResultService() ResultService {
	return &resultService{cache: make(map[uint]*Result)}
}

func (s *resultService) Assemble(session *model.Session, submissions []model.Submission, totalSteps int) *Result {
	result := &Result{
		SessionID:      session.ID,
		CompletedSteps: len(submissions),
		TotalSteps:     totalSteps,
		IntegrityScore: session.IntegrityScore,
		Trigger:        session.Trigger,
	}

	sum := 0.0
	scored := 0
	for _, sub := range submissions {
		if sub.Score == nil {
			result.PendingSteps++
			continue
		}
		sum += *sub.Score
		scored++
	}
	if scored > 0 {
		mean := sum / float64(scored)
		result.OverallScore = &mean
	}
	return result
}

func (s *resultService) AssembleCached(session *model.Session, submissions []model.Submission, totalSteps int) *Result {
	// Only fully-scored completed sessions are safe to cache; pending
	// submissions will change the aggregate once graded.
	if !session.Terminal() {
		return s.Assemble(session, submissions, totalSteps)
	}

	s.mu.RLock()
	cached, ok := s.cache[session.ID]
	s.mu.RUnlock()
	if ok {
		return cached
	}

	result := s.Assemble(session, submissions, totalSteps)
	if result.PendingSteps == 0 {
		s.mu.Lock()
		s.cache[session.ID] = result
		s.mu.Unlock()
	}
	return result
}

func (s *resultService) Invalidate(sessionID uint) {
	s.mu.Lock()
	delete(s.cache, sessionID)
	s.mu.Unlock()
}
