package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/DagneMan123/simuAI-sub001/config"
	"github.com/DagneMan123/simuAI-sub001/internal/apperr"
	"github.com/DagneMan123/simuAI-sub001/internal/model"
	"github.com/DagneMan123/simuAI-sub001/internal/repository"
	"github.com/rs/zerolog/log"
)

// EvaluationQueue accepts submissions for asynchronous scoring. Enqueue returns
// immediately; a slow or rate-limited evaluator never stalls submitStep.
type EvaluationQueue interface {
	Enqueue(submissionID uint)
	Start()
	Stop()
}

type evaluationJob struct {
	submissionID uint
	attempt      int
}

type evaluationWorker struct {
	submissionRepo repository.SubmissionRepository
	evaluator      EvaluatorService
	cfg            *config.Config

	jobs   chan evaluationJob
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

func NewEvaluationQueue(submissionRepo repository.SubmissionRepository, evaluator EvaluatorService, cfg *config.Config) EvaluationQueue {
	ctx, cancel := context.WithCancel(context.Background())
	return &evaluationWorker{
		submissionRepo: submissionRepo,
		evaluator:      evaluator,
		cfg:            cfg,
		jobs:           make(chan evaluationJob, cfg.Evaluation.QueueSize),
		ctx:            ctx,
		cancel:         cancel,
	}
}

func (w *evaluationWorker) Start() {
	workers := w.cfg.Evaluation.Workers
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		w.wg.Add(1)
		go w.run()
	}
	log.Info().Int("workers", workers).Msg("Evaluation workers started")
}

func (w *evaluationWorker) Stop() {
	w.once.Do(w.cancel)
	w.wg.Wait()
	log.Info().Msg("Evaluation workers stopped")
}

func (w *evaluationWorker) Enqueue(submissionID uint) {
	select {
	case w.jobs <- evaluationJob{submissionID: submissionID, attempt: 1}:
	case <-w.ctx.Done():
	default:
		// Full queue: mark for manual review rather than blocking the caller.
		log.Error().Uint("submissionID", submissionID).Msg("Evaluation queue full, marking submission for review")
		w.markNeedsReview(submissionID)
	}
}

func (w *evaluationWorker) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case job := <-w.jobs:
			w.process(job)
		}
	}
}

func (w *evaluationWorker) process(job evaluationJob) {
	submission, err := w.submissionRepo.FindByIDWithStep(job.submissionID)
	if err != nil {
		log.Error().Err(err).Uint("submissionID", job.submissionID).Msg("Evaluation: submission not found")
		return
	}
	if submission.EvaluationStatus == model.EvaluationScored {
		return
	}

	// Every write below is guarded by the version read here. A resubmission
	// bumps Version under the session lock and re-enqueues; writes for the old
	// version lose the guard instead of clobbering the new content.
	claimed, err := w.submissionRepo.MarkScoring(submission.ID, submission.Version, job.attempt)
	if err != nil {
		log.Error().Err(err).Uint("submissionID", submission.ID).Msg("Evaluation: failed to mark submission scoring")
	} else if !claimed {
		// A newer version owns the row; its own job grades it.
		return
	}

	result, err := w.evaluator.Evaluate(w.ctx, &submission.Step, submission)
	if err != nil {
		if errors.Is(err, apperr.ErrEvaluationDeferred) {
			w.retry(job, submission)
			return
		}
		log.Error().Err(err).Uint("submissionID", submission.ID).Msg("Evaluation failed")
		w.markNeedsReview(submission.ID)
		return
	}

	stored, err := w.submissionRepo.StoreScore(submission.ID, submission.Version, result.Score, result.Feedback)
	if err != nil {
		// The graded work must not be lost to a write blip; leave the row
		// pending so a retry or operator picks it up.
		log.Error().Err(err).Uint("submissionID", submission.ID).Msg("Evaluation: failed to persist score")
		w.retry(job, submission)
		return
	}
	if !stored {
		log.Info().
			Uint("submissionID", submission.ID).
			Int("version", submission.Version).
			Msg("Evaluation superseded by a resubmission, grade discarded")
		return
	}
	log.Info().
		Uint("submissionID", submission.ID).
		Uint("sessionID", submission.SessionID).
		Float64("score", result.Score).
		Msg("Submission scored")
}

func (w *evaluationWorker) retry(job evaluationJob, submission *model.Submission) {
	if job.attempt >= w.cfg.Evaluation.MaxAttempts {
		log.Warn().
			Uint("submissionID", submission.ID).
			Int("attempts", job.attempt).
			Msg("Evaluation attempts exhausted, marking for manual review")
		w.markNeedsReview(submission.ID)
		return
	}

	backoff := w.cfg.Evaluation.BaseBackoff * time.Duration(1<<(job.attempt-1))
	log.Info().
		Uint("submissionID", submission.ID).
		Int("attempt", job.attempt).
		Dur("backoff", backoff).
		Msg("Evaluation deferred, retrying")

	if _, err := w.submissionRepo.SetStatusIfVersion(submission.ID, submission.Version, model.EvaluationPending); err != nil {
		log.Error().Err(err).Uint("submissionID", submission.ID).Msg("Evaluation: failed to reset submission to pending")
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		select {
		case <-w.ctx.Done():
		case <-time.After(backoff):
			select {
			case w.jobs <- evaluationJob{submissionID: job.submissionID, attempt: job.attempt + 1}:
			case <-w.ctx.Done():
			}
		}
	}()
}

func (w *evaluationWorker) markNeedsReview(submissionID uint) {
	submission, err := w.submissionRepo.FindByID(submissionID)
	if err != nil {
		log.Error().Err(err).Uint("submissionID", submissionID).Msg("Evaluation: cannot load submission to mark needs_review")
		return
	}
	if _, err := w.submissionRepo.SetStatusIfVersion(submission.ID, submission.Version, model.EvaluationNeedsReview); err != nil {
		log.Error().Err(err).Uint("submissionID", submissionID).Msg("Evaluation: failed to mark submission needs_review")
	}
}
