package repository

import (
	"github.com/DagneMan123/simuAI-sub001/internal/model"
	"gorm.io/gorm"
)

type SubmissionRepository interface {
	Create(submission *model.Submission) error
	Update(submission *model.Submission) error
	FindByID(id uint) (*model.Submission, error)
	FindByIDWithStep(id uint) (*model.Submission, error)
	FindBySessionAndStep(sessionID, stepID uint) (*model.Submission, error)
	FindAllBySession(sessionID uint) ([]model.Submission, error)
	// MarkScoring claims one version of a submission for grading. Returns false
	// when a resubmission has replaced that version or the row is already
	// scored.
	MarkScoring(id uint, version, attempt int) (bool, error)
	// StoreScore persists the grade for one version only. Returns false when a
	// resubmission replaced that version while it was being scored; the stale
	// grade must then be discarded.
	StoreScore(id uint, version int, score float64, feedback string) (bool, error)
	// SetStatusIfVersion updates the evaluation status for one version only.
	SetStatusIfVersion(id uint, version int, status string) (bool, error)
}

type submissionRepository struct {
	db *gorm.DB
}

func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) Create(submission *model.Submission) error {
	return r.db.Create(submission).Error
}

func (r *submissionRepository) Update(submission *model.Submission) error {
	// Save updates all fields, including Score and Feedback set by the pipeline.
	return r.db.Save(submission).Error
}

func (r *submissionRepository) FindByID(id uint) (*model.Submission, error) {
	var submission model.Submission
	err := r.db.First(&submission, id).Error
	return &submission, err
}

func (r *submissionRepository) FindByIDWithStep(id uint) (*model.Submission, error) {
	var submission model.Submission
	err := r.db.Preload("Step").First(&submission, id).Error
	return &submission, err
}

func (r *submissionRepository) FindBySessionAndStep(sessionID, stepID uint) (*model.Submission, error) {
	var submission model.Submission
	err := r.db.
		Where("session_id = ? AND step_id = ?", sessionID, stepID).
		First(&submission).Error
	return &submission, err
}

func (r *submissionRepository) FindAllBySession(sessionID uint) ([]model.Submission, error) {
	var submissions []model.Submission
	err := r.db.
		Preload("Step").
		Where("session_id = ?", sessionID).
		Find(&submissions).Error
	return submissions, err
}

func (r *submissionRepository) MarkScoring(id uint, version, attempt int) (bool, error) {
	res := r.db.Model(&model.Submission{}).
		Where("id = ? AND version = ? AND evaluation_status <> ?", id, version, model.EvaluationScored).
		Updates(map[string]interface{}{
			"evaluation_status": model.EvaluationScoring,
			"attempts":          attempt,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *submissionRepository) StoreScore(id uint, version int, score float64, feedback string) (bool, error) {
	res := r.db.Model(&model.Submission{}).
		Where("id = ? AND version = ?", id, version).
		Updates(map[string]interface{}{
			"score":             score,
			"feedback":          feedback,
			"evaluation_status": model.EvaluationScored,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *submissionRepository) SetStatusIfVersion(id uint, version int, status string) (bool, error) {
	res := r.db.Model(&model.Submission{}).
		Where("id = ? AND version = ?", id, version).
		Update("evaluation_status", status)
	return res.RowsAffected > 0, res.Error
}
