package repository

import (
	"github.com/DagneMan123/simuAI-sub001/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ViolationRepository interface {
	// Create inserts the event unless one with the same (session, dedupe key)
	// already exists. Returns the stored row either way.
	Create(event *model.ViolationEvent) (*model.ViolationEvent, error)
	Update(event *model.ViolationEvent) error
	FindByID(id uint) (*model.ViolationEvent, error)
	FindAllBySession(sessionID uint, unresolvedOnly bool) ([]model.ViolationEvent, error)
	CountBySession(sessionID uint, unresolvedOnly bool) (int64, error)
	CountBySeverity(sessionID uint, severity model.Severity, unresolvedOnly bool) (int64, error)
}

type violationRepository struct {
	db *gorm.DB
}

func NewViolationRepository(db *gorm.DB) ViolationRepository {
	return &violationRepository{db: db}
}

func (r *violationRepository) Create(event *model.ViolationEvent) (*model.ViolationEvent, error) {
	// At-least-once signal delivery: on a dedupe conflict keep the first row.
	res := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}, {Name: "dedupe_key"}},
		DoNothing: true,
	}).Create(event)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		var existing model.ViolationEvent
		if err := r.db.
			Where("session_id = ? AND dedupe_key = ?", event.SessionID, event.DedupeKey).
			First(&existing).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	}
	return event, nil
}

func (r *violationRepository) Update(event *model.ViolationEvent) error {
	return r.db.Save(event).Error
}

func (r *violationRepository) FindByID(id uint) (*model.ViolationEvent, error) {
	var event model.ViolationEvent
	err := r.db.First(&event, id).Error
	return &event, err
}

func (r *violationRepository) FindAllBySession(sessionID uint, unresolvedOnly bool) ([]model.ViolationEvent, error) {
	var events []model.ViolationEvent
	query := r.db.Where("session_id = ?", sessionID)
	if unresolvedOnly {
		query = query.Where("resolved = ?", false)
	}
	err := query.Order("occurred_at ASC").Find(&events).Error
	return events, err
}

func (r *violationRepository) CountBySession(sessionID uint, unresolvedOnly bool) (int64, error) {
	var count int64
	query := r.db.Model(&model.ViolationEvent{}).Where("session_id = ?", sessionID)
	if unresolvedOnly {
		query = query.Where("resolved = ?", false)
	}
	err := query.Count(&count).Error
	return count, err
}

func (r *violationRepository) CountBySeverity(sessionID uint, severity model.Severity, unresolvedOnly bool) (int64, error) {
	var count int64
	query := r.db.Model(&model.ViolationEvent{}).
		Where("session_id = ? AND severity = ?", sessionID, severity)
	if unresolvedOnly {
		query = query.Where("resolved = ?", false)
	}
	err := query.Count(&count).Error
	return count, err
}
