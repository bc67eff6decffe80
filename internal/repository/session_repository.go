package repository

import (
	"time"

	"github.com/DagneMan123/simuAI-sub001/internal/model"
	"gorm.io/gorm"
)

type SessionRepository interface {
	Create(session *model.Session) error
	Update(session *model.Session) error
	FindByID(id uint) (*model.Session, error)
	FindByIDWithSubmissions(id uint) (*model.Session, error)
	FindNonExpiredByPair(candidateID, simulationID uint) (*model.Session, error)
	FindAllByCandidate(candidateID uint) ([]model.Session, error)
	FindAllBySimulation(simulationID uint) ([]model.Session, error)
	FindOverrunInProgress(now time.Time) ([]model.Session, error)
	FindAllInProgress() ([]model.Session, error)
}

type sessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(session *model.Session) error {
	return r.db.Create(session).Error
}

func (r *sessionRepository) Update(session *model.Session) error {
	return r.db.Save(session).Error
}

func (r *sessionRepository) FindByID(id uint) (*model.Session, error) {
	var session model.Session
	err := r.db.First(&session, id).Error
	return &session, err
}

func (r *sessionRepository) FindByIDWithSubmissions(id uint) (*model.Session, error) {
	var session model.Session
	err := r.db.
		Preload("Simulation.Steps").
		Preload("Submissions.Step").
		First(&session, id).Error
	return &session, err
}

func (r *sessionRepository) FindNonExpiredByPair(candidateID, simulationID uint) (*model.Session, error) {
	var session model.Session
	err := r.db.
		Where("candidate_id = ? AND simulation_id = ? AND status <> ?", candidateID, simulationID, model.SessionExpired).
		First(&session).Error
	return &session, err
}

func (r *sessionRepository) FindAllByCandidate(candidateID uint) ([]model.Session, error) {
	var sessions []model.Session
	err := r.db.
		Where("candidate_id = ?", candidateID).
		Order("started_at DESC").
		Find(&sessions).Error
	return sessions, err
}

func (r *sessionRepository) FindAllBySimulation(simulationID uint) ([]model.Session, error) {
	var sessions []model.Session
	err := r.db.
		Where("simulation_id = ?", simulationID).
		Order("started_at DESC").
		Find(&sessions).Error
	return sessions, err
}

func (r *sessionRepository) FindAllInProgress() ([]model.Session, error) {
	var sessions []model.Session
	err := r.db.
		Where("status = ?", model.SessionInProgress).
		Find(&sessions).Error
	return sessions, err
}

// FindOverrunInProgress returns in-progress sessions whose deadline has passed,
// for the expiry sweep. The deadline is startedAt plus the simulation duration.
func (r *sessionRepository) FindOverrunInProgress(now time.Time) ([]model.Session, error) {
	var sessions []model.Session
	err := r.db.
		Joins("JOIN simulations ON simulations.id = sessions.simulation_id").
		Where("sessions.status = ?", model.SessionInProgress).
		Where("sessions.started_at + simulations.duration_seconds * INTERVAL '1 second' < ?", now).
		Find(&sessions).Error
	return sessions, err
}
