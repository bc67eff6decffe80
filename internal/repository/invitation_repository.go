package repository

import (
	"time"

	"github.com/DagneMan123/simuAI-sub001/internal/model"
	"gorm.io/gorm"
)

type InvitationRepository interface {
	Create(invitation *model.Invitation) error
	Update(invitation *model.Invitation) error
	FindByToken(token string) (*model.Invitation, error)
	FindPending(simulationID, candidateID uint) (*model.Invitation, error)
	FindAccepted(simulationID, candidateID uint) (*model.Invitation, error)
	FindStalePending(now time.Time) ([]model.Invitation, error)
}

type invitationRepository struct {
	db *gorm.DB
}

func NewInvitationRepository(db *gorm.DB) InvitationRepository {
	return &invitationRepository{db: db}
}

func (r *invitationRepository) Create(invitation *model.Invitation) error {
	return r.db.Create(invitation).Error
}

func (r *invitationRepository) Update(invitation *model.Invitation) error {
	return r.db.Save(invitation).Error
}

func (r *invitationRepository) FindByToken(token string) (*model.Invitation, error) {
	var invitation model.Invitation
	err := r.db.Where("token = ?", token).First(&invitation).Error
	return &invitation, err
}

func (r *invitationRepository) FindPending(simulationID, candidateID uint) (*model.Invitation, error) {
	var invitation model.Invitation
	err := r.db.
		Where("simulation_id = ? AND candidate_id = ? AND status = ?", simulationID, candidateID, model.InvitationPending).
		First(&invitation).Error
	return &invitation, err
}

func (r *invitationRepository) FindAccepted(simulationID, candidateID uint) (*model.Invitation, error) {
	var invitation model.Invitation
	err := r.db.
		Where("simulation_id = ? AND candidate_id = ? AND status = ?", simulationID, candidateID, model.InvitationAccepted).
		First(&invitation).Error
	return &invitation, err
}

func (r *invitationRepository) FindStalePending(now time.Time) ([]model.Invitation, error) {
	var invitations []model.Invitation
	err := r.db.
		Where("status = ? AND expires_at < ?", model.InvitationPending, now).
		Find(&invitations).Error
	return invitations, err
}
