package repository

import (
	"github.com/DagneMan123/simuAI-sub001/internal/model"
	"gorm.io/gorm"
)

type SimulationRepository interface {
	Create(simulation *model.Simulation) error
	Update(simulation *model.Simulation) error
	FindByID(id uint) (*model.Simulation, error)
	FindByIDWithSteps(id uint) (*model.Simulation, error)
	FindAllPublishedWithStepCount() ([]struct {
		model.Simulation
		StepCount int
	}, error)
}

type simulationRepository struct {
	db *gorm.DB
}

func NewSimulationRepository(db *gorm.DB) SimulationRepository {
	return &simulationRepository{db: db}
}

func (r *simulationRepository) Create(simulation *model.Simulation) error {
	// GORM creates the associated steps when simulation.Steps is populated.
	return r.db.Create(simulation).Error
}

func (r *simulationRepository) Update(simulation *model.Simulation) error {
	return r.db.Save(simulation).Error
}

func (r *simulationRepository) FindByID(id uint) (*model.Simulation, error) {
	var simulation model.Simulation
	err := r.db.First(&simulation, id).Error
	return &simulation, err
}

func (r *simulationRepository) FindByIDWithSteps(id uint) (*model.Simulation, error) {
	var simulation model.Simulation
	err := r.db.Preload("Steps", func(db *gorm.DB) *gorm.DB {
		return db.Order("steps.order_in_simulation ASC")
	}).First(&simulation, id).Error
	return &simulation, err
}

func (r *simulationRepository) FindAllPublishedWithStepCount() ([]struct {
	model.Simulation
	StepCount int
}, error) {
	var results []struct {
		model.Simulation
		StepCount int
	}
	err := r.db.Model(&model.Simulation{}).
		Select("simulations.*, (SELECT COUNT(*) FROM steps WHERE steps.simulation_id = simulations.id AND steps.deleted_at IS NULL) as step_count").
		Where("simulations.published = ? AND simulations.deleted_at IS NULL", true).
		Order("simulations.created_at DESC").
		Scan(&results).Error
	return results, err
}
