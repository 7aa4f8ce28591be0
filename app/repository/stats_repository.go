package repository

import (
	"errors"

	"github.com/MatterDesk/MatterDesk/app/models"
	"gorm.io/gorm"
)

// statsRepository implements the StatsRepository interface
type statsRepository struct {
	db *gorm.DB
}

// NewStatsRepository creates a new stats repository instance
func NewStatsRepository(db *gorm.DB) StatsRepository {
	return &statsRepository{db: db}
}

func (r *statsRepository) Get(userID uint) (*models.DashboardStats, error) {
	var stats models.DashboardStats
	err := r.db.Where("user_id = ?", userID).First(&stats).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// Upsert replaces the single stats row for the user.
func (r *statsRepository) Upsert(stats *models.DashboardStats) error {
	var existing models.DashboardStats
	err := r.db.Where("user_id = ?", stats.UserID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.Create(stats).Error
	}
	if err != nil {
		return err
	}

	stats.ID = existing.ID
	stats.CreatedAt = existing.CreatedAt
	return r.db.Save(stats).Error
}
