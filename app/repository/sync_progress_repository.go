package repository

import (
	"errors"

	"github.com/MatterDesk/MatterDesk/app/models"
	"gorm.io/gorm"
)

// syncProgressRepository implements the SyncProgressRepository interface
type syncProgressRepository struct {
	db *gorm.DB
}

// NewSyncProgressRepository creates a new sync progress repository instance
func NewSyncProgressRepository(db *gorm.DB) SyncProgressRepository {
	return &syncProgressRepository{db: db}
}

// Get returns the progress row for the (user, sync type) pair,
// creating a fresh idle row when none exists yet.
func (r *syncProgressRepository) Get(userID uint, syncType string) (*models.SyncProgress, error) {
	var progress models.SyncProgress
	err := r.db.Where("user_id = ? AND sync_type = ?", userID, syncType).First(&progress).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		progress = models.SyncProgress{
			UserID:   userID,
			SyncType: syncType,
			Status:   models.SyncStatusIdle,
		}
		if err := r.db.Create(&progress).Error; err != nil {
			return nil, err
		}
		return &progress, nil
	}
	if err != nil {
		return nil, err
	}
	return &progress, nil
}

func (r *syncProgressRepository) Save(progress *models.SyncProgress) error {
	return r.db.Save(progress).Error
}
