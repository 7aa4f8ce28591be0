package repository

import (
	"errors"

	"github.com/MatterDesk/MatterDesk/app/models"
	"gorm.io/gorm"
)

// settingsRepository implements the SettingsRepository interface
type settingsRepository struct {
	db *gorm.DB
}

// NewSettingsRepository creates a new settings repository instance
func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

// GetNotificationSettings returns the first-created settings row, or
// the hardcoded defaults when none exists yet.
func (r *settingsRepository) GetNotificationSettings() (*models.NotificationSettings, error) {
	var settings models.NotificationSettings
	err := r.db.Order("id ASC").First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.DefaultNotificationSettings(), nil
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

func (r *settingsRepository) SaveNotificationSettings(settings *models.NotificationSettings) error {
	return r.db.Save(settings).Error
}

func (r *settingsRepository) ListRecipients() ([]models.NotificationRecipient, error) {
	var recipients []models.NotificationRecipient
	err := r.db.Find(&recipients).Error
	return recipients, err
}

func (r *settingsRepository) AddRecipient(recipient *models.NotificationRecipient) error {
	return r.db.Create(recipient).Error
}

func (r *settingsRepository) RemoveRecipient(userID uint) error {
	return r.db.Where("user_id = ?", userID).Delete(&models.NotificationRecipient{}).Error
}
