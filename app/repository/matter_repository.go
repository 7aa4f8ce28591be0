package repository

import (
	"context"
	"errors"
	"time"

	"github.com/MatterDesk/MatterDesk/app/models"
	"gorm.io/gorm"
)

// matterRepository implements the MatterRepository interface
type matterRepository struct {
	db *gorm.DB
}

// NewMatterRepository creates a new matter repository instance
func NewMatterRepository(db *gorm.DB) MatterRepository {
	return &matterRepository{db: db}
}

func (r *matterRepository) Create(matter *models.Matter) error {
	return r.db.Create(matter).Error
}

func (r *matterRepository) GetByID(id uint) (*models.Matter, error) {
	var matter models.Matter
	err := r.db.First(&matter, id).Error
	if err != nil {
		return nil, err
	}
	return &matter, nil
}

func (r *matterRepository) GetByDocketwiseID(userID uint, docketwiseID int64) (*models.Matter, error) {
	var matter models.Matter
	err := r.db.Where("user_id = ? AND docketwise_id = ?", userID, docketwiseID).First(&matter).Error
	if err != nil {
		return nil, err
	}
	return &matter, nil
}

func (r *matterRepository) Update(matter *models.Matter) error {
	return r.db.Save(matter).Error
}

func (r *matterRepository) Delete(id uint) error {
	return r.db.Delete(&models.Matter{}, id).Error
}

func (r *matterRepository) List(userID uint, offset, limit int) ([]models.Matter, error) {
	var matters []models.Matter
	err := r.db.Where("user_id = ?", userID).
		Order("docketwise_updated_at DESC").
		Offset(offset).Limit(limit).
		Find(&matters).Error
	return matters, err
}

func (r *matterRepository) Count(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Matter{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// UpsertBatch writes all matters of one sync batch in a single
// transaction. The context timeout bounds how long the batch may hold
// row locks against concurrent dashboard reads.
func (r *matterRepository) UpsertBatch(ctx context.Context, userID uint, matters []*models.Matter, timeout time.Duration) error {
	txCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return r.db.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		for _, matter := range matters {
			matter.UserID = userID

			var existing models.Matter
			err := tx.Where("user_id = ? AND docketwise_id = ?", userID, matter.DocketwiseID).
				First(&existing).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				if err := tx.Create(matter).Error; err != nil {
					return err
				}
				continue
			}
			if err != nil {
				return err
			}

			matter.ID = existing.ID
			matter.CreatedAt = existing.CreatedAt
			if err := tx.Save(matter).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *matterRepository) TouchLastSyncedAt(id uint, at time.Time) error {
	return r.db.Model(&models.Matter{}).Where("id = ?", id).
		Update("last_synced_at", at).Error
}

func (r *matterRepository) ListForBackfill(userID uint, belowID int64, limit int) ([]models.Matter, error) {
	var matters []models.Matter
	query := r.db.Where("user_id = ? AND is_edited = ? AND docketwise_id > 0", userID, false)
	if belowID > 0 {
		query = query.Where("docketwise_id < ?", belowID)
	}
	err := query.Order("docketwise_id DESC").Limit(limit).Find(&matters).Error
	return matters, err
}

func (r *matterRepository) ListDeadlineWindow(maxDays int) ([]models.Matter, error) {
	var matters []models.Matter
	cutoff := time.Now().AddDate(0, 0, maxDays)
	err := r.db.Where("is_stale = ? AND is_archived = ? AND is_discarded = ?", false, false, false).
		Where("estimated_deadline IS NOT NULL AND estimated_deadline <= ?", cutoff).
		Find(&matters).Error
	return matters, err
}

func (r *matterRepository) ListForDashboard(userID uint) ([]models.Matter, error) {
	var matters []models.Matter
	err := r.db.Where("user_id = ? AND is_archived = ? AND is_discarded = ?", userID, false, false).
		Find(&matters).Error
	return matters, err
}
