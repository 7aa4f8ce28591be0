package repository

import (
	"errors"
	"time"

	"github.com/MatterDesk/MatterDesk/app/models"
	"gorm.io/gorm"
)

// contactBatchSize bounds how many contacts one transaction writes.
const contactBatchSize = 50

// referenceRepository implements the ReferenceRepository interface
type referenceRepository struct {
	db *gorm.DB
}

// NewReferenceRepository creates a new reference repository instance
func NewReferenceRepository(db *gorm.DB) ReferenceRepository {
	return &referenceRepository{db: db}
}

func (r *referenceRepository) UpsertTeamMember(member *models.TeamMember) error {
	now := time.Now()
	member.LastSyncedAt = &now

	var existing models.TeamMember
	err := r.db.Where("docketwise_id = ?", member.DocketwiseID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.Create(member).Error
	}
	if err != nil {
		return err
	}

	member.ID = existing.ID
	member.CreatedAt = existing.CreatedAt
	// Capacity fields are configured locally, never overwritten by sync
	member.UtilizationTarget = existing.UtilizationTarget
	member.WeeklyCapacity = existing.WeeklyCapacity
	return r.db.Save(member).Error
}

// UpsertContactBatch writes contacts in transactional batches of 50.
func (r *referenceRepository) UpsertContactBatch(contacts []*models.Contact) error {
	for start := 0; start < len(contacts); start += contactBatchSize {
		end := start + contactBatchSize
		if end > len(contacts) {
			end = len(contacts)
		}

		err := r.db.Transaction(func(tx *gorm.DB) error {
			now := time.Now()
			for _, contact := range contacts[start:end] {
				contact.LastSyncedAt = &now

				var existing models.Contact
				err := tx.Where("docketwise_id = ?", contact.DocketwiseID).First(&existing).Error
				if errors.Is(err, gorm.ErrRecordNotFound) {
					if err := tx.Create(contact).Error; err != nil {
						return err
					}
					continue
				}
				if err != nil {
					return err
				}

				contact.ID = existing.ID
				contact.CreatedAt = existing.CreatedAt
				if err := tx.Save(contact).Error; err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *referenceRepository) UpsertMatterType(mt *models.MatterType) error {
	now := time.Now()
	mt.LastSyncedAt = &now

	var existing models.MatterType
	err := r.db.Where("docketwise_id = ?", mt.DocketwiseID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.Create(mt).Error
	}
	if err != nil {
		return err
	}

	mt.ID = existing.ID
	mt.CreatedAt = existing.CreatedAt
	// ComplexityWeight is tuned locally for the dashboard weighting
	mt.ComplexityWeight = existing.ComplexityWeight
	return r.db.Save(mt).Error
}

func (r *referenceRepository) UpsertMatterStatus(ms *models.MatterStatus) error {
	now := time.Now()
	ms.LastSyncedAt = &now

	var existing models.MatterStatus
	err := r.db.Where("docketwise_id = ?", ms.DocketwiseID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.Create(ms).Error
	}
	if err != nil {
		return err
	}

	ms.ID = existing.ID
	ms.CreatedAt = existing.CreatedAt
	if ms.MatterTypeID == nil {
		ms.MatterTypeID = existing.MatterTypeID
	}
	return r.db.Save(ms).Error
}

func (r *referenceRepository) AllTeamMembers() ([]models.TeamMember, error) {
	var members []models.TeamMember
	err := r.db.Find(&members).Error
	return members, err
}

func (r *referenceRepository) ActiveTeamMembers() ([]models.TeamMember, error) {
	var members []models.TeamMember
	err := r.db.Where("is_active = ?", true).Find(&members).Error
	return members, err
}

func (r *referenceRepository) AllContacts() ([]models.Contact, error) {
	var contacts []models.Contact
	err := r.db.Find(&contacts).Error
	return contacts, err
}

func (r *referenceRepository) AllMatterTypes() ([]models.MatterType, error) {
	var types []models.MatterType
	err := r.db.Find(&types).Error
	return types, err
}

func (r *referenceRepository) AllMatterStatuses() ([]models.MatterStatus, error) {
	var statuses []models.MatterStatus
	err := r.db.Find(&statuses).Error
	return statuses, err
}
