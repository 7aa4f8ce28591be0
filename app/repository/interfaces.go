package repository

import (
	"context"
	"time"

	"github.com/MatterDesk/MatterDesk/app/models"
	"gorm.io/gorm"
)

// MatterRepository defines the interface for matter-related database operations
type MatterRepository interface {
	Create(matter *models.Matter) error
	GetByID(id uint) (*models.Matter, error)
	GetByDocketwiseID(userID uint, docketwiseID int64) (*models.Matter, error)
	Update(matter *models.Matter) error
	Delete(id uint) error
	List(userID uint, offset, limit int) ([]models.Matter, error)
	Count(userID uint) (int64, error)
	// UpsertBatch writes a batch inside a single transaction bounded
	// by the given timeout, keyed on (user, docketwise id).
	UpsertBatch(ctx context.Context, userID uint, matters []*models.Matter, timeout time.Duration) error
	TouchLastSyncedAt(id uint, at time.Time) error
	// ListForBackfill returns non-edited matters with external ids
	// strictly below the cursor, newest-first.
	ListForBackfill(userID uint, belowID int64, limit int) ([]models.Matter, error)
	// ListDeadlineWindow returns non-stale, non-archived matters whose
	// estimated deadline falls within maxDays from today (including
	// already-past deadlines up to today).
	ListDeadlineWindow(maxDays int) ([]models.Matter, error)
	ListForDashboard(userID uint) ([]models.Matter, error)
}

// ReferenceRepository covers the four reference entities kept in sync
// from Docketwise: team members, contacts, matter types and statuses.
type ReferenceRepository interface {
	UpsertTeamMember(member *models.TeamMember) error
	UpsertContactBatch(contacts []*models.Contact) error
	UpsertMatterType(mt *models.MatterType) error
	UpsertMatterStatus(ms *models.MatterStatus) error
	AllTeamMembers() ([]models.TeamMember, error)
	ActiveTeamMembers() ([]models.TeamMember, error)
	AllContacts() ([]models.Contact, error)
	AllMatterTypes() ([]models.MatterType, error)
	AllMatterStatuses() ([]models.MatterStatus, error)
}

// SyncProgressRepository persists resumable sync checkpoints.
type SyncProgressRepository interface {
	Get(userID uint, syncType string) (*models.SyncProgress, error)
	Save(progress *models.SyncProgress) error
}

// NotificationRepository defines the notification audit/dedupe store.
type NotificationRepository interface {
	Create(notification *models.Notification) error
	GetByID(id uint) (*models.Notification, error)
	List(recipientID uint, offset, limit int) ([]models.Notification, error)
	MarkAsRead(id uint) error
	// ExistsForDeadline reports whether a notification was already
	// sent today for the given (matter, days-before-deadline) pair.
	ExistsForDeadline(matterID uint, daysBefore int, since time.Time) (bool, error)
	CountUnread(recipientID uint) (int64, error)
}

// SettingsRepository serves the notification settings singleton and
// the explicit recipient list.
type SettingsRepository interface {
	GetNotificationSettings() (*models.NotificationSettings, error)
	SaveNotificationSettings(settings *models.NotificationSettings) error
	ListRecipients() ([]models.NotificationRecipient, error)
	AddRecipient(recipient *models.NotificationRecipient) error
	RemoveRecipient(userID uint) error
}

// StatsRepository persists the single dashboard stats row per user.
type StatsRepository interface {
	Get(userID uint) (*models.DashboardStats, error)
	Upsert(stats *models.DashboardStats) error
}

// Repositories holds all repository instances
type Repositories struct {
	Matter       MatterRepository
	Reference    ReferenceRepository
	SyncProgress SyncProgressRepository
	Notification NotificationRepository
	Settings     SettingsRepository
	Stats        StatsRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Matter:       NewMatterRepository(db),
		Reference:    NewReferenceRepository(db),
		SyncProgress: NewSyncProgressRepository(db),
		Notification: NewNotificationRepository(db),
		Settings:     NewSettingsRepository(db),
		Stats:        NewStatsRepository(db),
	}
}
