package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	NotificationTypeStatusChange   = "statusChange"
	NotificationTypeWorkflowChange = "workflowChange"
	NotificationTypeBillingChange  = "billingChange"
	NotificationTypeDeadline       = "deadline"
	NotificationTypePastDeadline   = "pastDeadline"
	NotificationTypeRFE            = "rfe"
	NotificationTypeApproval       = "approval"
	NotificationTypeDenial         = "denial"

	NotificationChannelInApp = "in_app"
	NotificationChannelEmail = "email"
)

// Notification is one delivered notification per (recipient, matter,
// channel). Email rows are created already read: IsRead there means
// "delivered", not "acknowledged". The (matter, days-before-deadline)
// pair doubles as the dedupe key for the deadline scheduler.
type Notification struct {
	ID                 uint   `gorm:"primaryKey" json:"id"`
	RecipientID        uint   `gorm:"index" json:"recipient_id"`
	MatterID           uint   `gorm:"index" json:"matter_id"`
	NotificationType   string `gorm:"type:varchar(50)" json:"notification_type"`
	Channel            string `gorm:"type:varchar(20);default:'in_app'" json:"channel"`
	Subject            string `gorm:"type:varchar(500)" json:"subject"`
	Message            string `gorm:"type:text" json:"message"`
	DaysBeforeDeadline *int   `json:"days_before_deadline"`
	IsRead             bool   `gorm:"default:false" json:"is_read"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// MarkAsRead marks an in-app notification as read.
func (n *Notification) MarkAsRead(db *gorm.DB) error {
	n.IsRead = true
	return db.Model(n).Update("is_read", true).Error
}

// NotificationSettings is the admin-configured enablement matrix. The
// first-created row wins; defaults apply when none exists. The newer
// notification categories (workflowChange, billingChange, pastDeadline)
// have no flags of their own and ride on StatusChange / Deadlines.
type NotificationSettings struct {
	ID uint `gorm:"primaryKey" json:"id"`

	EmailStatusChange bool `gorm:"default:true" json:"email_status_change"`
	EmailDeadlines    bool `gorm:"default:true" json:"email_deadlines"`
	EmailRFE          bool `gorm:"default:true" json:"email_rfe"`
	EmailApproval     bool `gorm:"default:true" json:"email_approval"`
	EmailDenial       bool `gorm:"default:true" json:"email_denial"`

	InAppStatusChange bool `gorm:"default:true" json:"in_app_status_change"`
	InAppDeadlines    bool `gorm:"default:true" json:"in_app_deadlines"`
	InAppRFE          bool `gorm:"default:true" json:"in_app_rfe"`
	InAppApproval     bool `gorm:"default:true" json:"in_app_approval"`
	InAppDenial       bool `gorm:"default:true" json:"in_app_denial"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// DefaultNotificationSettings returns the hardcoded defaults used when
// no settings row has been created yet.
func DefaultNotificationSettings() *NotificationSettings {
	return &NotificationSettings{
		EmailStatusChange: true,
		EmailDeadlines:    true,
		EmailRFE:          true,
		EmailApproval:     true,
		EmailDenial:       true,
		InAppStatusChange: true,
		InAppDeadlines:    true,
		InAppRFE:          true,
		InAppApproval:     true,
		InAppDenial:       true,
	}
}

// NotificationRecipient is an explicitly added recipient. There is no
// implicit "all admins" fallback: an empty table means nobody gets
// notified.
type NotificationRecipient struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	UserID       uint   `gorm:"uniqueIndex" json:"user_id"`
	Name         string `gorm:"type:varchar(255)" json:"name"`
	Email        string `gorm:"type:varchar(255)" json:"email"`
	EmailEnabled bool   `gorm:"default:true" json:"email_enabled"`
	InAppEnabled bool   `gorm:"default:true" json:"in_app_enabled"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
