package models

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	BillingStatusPaid        = "PAID"
	BillingStatusDepositPaid = "DEPOSIT_PAID"
	BillingStatusPaymentPlan = "PAYMENT_PLAN"
	BillingStatusDue         = "DUE"
)

// Matter is the case record synced from Docketwise. Locally created
// matters carry a synthesized negative DocketwiseID so they never
// collide with external ids.
type Matter struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	UserID       uint  `gorm:"uniqueIndex:idx_matters_user_docketwise,priority:1" json:"user_id"`
	DocketwiseID int64 `gorm:"uniqueIndex:idx_matters_user_docketwise,priority:2;index" json:"docketwise_id"`
	Title       string `gorm:"type:varchar(500)" json:"title" validate:"max=500"`
	Description string `gorm:"type:text" json:"description"`

	ClientID   *int64 `json:"client_id"`
	ClientName string `gorm:"type:varchar(255)" json:"client_name"`

	MatterTypeID *int64 `json:"matter_type_id"`
	MatterType   string `gorm:"type:varchar(255)" json:"matter_type"`

	// Two independent status axes: the workflow stage and the
	// government-filing status. They must never be conflated.
	StatusID          *int64 `json:"status_id"`
	Status            string `gorm:"type:varchar(255)" json:"status"`
	StatusForFilingID *int64 `json:"status_for_filing_id"`
	StatusForFiling   string `gorm:"type:varchar(255)" json:"status_for_filing"`

	// AssigneeIDs is a JSON-serialized list of external user ids;
	// Assignees is the resolved display string.
	AssigneeIDs string `gorm:"type:varchar(500)" json:"assignee_ids"`
	Assignees   string `gorm:"type:varchar(500)" json:"assignees"`

	BillingStatus string  `gorm:"type:varchar(50)" json:"billing_status" validate:"omitempty,oneof=PAID DEPOSIT_PAID PAYMENT_PLAN DUE"`
	TotalHours    float64 `json:"total_hours"`
	FlatFee       float64 `json:"flat_fee"`
	RFECount      int     `json:"rfe_count"`
	RevisionCount int     `json:"revision_count"`
	ErrorCount    int     `json:"error_count"`

	DocketwiseCreatedAt *time.Time `json:"docketwise_created_at"`
	DocketwiseUpdatedAt *time.Time `json:"docketwise_updated_at"`
	OpenedAt            *time.Time `json:"opened_at"`
	ClosedAt            *time.Time `json:"closed_at"`
	AssignedAt          *time.Time `json:"assigned_at"`
	EstimatedDeadline   *time.Time `json:"estimated_deadline"`
	ActualDeadline      *time.Time `json:"actual_deadline"`
	LastSyncedAt        *time.Time `json:"last_synced_at"`
	EditedAt            *time.Time `json:"edited_at"`

	IsEdited    bool `gorm:"default:false;index" json:"is_edited"`
	IsArchived  bool `gorm:"default:false" json:"is_archived"`
	IsDiscarded bool `gorm:"default:false" json:"is_discarded"`
	IsStale     bool `gorm:"default:false" json:"is_stale"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (m *Matter) Validate() error {
	v := validator.New()

	return v.Struct(m)
}

// SetAssigneeIDs serializes the external user id list.
func (m *Matter) SetAssigneeIDs(ids []int64) {
	if len(ids) == 0 {
		m.AssigneeIDs = ""
		return
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return
	}
	m.AssigneeIDs = string(data)
}

// GetAssigneeIDs deserializes the external user id list.
func (m *Matter) GetAssigneeIDs() []int64 {
	if m.AssigneeIDs == "" {
		return nil
	}
	var ids []int64
	if err := json.Unmarshal([]byte(m.AssigneeIDs), &ids); err != nil {
		return nil
	}
	return ids
}

// IsLocalOnly reports whether the matter was created locally and has
// no counterpart in the external system.
func (m *Matter) IsLocalOnly() bool {
	return m.DocketwiseID < 0
}
