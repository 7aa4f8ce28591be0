package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	TeamTypeInHouse    = "in_house"
	TeamTypeContractor = "contractor"
)

// TeamMember mirrors a Docketwise user. DocketwiseID is the unique key
// for upserts; Name is the denormalized display name used on matters.
type TeamMember struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	DocketwiseID      int64      `gorm:"uniqueIndex" json:"docketwise_id"`
	Name              string     `gorm:"type:varchar(255)" json:"name"`
	Email             string     `gorm:"type:varchar(255)" json:"email"`
	TeamType          string     `gorm:"type:varchar(50);default:'in_house'" json:"team_type"`
	UtilizationTarget float64    `json:"utilization_target"`
	WeeklyCapacity    float64    `json:"weekly_capacity"`
	IsActive          bool       `gorm:"default:true" json:"is_active"`
	LastSyncedAt      *time.Time `json:"last_synced_at"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Contact mirrors a Docketwise contact (the client on a matter).
type Contact struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	DocketwiseID int64      `gorm:"uniqueIndex" json:"docketwise_id"`
	Name         string     `gorm:"type:varchar(255)" json:"name"`
	Email        string     `gorm:"type:varchar(255)" json:"email"`
	LastSyncedAt *time.Time `json:"last_synced_at"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// MatterType mirrors a Docketwise matter type. FlatFee and
// ComplexityWeight feed the dashboard aggregation.
type MatterType struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	DocketwiseID     int64      `gorm:"uniqueIndex" json:"docketwise_id"`
	Name             string     `gorm:"type:varchar(255)" json:"name"`
	FlatFee          float64    `json:"flat_fee"`
	ComplexityWeight float64    `gorm:"default:1" json:"complexity_weight"`
	LastSyncedAt     *time.Time `json:"last_synced_at"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// MatterStatus mirrors a Docketwise matter status. Statuses nested
// under a matter type carry the owning type's external id.
type MatterStatus struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	DocketwiseID int64      `gorm:"uniqueIndex" json:"docketwise_id"`
	Name         string     `gorm:"type:varchar(255)" json:"name"`
	MatterTypeID *int64     `gorm:"index" json:"matter_type_id"`
	LastSyncedAt *time.Time `json:"last_synced_at"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
