package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	SyncTypeMatters       = "matters"
	SyncTypeMatterDetails = "matter_details"
	SyncTypeReference     = "reference"

	SyncStatusIdle      = "idle"
	SyncStatusSyncing   = "syncing"
	SyncStatusCompleted = "completed"
	SyncStatusFailed    = "failed"
)

// SyncProgress tracks one resumable sync per (user, sync type).
// LastSyncedID is the cursor for the descending external-id walk.
type SyncProgress struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	UserID         uint       `gorm:"uniqueIndex:idx_sync_progress_user_type,priority:1" json:"user_id"`
	SyncType       string     `gorm:"type:varchar(50);uniqueIndex:idx_sync_progress_user_type,priority:2" json:"sync_type"`
	Status         string     `gorm:"type:varchar(50);default:'idle'" json:"status"`
	LastSyncedID   int64      `json:"last_synced_id"`
	LastSyncDate   *time.Time `json:"last_sync_date"`
	TotalProcessed int        `json:"total_processed"`
	TotalFailed    int        `json:"total_failed"`
	FailureReason  string     `gorm:"type:text" json:"failure_reason"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// CompletedToday reports whether the sync already finished on the
// given calendar day. A completed run from a previous day restarts
// from the top.
func (p *SyncProgress) CompletedToday(now time.Time) bool {
	if p.Status != SyncStatusCompleted || p.LastSyncDate == nil {
		return false
	}
	y1, m1, d1 := p.LastSyncDate.Date()
	y2, m2, d2 := now.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// CheckpointFromToday reports whether the stored cursor belongs to a
// run started today; an older checkpoint is discarded and the walk
// restarts at the top.
func (p *SyncProgress) CheckpointFromToday(now time.Time) bool {
	if p.LastSyncDate == nil || p.LastSyncedID == 0 {
		return false
	}
	y1, m1, d1 := p.LastSyncDate.Date()
	y2, m2, d2 := now.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
