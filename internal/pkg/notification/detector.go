package notification

import (
	"strings"
	"time"

	"github.com/MatterDesk/MatterDesk/app/models"
)

// deadlineNoticeWindow is how close a changed deadline must be before
// it triggers a notification.
const deadlineNoticeWindow = 7

// DetectNotificationType classifies a status transition by the text
// of the new status. It deliberately does not classify generic status
// changes: those are only raised from direct user edits via
// CheckMatterChangesAndNotify, because firing them from automated sync
// proved too noisy.
func DetectNotificationType(oldStatus, newStatus string) string {
	s := strings.ToLower(newStatus)
	switch {
	case strings.Contains(s, "rfe"), strings.Contains(s, "request for evidence"):
		return models.NotificationTypeRFE
	case strings.Contains(s, "approved"), strings.Contains(s, "approval"):
		return models.NotificationTypeApproval
	case strings.Contains(s, "denied"), strings.Contains(s, "denial"), strings.Contains(s, "rejected"):
		return models.NotificationTypeDenial
	default:
		return ""
	}
}

// ChangeSet carries the old/new field values of a direct matter edit.
type ChangeSet struct {
	MatterID    uint
	MatterTitle string

	OldStatus string
	NewStatus string

	OldBillingStatus string
	NewBillingStatus string

	OldEstimatedDeadline *time.Time
	NewEstimatedDeadline *time.Time

	OldActualDeadline *time.Time
	NewActualDeadline *time.Time
}

// DaysUntil returns whole days from today until the given date,
// negative when the date is already past. Both dates are re-anchored
// at UTC midnight so the difference is an exact multiple of 24h even
// when a DST transition sits between them.
func DaysUntil(now time.Time, deadline time.Time) int {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	day := time.Date(deadline.Year(), deadline.Month(), deadline.Day(), 0, 0, 0, 0, time.UTC)
	return int(day.Sub(today) / (24 * time.Hour))
}

// CheckMatterChangesAndNotify evaluates a user edit's change set and
// dispatches one notification per qualifying change. Each evaluation
// is independent: a status change, a deadline move and a billing
// change on the same edit fire three notifications. Skips everything
// when no recipients are configured.
func (s *Service) CheckMatterChangesAndNotify(cs ChangeSet) error {
	configured, err := s.HasConfiguredRecipients()
	if err != nil {
		return err
	}
	if !configured {
		return nil
	}

	if cs.NewStatus != "" && cs.NewStatus != cs.OldStatus {
		s.Dispatch(Data{
			Type:        models.NotificationTypeStatusChange,
			MatterID:    cs.MatterID,
			MatterTitle: cs.MatterTitle,
			OldValue:    cs.OldStatus,
			NewValue:    cs.NewStatus,
		})
	}

	now := s.now()
	s.checkDeadlineChange(cs, now, cs.OldEstimatedDeadline, cs.NewEstimatedDeadline)
	s.checkDeadlineChange(cs, now, cs.OldActualDeadline, cs.NewActualDeadline)

	if cs.NewBillingStatus != "" && cs.NewBillingStatus != cs.OldBillingStatus {
		s.Dispatch(Data{
			Type:        models.NotificationTypeBillingChange,
			MatterID:    cs.MatterID,
			MatterTitle: cs.MatterTitle,
			OldValue:    cs.OldBillingStatus,
			NewValue:    cs.NewBillingStatus,
		})
	}

	return nil
}

func (s *Service) checkDeadlineChange(cs ChangeSet, now time.Time, oldDeadline, newDeadline *time.Time) {
	if newDeadline == nil {
		return
	}
	if oldDeadline != nil && oldDeadline.Equal(*newDeadline) {
		return
	}

	days := DaysUntil(now, *newDeadline)
	if days > deadlineNoticeWindow {
		return
	}

	notificationType := models.NotificationTypeDeadline
	if days < 0 {
		notificationType = models.NotificationTypePastDeadline
	}
	s.Dispatch(Data{
		Type:              notificationType,
		MatterID:          cs.MatterID,
		MatterTitle:       cs.MatterTitle,
		NewValue:          newDeadline.Format("2006-01-02"),
		DaysUntilDeadline: &days,
	})
}
