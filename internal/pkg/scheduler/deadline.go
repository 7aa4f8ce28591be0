package scheduler

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/MatterDesk/MatterDesk/app/models"
	"github.com/MatterDesk/MatterDesk/app/repository"
	"github.com/MatterDesk/MatterDesk/internal/pkg/notification"
)

// deadlineWindow is how many days out the checker looks.
const deadlineWindow = 7

// thresholds are the days-before-deadline marks that raise a
// reminder. Past-due matters are reminded daily until resolved.
var thresholds = map[int]bool{7: true, 3: true, 1: true, 0: true}

// Notifier is the notification surface the checker delivers through.
// Delivery must be synchronous: the in-app rows it creates are the
// dedupe keys the next scan checks against.
type Notifier interface {
	SendDeadlineReminder(data notification.Data) error
	HasConfiguredRecipients() (bool, error)
}

// DeadlineChecker scans upcoming matter deadlines and raises reminder
// notifications at fixed day marks, at most once per matter and mark
// per calendar day.
type DeadlineChecker struct {
	matters       repository.MatterRepository
	notifications repository.NotificationRepository
	notifier      Notifier
	now           func() time.Time
}

// NewDeadlineChecker creates a deadline checker.
func NewDeadlineChecker(
	matters repository.MatterRepository,
	notifications repository.NotificationRepository,
	notifier Notifier,
) *DeadlineChecker {
	return &DeadlineChecker{
		matters:       matters,
		notifications: notifications,
		notifier:      notifier,
		now:           time.Now,
	}
}

// WithNow overrides the clock, for tests.
func (c *DeadlineChecker) WithNow(now func() time.Time) *DeadlineChecker {
	c.now = now
	return c
}

// CheckDeadlines runs one scan. Safe to call repeatedly: the per-day
// dedupe keeps a matter from being reminded twice for the same mark.
func (c *DeadlineChecker) CheckDeadlines() (int, error) {
	configured, err := c.notifier.HasConfiguredRecipients()
	if err != nil {
		return 0, fmt.Errorf("recipient check: %w", err)
	}
	if !configured {
		return 0, nil
	}

	matters, err := c.matters.ListDeadlineWindow(deadlineWindow)
	if err != nil {
		return 0, fmt.Errorf("list deadline window: %w", err)
	}

	now := c.now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	raised := 0
	for i := range matters {
		matter := &matters[i]
		if matter.EstimatedDeadline == nil {
			continue
		}

		days := notification.DaysUntil(now, *matter.EstimatedDeadline)
		overdue := days < 0
		if !overdue && !thresholds[days] {
			continue
		}

		exists, err := c.notifications.ExistsForDeadline(matter.ID, days, startOfDay)
		if err != nil {
			log.Warnf("[DeadlineCheck] Dedupe lookup for matter %d failed: %v", matter.ID, err)
			continue
		}
		if exists {
			continue
		}

		notificationType := models.NotificationTypeDeadline
		if overdue {
			notificationType = models.NotificationTypePastDeadline
		}
		daysCopy := days
		err = c.notifier.SendDeadlineReminder(notification.Data{
			Type:              notificationType,
			MatterID:          matter.ID,
			MatterTitle:       matter.Title,
			NewValue:          matter.EstimatedDeadline.Format("2006-01-02"),
			DaysUntilDeadline: &daysCopy,
		})
		if err != nil {
			log.Warnf("[DeadlineCheck] Reminder for matter %d failed: %v", matter.ID, err)
			continue
		}
		raised++
	}

	if raised > 0 {
		log.Infof("[DeadlineCheck] Raised %d reminders", raised)
	}
	return raised, nil
}
