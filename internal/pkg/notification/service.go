package notification

import (
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/MatterDesk/MatterDesk/app/models"
	"github.com/MatterDesk/MatterDesk/app/repository"
	"github.com/MatterDesk/MatterDesk/internal/pkg/mailqueue"
	"github.com/MatterDesk/MatterDesk/internal/pkg/realtime"
)

// dispatchBuffer bounds the fire-and-forget task queue; when full,
// further dispatches are dropped with a log line rather than blocking
// the sync transaction that raised them.
const dispatchBuffer = 256

// Data describes one notification to raise.
type Data struct {
	Type              string
	MatterID          uint
	MatterTitle       string
	OldValue          string
	NewValue          string
	DaysUntilDeadline *int
}

// EventPublisher publishes realtime events for live UI updates.
type EventPublisher interface {
	Publish(event realtime.Event)
}

// Service resolves recipients and settings and fans one notification
// out across the in-app and email channels. An explicitly constructed
// service with its own lifecycle, so tests run isolated instances.
type Service struct {
	settings      repository.SettingsRepository
	notifications repository.NotificationRepository
	queue         *mailqueue.Queue
	publisher     EventPublisher
	now           func() time.Time

	tasks   chan Data
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewService creates a notification service.
func NewService(
	settings repository.SettingsRepository,
	notifications repository.NotificationRepository,
	queue *mailqueue.Queue,
	publisher EventPublisher,
) *Service {
	return &Service{
		settings:      settings,
		notifications: notifications,
		queue:         queue,
		publisher:     publisher,
		now:           time.Now,
		tasks:         make(chan Data, dispatchBuffer),
		stopCh:        make(chan struct{}),
	}
}

// Start launches the dispatch worker.
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.stopCh:
				return
			case data := <-s.tasks:
				if err := s.SendNotification(data); err != nil {
					log.Errorf("[Notification] Dispatch of %s failed: %v", data.Type, err)
				}
			}
		}
	}()
}

// Stop shuts the dispatch worker down. Queued but unprocessed
// dispatches are dropped.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.stopCh)
	s.wg.Wait()
}

// Dispatch hands a notification to the worker without blocking the
// caller. Failures inside the worker never reach the sync pass that
// raised the notification.
func (s *Service) Dispatch(data Data) {
	select {
	case s.tasks <- data:
	default:
		log.Warnf("[Notification] Task queue full, dropping %s for matter %d", data.Type, data.MatterID)
	}
}

// HasConfiguredRecipients reports whether anyone would receive a
// notification on any channel. Sync passes use it to skip change
// detection entirely.
func (s *Service) HasConfiguredRecipients() (bool, error) {
	recipients, err := s.settings.ListRecipients()
	if err != nil {
		return false, fmt.Errorf("list recipients: %w", err)
	}
	for _, r := range recipients {
		if r.InAppEnabled || r.EmailEnabled {
			return true, nil
		}
	}
	return false, nil
}

// settingsFlag maps a notification type onto the settings matrix. The
// newer categories have no dedicated flags and ride on the legacy
// ones: workflowChange and billingChange on statusChange, pastDeadline
// on deadlines. A deliberate simplification, kept from the original
// settings design.
func settingsFlag(settings *models.NotificationSettings, notificationType string) (emailEnabled, inAppEnabled bool) {
	switch notificationType {
	case models.NotificationTypeStatusChange,
		models.NotificationTypeWorkflowChange,
		models.NotificationTypeBillingChange:
		return settings.EmailStatusChange, settings.InAppStatusChange
	case models.NotificationTypeDeadline, models.NotificationTypePastDeadline:
		return settings.EmailDeadlines, settings.InAppDeadlines
	case models.NotificationTypeRFE:
		return settings.EmailRFE, settings.InAppRFE
	case models.NotificationTypeApproval:
		return settings.EmailApproval, settings.InAppApproval
	case models.NotificationTypeDenial:
		return settings.EmailDenial, settings.InAppDenial
	default:
		// Unknown types default to the statusChange flags
		return settings.EmailStatusChange, settings.InAppStatusChange
	}
}

// SendNotification delivers one notification to every configured
// recipient on every enabled channel. One recipient's failure is
// logged and does not block the others.
func (s *Service) SendNotification(data Data) error {
	settings, err := s.settings.GetNotificationSettings()
	if err != nil {
		return fmt.Errorf("load notification settings: %w", err)
	}
	recipients, err := s.settings.ListRecipients()
	if err != nil {
		return fmt.Errorf("list recipients: %w", err)
	}
	if len(recipients) == 0 {
		return nil
	}

	emailEnabled, inAppEnabled := settingsFlag(settings, data.Type)
	content := Render(data)

	for _, recipient := range recipients {
		if inAppEnabled && recipient.InAppEnabled {
			s.createInAppRecord(recipient, data, content)
		}

		if emailEnabled && recipient.EmailEnabled && recipient.Email != "" {
			s.queue.Add(s.emailJob(recipient, data, content))

			// Audit row at enqueue: email rows are born read, IsRead
			// means delivered
			if err := s.notifications.Create(s.emailAuditRow(recipient, data, content)); err != nil {
				log.Errorf("[Notification] Email audit row for user %d failed: %v", recipient.UserID, err)
			}
		}
	}

	return nil
}

// SendDeadlineReminder delivers one deadline reminder synchronously.
// The in-app rows double as the scheduler's dedupe keys, so they must
// exist before the caller's next scan can run; routing them through
// the async worker would let two back-to-back scans both pass the
// existence check. The email leg still goes through the queue, and its
// audit row is recorded only once the send is confirmed.
func (s *Service) SendDeadlineReminder(data Data) error {
	settings, err := s.settings.GetNotificationSettings()
	if err != nil {
		return fmt.Errorf("load notification settings: %w", err)
	}
	recipients, err := s.settings.ListRecipients()
	if err != nil {
		return fmt.Errorf("list recipients: %w", err)
	}
	if len(recipients) == 0 {
		return nil
	}

	emailEnabled, inAppEnabled := settingsFlag(settings, data.Type)
	content := Render(data)

	for _, recipient := range recipients {
		if inAppEnabled && recipient.InAppEnabled {
			s.createInAppRecord(recipient, data, content)
		}

		if emailEnabled && recipient.EmailEnabled && recipient.Email != "" {
			job := s.emailJob(recipient, data, content)
			audit := s.emailAuditRow(recipient, data, content)
			job.OnSuccess = func() {
				if err := s.notifications.Create(audit); err != nil {
					log.Errorf("[Notification] Email audit row for user %d failed: %v", audit.RecipientID, err)
				}
			}
			s.queue.Add(job)
		}
	}

	return nil
}

// createInAppRecord persists one in-app notification and publishes
// the matching realtime event. Failures are logged, never surfaced.
func (s *Service) createInAppRecord(recipient models.NotificationRecipient, data Data, content Content) {
	record := &models.Notification{
		RecipientID:        recipient.UserID,
		MatterID:           data.MatterID,
		NotificationType:   data.Type,
		Channel:            models.NotificationChannelInApp,
		Subject:            content.Subject,
		Message:            content.Body,
		DaysBeforeDeadline: data.DaysUntilDeadline,
	}
	if err := s.notifications.Create(record); err != nil {
		log.Errorf("[Notification] In-app record for user %d failed: %v", recipient.UserID, err)
		return
	}
	if s.publisher != nil {
		s.publisher.Publish(realtime.Event{
			Type:             realtime.EventCreated,
			NotificationID:   record.ID,
			RecipientID:      recipient.UserID,
			NotificationType: data.Type,
			At:               s.now(),
		})
	}
}

func (s *Service) emailJob(recipient models.NotificationRecipient, data Data, content Content) *mailqueue.Job {
	jobType := mailqueue.JobTypeNotification
	if data.Type == models.NotificationTypeDeadline || data.Type == models.NotificationTypePastDeadline {
		jobType = mailqueue.JobTypeDeadlineReminder
	}
	return &mailqueue.Job{
		Type:     jobType,
		To:       recipient.Email,
		ToName:   recipient.Name,
		Subject:  content.Subject,
		HTMLBody: content.HTML(),
		TextBody: content.Text(),
	}
}

func (s *Service) emailAuditRow(recipient models.NotificationRecipient, data Data, content Content) *models.Notification {
	return &models.Notification{
		RecipientID:        recipient.UserID,
		MatterID:           data.MatterID,
		NotificationType:   data.Type,
		Channel:            models.NotificationChannelEmail,
		Subject:            content.Subject,
		Message:            content.Body,
		DaysBeforeDeadline: data.DaysUntilDeadline,
		IsRead:             true,
	}
}
