package notification

import (
	"errors"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MatterDesk/MatterDesk/app/models"
	"github.com/MatterDesk/MatterDesk/internal/pkg/mailqueue"
	"github.com/MatterDesk/MatterDesk/internal/pkg/realtime"
)

type fakeSettingsRepo struct {
	settings   *models.NotificationSettings
	recipients []models.NotificationRecipient
}

func (f *fakeSettingsRepo) GetNotificationSettings() (*models.NotificationSettings, error) {
	if f.settings == nil {
		return models.DefaultNotificationSettings(), nil
	}
	return f.settings, nil
}
func (f *fakeSettingsRepo) SaveNotificationSettings(*models.NotificationSettings) error { return nil }
func (f *fakeSettingsRepo) ListRecipients() ([]models.NotificationRecipient, error) {
	return f.recipients, nil
}
func (f *fakeSettingsRepo) AddRecipient(*models.NotificationRecipient) error { return nil }
func (f *fakeSettingsRepo) RemoveRecipient(uint) error                       { return nil }

type fakeNotificationRepo struct {
	mu      sync.Mutex
	created []*models.Notification
}

func (f *fakeNotificationRepo) Create(n *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n.ID = uint(len(f.created) + 1)
	f.created = append(f.created, n)
	return nil
}
func (f *fakeNotificationRepo) GetByID(uint) (*models.Notification, error) { return nil, nil }
func (f *fakeNotificationRepo) List(uint, int, int) ([]models.Notification, error) {
	return nil, nil
}
func (f *fakeNotificationRepo) MarkAsRead(uint) error { return nil }
func (f *fakeNotificationRepo) ExistsForDeadline(uint, int, time.Time) (bool, error) {
	return false, nil
}
func (f *fakeNotificationRepo) CountUnread(uint) (int64, error) { return 0, nil }

func (f *fakeNotificationRepo) byChannel(channel string) []*models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Notification
	for _, n := range f.created {
		if n.Channel == channel {
			out = append(out, n)
		}
	}
	return out
}

type fakePublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (f *fakePublisher) Publish(event realtime.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

type okMailer struct{}

func (okMailer) Send(_, _, _, _, _ string) error { return nil }

func TestDetectNotificationType(t *testing.T) {
	tests := []struct {
		oldStatus string
		newStatus string
		want      string
	}{
		{"", "RFE Issued", models.NotificationTypeRFE},
		{"Pending", "Request for Evidence received", models.NotificationTypeRFE},
		{"Pending", "Approved", models.NotificationTypeApproval},
		{"Pending", "Pending Approval", models.NotificationTypeApproval},
		{"Filed", "Denied", models.NotificationTypeDenial},
		{"Filed", "Application Rejected", models.NotificationTypeDenial},
		{"Pending", "In Review", ""},
		{"Approved", "", ""},
	}

	for _, tt := range tests {
		got := DetectNotificationType(tt.oldStatus, tt.newStatus)
		assert.Equal(t, tt.want, got, "DetectNotificationType(%q, %q)", tt.oldStatus, tt.newStatus)
	}
}

func TestNoRecipientsShortCircuit(t *testing.T) {
	repo := &fakeNotificationRepo{}
	queue := mailqueue.New(okMailer{})
	svc := NewService(&fakeSettingsRepo{}, repo, queue, &fakePublisher{})

	err := svc.CheckMatterChangesAndNotify(ChangeSet{
		MatterID:  1,
		OldStatus: "Pending",
		NewStatus: "Approved",
	})
	assert.NoError(t, err)

	// Nothing queued for dispatch, nothing persisted, nothing mailed
	assert.Empty(t, svc.tasks)
	assert.Empty(t, repo.created)
	assert.Equal(t, mailqueue.Stats{}, queue.Stats())
}

func TestCheckMatterChangesIndependentEvaluation(t *testing.T) {
	settings := &fakeSettingsRepo{
		recipients: []models.NotificationRecipient{
			{UserID: 1, Email: "partner@firm.test", EmailEnabled: true, InAppEnabled: true},
		},
	}
	svc := NewService(settings, &fakeNotificationRepo{}, mailqueue.New(okMailer{}), &fakePublisher{})

	soon := time.Now().Add(48 * time.Hour)
	err := svc.CheckMatterChangesAndNotify(ChangeSet{
		MatterID:             7,
		MatterTitle:          "I-485 AOS",
		OldStatus:            "Pending",
		NewStatus:            "In Review",
		OldBillingStatus:     models.BillingStatusDue,
		NewBillingStatus:     models.BillingStatusPaid,
		NewEstimatedDeadline: &soon,
	})
	assert.NoError(t, err)

	// Status, deadline and billing each fire independently
	var types []string
	for len(svc.tasks) > 0 {
		types = append(types, (<-svc.tasks).Type)
	}
	assert.ElementsMatch(t, []string{
		models.NotificationTypeStatusChange,
		models.NotificationTypeDeadline,
		models.NotificationTypeBillingChange,
	}, types)
}

func TestDeadlineOutsideWindowIgnored(t *testing.T) {
	settings := &fakeSettingsRepo{
		recipients: []models.NotificationRecipient{{UserID: 1, InAppEnabled: true}},
	}
	svc := NewService(settings, &fakeNotificationRepo{}, mailqueue.New(okMailer{}), &fakePublisher{})

	far := time.Now().AddDate(0, 0, 30)
	err := svc.CheckMatterChangesAndNotify(ChangeSet{
		MatterID:             7,
		NewEstimatedDeadline: &far,
	})
	assert.NoError(t, err)
	assert.Empty(t, svc.tasks)
}

func TestPastDeadlineClassification(t *testing.T) {
	settings := &fakeSettingsRepo{
		recipients: []models.NotificationRecipient{{UserID: 1, InAppEnabled: true}},
	}
	svc := NewService(settings, &fakeNotificationRepo{}, mailqueue.New(okMailer{}), &fakePublisher{})

	past := time.Now().AddDate(0, 0, -2)
	err := svc.CheckMatterChangesAndNotify(ChangeSet{
		MatterID:          7,
		NewActualDeadline: &past,
	})
	assert.NoError(t, err)

	data := <-svc.tasks
	assert.Equal(t, models.NotificationTypePastDeadline, data.Type)
	assert.Equal(t, -2, *data.DaysUntilDeadline)
}

func TestSendNotificationBothChannels(t *testing.T) {
	settings := &fakeSettingsRepo{
		recipients: []models.NotificationRecipient{
			{UserID: 1, Name: "Jane", Email: "jane@firm.test", EmailEnabled: true, InAppEnabled: true},
			{UserID: 2, Name: "Sam", EmailEnabled: true, InAppEnabled: true}, // no address: in-app only
		},
	}
	repo := &fakeNotificationRepo{}
	publisher := &fakePublisher{}
	queue := mailqueue.New(okMailer{})
	svc := NewService(settings, repo, queue, publisher)

	err := svc.SendNotification(Data{
		Type:        models.NotificationTypeRFE,
		MatterID:    42,
		MatterTitle: "H-1B Transfer",
		NewValue:    "RFE Received",
	})
	assert.NoError(t, err)

	inApp := repo.byChannel(models.NotificationChannelInApp)
	assert.Len(t, inApp, 2)
	assert.False(t, inApp[0].IsRead)

	email := repo.byChannel(models.NotificationChannelEmail)
	assert.Len(t, email, 1)
	assert.True(t, email[0].IsRead) // delivered, not acknowledged

	assert.Len(t, publisher.events, 2)
	assert.Equal(t, realtime.EventCreated, publisher.events[0].Type)
}

func TestSendNotificationRespectsDisabledFlag(t *testing.T) {
	settings := &fakeSettingsRepo{
		settings: &models.NotificationSettings{InAppRFE: true}, // email RFE off
		recipients: []models.NotificationRecipient{
			{UserID: 1, Email: "jane@firm.test", EmailEnabled: true, InAppEnabled: true},
		},
	}
	repo := &fakeNotificationRepo{}
	queue := mailqueue.New(okMailer{})
	svc := NewService(settings, repo, queue, &fakePublisher{})

	err := svc.SendNotification(Data{Type: models.NotificationTypeRFE, MatterID: 1})
	assert.NoError(t, err)

	assert.Len(t, repo.byChannel(models.NotificationChannelInApp), 1)
	assert.Empty(t, repo.byChannel(models.NotificationChannelEmail))
	assert.Equal(t, mailqueue.Stats{}, queue.Stats())
}

func TestLegacyFlagMapping(t *testing.T) {
	settings := models.DefaultNotificationSettings()
	settings.EmailStatusChange = false
	settings.InAppDeadlines = false

	email, inApp := settingsFlag(settings, models.NotificationTypeWorkflowChange)
	assert.False(t, email, "workflowChange rides on the statusChange email flag")
	assert.True(t, inApp)

	email, inApp = settingsFlag(settings, models.NotificationTypePastDeadline)
	assert.True(t, email)
	assert.False(t, inApp, "pastDeadline rides on the deadlines in-app flag")
}

func TestRFEEndToEnd(t *testing.T) {
	// A matter moves "Case Evaluation" -> "RFE Received" with one
	// email recipient and RFE email enabled.
	settings := &fakeSettingsRepo{
		recipients: []models.NotificationRecipient{
			{UserID: 1, Name: "Jane", Email: "jane@firm.test", EmailEnabled: true},
		},
	}
	repo := &fakeNotificationRepo{}

	sent := make(chan string, 1)
	blocked := make(chan struct{})
	mailer := sendFunc(func(to, _, subject, _, _ string) error {
		<-blocked
		sent <- to + "|" + subject
		return nil
	})
	queue := mailqueue.New(mailer)
	svc := NewService(settings, repo, queue, &fakePublisher{})

	notificationType := DetectNotificationType("Case Evaluation", "RFE Received")
	assert.Equal(t, models.NotificationTypeRFE, notificationType)

	err := svc.SendNotification(Data{
		Type:        notificationType,
		MatterID:    9,
		MatterTitle: "I-140 EB2",
		OldValue:    "Case Evaluation",
		NewValue:    "RFE Received",
	})
	assert.NoError(t, err)

	// Exactly one queued email job and one email audit row
	stats := queue.Stats()
	assert.Equal(t, 1, stats.Pending+stats.Processing)
	email := repo.byChannel(models.NotificationChannelEmail)
	assert.Len(t, email, 1)
	assert.Contains(t, email[0].Subject, "RFE")

	// Let the mocked SMTP accept the message
	close(blocked)
	queue.Wait()
	assert.Equal(t, mailqueue.Stats{Completed: 1}, queue.Stats())
	assert.Contains(t, <-sent, "jane@firm.test")
}

type sendFunc func(to, toName, subject, htmlBody, textBody string) error

func (f sendFunc) Send(to, toName, subject, htmlBody, textBody string) error {
	return f(to, toName, subject, htmlBody, textBody)
}

type failingMailer struct{}

func (failingMailer) Send(_, _, _, _, _ string) error { return errors.New("smtp unavailable") }

func TestSendDeadlineReminderCreatesRecordSynchronously(t *testing.T) {
	repo := &fakeNotificationRepo{}
	queue := mailqueue.New(okMailer{})
	svc := NewService(&fakeSettingsRepo{
		recipients: []models.NotificationRecipient{{UserID: 4, Name: "Partner", InAppEnabled: true}},
	}, repo, queue, &fakePublisher{})

	days := 3
	err := svc.SendDeadlineReminder(Data{
		Type:              models.NotificationTypeDeadline,
		MatterID:          12,
		MatterTitle:       "I-140 for Acme",
		DaysUntilDeadline: &days,
	})
	assert.NoError(t, err)

	// Worker never started: the row must already be there so a repeat
	// deadline scan sees it
	inApp := repo.byChannel(models.NotificationChannelInApp)
	require.Len(t, inApp, 1)
	assert.Equal(t, uint(12), inApp[0].MatterID)
	assert.Equal(t, 3, *inApp[0].DaysBeforeDeadline)
}

func TestSendDeadlineReminderAuditsEmailAfterConfirmedSend(t *testing.T) {
	repo := &fakeNotificationRepo{}
	queue := mailqueue.New(okMailer{})
	svc := NewService(&fakeSettingsRepo{
		recipients: []models.NotificationRecipient{{UserID: 4, Email: "partner@firm.test", EmailEnabled: true}},
	}, repo, queue, nil)

	days := 1
	err := svc.SendDeadlineReminder(Data{
		Type:              models.NotificationTypeDeadline,
		MatterID:          12,
		DaysUntilDeadline: &days,
	})
	assert.NoError(t, err)
	queue.Wait()

	audits := repo.byChannel(models.NotificationChannelEmail)
	require.Len(t, audits, 1)
	assert.True(t, audits[0].IsRead)
}

func TestSendDeadlineReminderNoAuditOnPermanentFailure(t *testing.T) {
	repo := &fakeNotificationRepo{}
	queue := mailqueue.New(failingMailer{}).WithSleep(func(time.Duration) {})
	svc := NewService(&fakeSettingsRepo{
		recipients: []models.NotificationRecipient{{UserID: 4, Email: "partner@firm.test", EmailEnabled: true}},
	}, repo, queue, nil)

	days := 1
	err := svc.SendDeadlineReminder(Data{
		Type:              models.NotificationTypeDeadline,
		MatterID:          12,
		DaysUntilDeadline: &days,
	})
	assert.NoError(t, err)
	queue.Wait()

	assert.Empty(t, repo.byChannel(models.NotificationChannelEmail))
	assert.Equal(t, mailqueue.Stats{Failed: 1}, queue.Stats())
}

func TestDaysUntilAcrossSpringForward(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// DST starts March 9th; the wall-clock week is only 167 hours
	now := time.Date(2025, 3, 8, 9, 0, 0, 0, loc)
	deadline := time.Date(2025, 3, 15, 9, 0, 0, 0, loc)
	assert.Equal(t, 7, DaysUntil(now, deadline))

	fallBackNow := time.Date(2025, 11, 1, 9, 0, 0, 0, loc)
	fallBackDeadline := time.Date(2025, 11, 2, 9, 0, 0, 0, loc)
	assert.Equal(t, 1, DaysUntil(fallBackNow, fallBackDeadline))
}
