package scheduler

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MatterDesk/MatterDesk/app/models"
	"github.com/MatterDesk/MatterDesk/app/repository"
	"github.com/MatterDesk/MatterDesk/internal/pkg/mailqueue"
	"github.com/MatterDesk/MatterDesk/internal/pkg/notification"
)

type fakeMatters struct {
	repository.MatterRepository
	window []models.Matter
}

func (f *fakeMatters) ListDeadlineWindow(maxDays int) ([]models.Matter, error) {
	return f.window, nil
}

type fakeNotifications struct {
	repository.NotificationRepository
	sent map[string]bool // "matterID/days"
}

func (f *fakeNotifications) ExistsForDeadline(matterID uint, daysBefore int, _ time.Time) (bool, error) {
	return f.sent[key(matterID, daysBefore)], nil
}

func key(matterID uint, days int) string {
	return fmt.Sprintf("%d/%d", matterID, days)
}

type captureNotifier struct {
	configured bool
	dispatched []notification.Data
}

func (n *captureNotifier) SendDeadlineReminder(data notification.Data) error {
	n.dispatched = append(n.dispatched, data)
	return nil
}

func (n *captureNotifier) HasConfiguredRecipients() (bool, error) {
	return n.configured, nil
}

func deadlineIn(now time.Time, days int) *time.Time {
	d := now.AddDate(0, 0, days)
	return &d
}

func TestCheckDeadlinesRaisesOnlyAtThresholds(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	matters := &fakeMatters{window: []models.Matter{
		{ID: 1, Title: "seven", EstimatedDeadline: deadlineIn(now, 7)},
		{ID: 2, Title: "five", EstimatedDeadline: deadlineIn(now, 5)},
		{ID: 3, Title: "three", EstimatedDeadline: deadlineIn(now, 3)},
		{ID: 4, Title: "one", EstimatedDeadline: deadlineIn(now, 1)},
		{ID: 5, Title: "today", EstimatedDeadline: deadlineIn(now, 0)},
		{ID: 6, Title: "none", EstimatedDeadline: nil},
	}}
	notifier := &captureNotifier{configured: true}
	checker := NewDeadlineChecker(matters, &fakeNotifications{sent: map[string]bool{}}, notifier).
		WithNow(func() time.Time { return now })

	raised, err := checker.CheckDeadlines()
	require.NoError(t, err)
	assert.Equal(t, 4, raised)

	var titles []string
	for _, d := range notifier.dispatched {
		titles = append(titles, d.MatterTitle)
		assert.Equal(t, models.NotificationTypeDeadline, d.Type)
		require.NotNil(t, d.DaysUntilDeadline)
	}
	assert.ElementsMatch(t, []string{"seven", "three", "one", "today"}, titles)
}

func TestCheckDeadlinesOverdueEveryDay(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	matters := &fakeMatters{window: []models.Matter{
		{ID: 1, Title: "late", EstimatedDeadline: deadlineIn(now, -4)},
	}}
	notifier := &captureNotifier{configured: true}
	checker := NewDeadlineChecker(matters, &fakeNotifications{sent: map[string]bool{}}, notifier).
		WithNow(func() time.Time { return now })

	raised, err := checker.CheckDeadlines()
	require.NoError(t, err)
	require.Equal(t, 1, raised)
	assert.Equal(t, models.NotificationTypePastDeadline, notifier.dispatched[0].Type)
	assert.Equal(t, -4, *notifier.dispatched[0].DaysUntilDeadline)
}

func TestCheckDeadlinesDedupesPerDay(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	matters := &fakeMatters{window: []models.Matter{
		{ID: 1, Title: "already", EstimatedDeadline: deadlineIn(now, 3)},
		{ID: 2, Title: "fresh", EstimatedDeadline: deadlineIn(now, 3)},
	}}
	notifier := &captureNotifier{configured: true}
	checker := NewDeadlineChecker(matters, &fakeNotifications{
		sent: map[string]bool{key(1, 3): true},
	}, notifier).WithNow(func() time.Time { return now })

	raised, err := checker.CheckDeadlines()
	require.NoError(t, err)
	assert.Equal(t, 1, raised)
	require.Len(t, notifier.dispatched, 1)
	assert.Equal(t, "fresh", notifier.dispatched[0].MatterTitle)
}

// recordingNotifications serves the dedupe lookup from the records it
// has actually stored, like the real repository does.
type recordingNotifications struct {
	repository.NotificationRepository
	records []*models.Notification
}

func (f *recordingNotifications) Create(n *models.Notification) error {
	n.ID = uint(len(f.records) + 1)
	f.records = append(f.records, n)
	return nil
}

func (f *recordingNotifications) ExistsForDeadline(matterID uint, daysBefore int, _ time.Time) (bool, error) {
	for _, r := range f.records {
		if r.MatterID == matterID && r.DaysBeforeDeadline != nil && *r.DaysBeforeDeadline == daysBefore {
			return true, nil
		}
	}
	return false, nil
}

type reminderSettings struct {
	repository.SettingsRepository
	recipients []models.NotificationRecipient
}

func (f *reminderSettings) GetNotificationSettings() (*models.NotificationSettings, error) {
	return models.DefaultNotificationSettings(), nil
}

func (f *reminderSettings) ListRecipients() ([]models.NotificationRecipient, error) {
	return f.recipients, nil
}

type noopMailer struct{}

func (noopMailer) Send(_, _, _, _, _ string) error { return nil }

// Two scans through a real notification service must still yield one
// record per (matter, threshold): the reminder has to land before the
// second scan's existence check runs.
func TestCheckDeadlinesIdempotentAcrossScans(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	matters := &fakeMatters{window: []models.Matter{
		{ID: 1, Title: "soon", EstimatedDeadline: deadlineIn(now, 3)},
	}}
	store := &recordingNotifications{}
	settings := &reminderSettings{recipients: []models.NotificationRecipient{
		{UserID: 9, Name: "Partner", InAppEnabled: true},
	}}
	svc := notification.NewService(settings, store, mailqueue.New(noopMailer{}), nil)

	checker := NewDeadlineChecker(matters, store, svc).
		WithNow(func() time.Time { return now })

	raised, err := checker.CheckDeadlines()
	require.NoError(t, err)
	assert.Equal(t, 1, raised)

	raised, err = checker.CheckDeadlines()
	require.NoError(t, err)
	assert.Zero(t, raised)

	require.Len(t, store.records, 1)
	assert.Equal(t, uint(1), store.records[0].MatterID)
	assert.Equal(t, 3, *store.records[0].DaysBeforeDeadline)
}

func TestCheckDeadlinesSkipsWithoutRecipients(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	matters := &fakeMatters{window: []models.Matter{
		{ID: 1, Title: "pending", EstimatedDeadline: deadlineIn(now, 1)},
	}}
	notifier := &captureNotifier{configured: false}
	checker := NewDeadlineChecker(matters, &fakeNotifications{sent: map[string]bool{}}, notifier).
		WithNow(func() time.Time { return now })

	raised, err := checker.CheckDeadlines()
	require.NoError(t, err)
	assert.Zero(t, raised)
	assert.Empty(t, notifier.dispatched)
}
