package mailqueue

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeMailer struct {
	mu       sync.Mutex
	sent     []string
	failFor  map[string]int // recipient -> remaining failures
	failWith error
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{
		failFor:  make(map[string]int),
		failWith: errors.New("smtp unavailable"),
	}
}

func (m *fakeMailer) Send(to, _, subject, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if remaining := m.failFor[to]; remaining > 0 {
		m.failFor[to] = remaining - 1
		return m.failWith
	}
	m.sent = append(m.sent, to+"|"+subject)
	return nil
}

func (m *fakeMailer) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func newTestQueue(mailer Mailer) *Queue {
	// No real retry delays in tests
	return New(mailer).WithSleep(func(time.Duration) {})
}

func TestAddProcessesJob(t *testing.T) {
	mailer := newFakeMailer()
	q := newTestQueue(mailer)

	job := q.Add(&Job{
		Type:    JobTypeNotification,
		To:      "partner@firm.test",
		Subject: "Status changed",
	})
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, DefaultMaxAttempts, job.MaxAttempts)

	q.Wait()

	assert.Equal(t, 1, mailer.sentCount())
	assert.Equal(t, JobStatusCompleted, q.GetJob(job.ID).Status)
	assert.Equal(t, Stats{Completed: 1}, q.Stats())
}

func TestRetryThenSucceed(t *testing.T) {
	mailer := newFakeMailer()
	mailer.failFor["partner@firm.test"] = 2
	q := newTestQueue(mailer)

	job := q.Add(&Job{To: "partner@firm.test", Subject: "Deadline in 3 days"})
	q.Wait()

	got := q.GetJob(job.ID)
	assert.Equal(t, JobStatusCompleted, got.Status)
	assert.Equal(t, 3, got.Attempts)
	assert.Equal(t, 1, mailer.sentCount())
}

func TestPermanentFailureAfterMaxAttempts(t *testing.T) {
	mailer := newFakeMailer()
	mailer.failFor["partner@firm.test"] = 100
	q := newTestQueue(mailer)

	job := q.Add(&Job{To: "partner@firm.test", Subject: "Deadline"})
	q.Wait()

	got := q.GetJob(job.ID)
	assert.Equal(t, JobStatusFailed, got.Status)
	assert.Equal(t, DefaultMaxAttempts, got.Attempts)
	assert.Equal(t, "smtp unavailable", got.ErrorMsg)
	assert.Equal(t, Stats{Failed: 1}, q.Stats())
}

func TestOnSuccessRunsOnlyAfterConfirmedSend(t *testing.T) {
	mailer := newFakeMailer()
	mailer.failFor["down@firm.test"] = 100
	q := newTestQueue(mailer)

	delivered := 0
	failed := 0
	q.Add(&Job{To: "partner@firm.test", Subject: "Deadline", OnSuccess: func() { delivered++ }})
	q.Add(&Job{To: "down@firm.test", Subject: "Deadline", OnSuccess: func() { failed++ }})
	q.Wait()

	assert.Equal(t, 1, delivered)
	assert.Zero(t, failed, "a permanently failed job must not confirm delivery")
}

func TestPruneRemovesOldTerminalJobs(t *testing.T) {
	q := newTestQueue(newFakeMailer())

	old := time.Now().Add(-2 * time.Hour)
	q.jobs["stale"] = &Job{ID: "stale", Status: JobStatusCompleted, CompletedAt: &old}
	recent := time.Now()
	q.jobs["fresh"] = &Job{ID: "fresh", Status: JobStatusCompleted, CompletedAt: &recent}

	q.prune()

	assert.Nil(t, q.GetJob("stale"))
	assert.NotNil(t, q.GetJob("fresh"))
}

func TestConcurrentAddsDrainOnce(t *testing.T) {
	mailer := newFakeMailer()
	q := newTestQueue(mailer)

	for i := 0; i < 10; i++ {
		q.Add(&Job{To: "team@firm.test", Subject: "n"})
	}
	q.Wait()

	assert.Equal(t, 10, mailer.sentCount())
	assert.Equal(t, Stats{Completed: 10}, q.Stats())
}
