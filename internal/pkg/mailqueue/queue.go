package mailqueue

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
)

const (
	// DefaultMaxAttempts is how often one job is tried before it is
	// marked permanently failed.
	DefaultMaxAttempts = 3

	// drainConcurrency bounds how many jobs one drain iteration
	// dispatches at the same time.
	drainConcurrency = 3

	// retryDelay is the fixed wait before the next drain iteration
	// after a failed send.
	retryDelay = 5 * time.Second

	// pruneAge is how long terminal jobs are kept for stats before
	// they are garbage-collected.
	pruneAge = time.Hour
)

// Mailer sends one rendered email.
type Mailer interface {
	Send(to, toName, subject, htmlBody, textBody string) error
}

// Queue is the in-process email delivery queue: bounded-concurrency
// dispatch with per-job retry. Constructed explicitly so tests can run
// isolated instances instead of sharing a module-level singleton.
type Queue struct {
	mailer Mailer
	sleep  func(time.Duration)

	mu       sync.Mutex
	jobs     map[string]*Job
	pending  []string
	draining bool
	stopped  bool
	wg       sync.WaitGroup
}

// New creates an email queue that delivers through the given mailer.
func New(mailer Mailer) *Queue {
	return &Queue{
		mailer: mailer,
		sleep:  time.Sleep,
		jobs:   make(map[string]*Job),
	}
}

// Stop prevents further drain iterations and waits for in-flight
// sends to finish. Pending jobs are dropped, as on a process restart.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.stopped = true
	q.mu.Unlock()
	q.wg.Wait()
}

// Add enqueues a job and triggers a drain if none is running.
func (q *Queue) Add(job *Job) *Job {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.MaxAttempts == 0 {
		job.MaxAttempts = DefaultMaxAttempts
	}
	job.Status = JobStatusPending
	job.CreatedAt = time.Now()

	q.mu.Lock()
	q.jobs[job.ID] = job
	q.pending = append(q.pending, job.ID)
	start := !q.draining && !q.stopped
	if start {
		q.draining = true
		q.wg.Add(1)
	}
	q.mu.Unlock()

	if start {
		go q.drain()
	}
	return job
}

// drain processes pending jobs until the queue is empty. The draining
// flag guards against concurrent drains.
func (q *Queue) drain() {
	defer q.wg.Done()

	for {
		q.prune()

		q.mu.Lock()
		if q.stopped || len(q.pending) == 0 {
			q.draining = false
			q.mu.Unlock()
			return
		}

		n := drainConcurrency
		if n > len(q.pending) {
			n = len(q.pending)
		}
		batch := make([]*Job, 0, n)
		for _, id := range q.pending[:n] {
			if job, ok := q.jobs[id]; ok {
				job.MarkAsProcessing()
				batch = append(batch, job)
			}
		}
		q.pending = q.pending[n:]
		q.mu.Unlock()

		var inner sync.WaitGroup
		anyFailed := false
		var failMu sync.Mutex
		for _, job := range batch {
			inner.Add(1)
			go func(job *Job) {
				defer inner.Done()
				if q.process(job) {
					return
				}
				failMu.Lock()
				anyFailed = true
				failMu.Unlock()
			}(job)
		}
		inner.Wait()

		if anyFailed {
			q.sleep(retryDelay)
		}
	}
}

// process dispatches one job and returns whether it succeeded.
func (q *Queue) process(job *Job) bool {
	err := q.mailer.Send(job.To, job.ToName, job.Subject, job.HTMLBody, job.TextBody)

	if err == nil {
		q.mu.Lock()
		job.MarkAsCompleted()
		onSuccess := job.OnSuccess
		q.mu.Unlock()
		// Outside the lock: the callback may touch the database
		if onSuccess != nil {
			onSuccess()
		}
		return true
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if job.Attempts < job.MaxAttempts {
		log.Warnf("[MailQueue] Job %s attempt %d/%d failed, requeueing: %v", job.ID, job.Attempts, job.MaxAttempts, err)
		job.Status = JobStatusPending
		job.ErrorMsg = err.Error()
		q.pending = append(q.pending, job.ID)
	} else {
		log.Errorf("[MailQueue] Job %s permanently failed after %d attempts: %v", job.ID, job.Attempts, err)
		job.MarkAsFailed(err.Error())
	}
	return false
}

// prune garbage-collects terminal jobs older than an hour.
func (q *Queue) prune() {
	cutoff := time.Now().Add(-pruneAge)

	q.mu.Lock()
	defer q.mu.Unlock()
	for id, job := range q.jobs {
		if job.IsTerminal() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(q.jobs, id)
		}
	}
}

// GetJob returns a job by ID, or nil if unknown or already pruned.
func (q *Queue) GetJob(id string) *Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.jobs[id]
}

// Stats returns a snapshot of the current queue occupancy.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	var stats Stats
	for _, job := range q.jobs {
		switch job.Status {
		case JobStatusPending:
			stats.Pending++
		case JobStatusProcessing:
			stats.Processing++
		case JobStatusCompleted:
			stats.Completed++
		case JobStatusFailed:
			stats.Failed++
		}
	}
	return stats
}

// Wait blocks until the current drain finishes. Intended for tests.
func (q *Queue) Wait() {
	q.wg.Wait()
}

// WithSleep overrides the retry delay sleeper, for tests.
func (q *Queue) WithSleep(sleep func(time.Duration)) *Queue {
	q.sleep = sleep
	return q
}
