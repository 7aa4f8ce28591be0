package mailqueue

import (
	"time"
)

// JobType defines the type of email job
type JobType string

const (
	JobTypeDeadlineReminder JobType = "deadline_reminder"
	JobTypeNotification     JobType = "notification"
)

// JobStatus defines the status of an email job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job is one queued email. Jobs live in memory only: a process
// restart drops anything pending, which is an accepted limitation.
type Job struct {
	ID          string
	Type        JobType
	To          string
	ToName      string
	Subject     string
	HTMLBody    string
	TextBody    string
	Status      JobStatus
	Attempts    int
	MaxAttempts int
	ErrorMsg    string
	CreatedAt   time.Time
	CompletedAt *time.Time

	// OnSuccess, when set, runs exactly once after a confirmed send.
	// A permanently failed job never invokes it.
	OnSuccess func()
}

// IsTerminal reports whether the job will never run again.
func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// MarkAsProcessing updates the job status to processing
func (j *Job) MarkAsProcessing() {
	j.Status = JobStatusProcessing
	j.Attempts++
}

// MarkAsCompleted updates the job status to completed
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// MarkAsFailed updates the job status to failed
func (j *Job) MarkAsFailed(errorMsg string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	j.ErrorMsg = errorMsg
}

// Stats is a point-in-time snapshot of queue occupancy.
type Stats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}
