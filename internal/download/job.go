package download

import (
	"time"

	"github.com/eagleeye/backend/internal/media"
)

// Job statuses. A job moves pending -> downloading -> completed or failed
// and never leaves a terminal status.
const (
	StatusPending     = "pending"
	StatusDownloading = "downloading"
	StatusCompleted   = "completed"
	StatusFailed      = "failed"
)

// Job is one download request and its lifecycle state. Progress is a
// fraction in [0, 1] and never decreases over the life of the job.
type Job struct {
	ID          string     `json:"id"`
	UserID      string     `json:"-"`
	URL         string     `json:"url"`
	Title       string     `json:"title,omitempty"`
	Kind        media.Kind `json:"kind"`
	Quality     string     `json:"quality"`
	Status      string     `json:"status"`
	Progress    float64    `json:"progress"`
	FilePath    string     `json:"-"`
	ArchiveKey  string     `json:"-"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Terminal reports whether the job has reached a final status.
func (j *Job) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

var validTransitions = map[string][]string{
	StatusPending:     {StatusDownloading, StatusFailed},
	StatusDownloading: {StatusCompleted, StatusFailed},
	StatusCompleted:   nil,
	StatusFailed:      nil,
}

// CanTransition reports whether a job in status from may move to status to.
func CanTransition(from, to string) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
