package model

import (
	"time"
)

// Job represents a single tracked download request. A Job is created when a
// submission is accepted and is mutated only by the runner goroutine that
// owns it; everyone else reads snapshots.
type Job struct {
	ID        string    `json:"download_id"`
	URL       string    `json:"url"`
	Status    JobStatus `json:"status"`
	Progress  float64   `json:"progress"` // 0 to 100, non-decreasing while downloading
	Filename  string    `json:"filename,omitempty"`
	Title     string    `json:"title,omitempty"`
	Thumbnail string    `json:"thumbnail,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns an independent copy of the job. Stores hand clones to
// pollers so a reader never shares memory with the writer.
func (j *Job) Clone() *Job {
	c := *j
	return &c
}

// DisplayTitle returns the title when known, otherwise the source URL.
func (j *Job) DisplayTitle() string {
	if j.Title != "" {
		return j.Title
	}
	return j.URL
}
