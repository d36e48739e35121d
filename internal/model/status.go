package model

// JobStatus represents the lifecycle state of a download job. The string
// values are what clients see in status responses.
type JobStatus string

const (
	// StatusPending means the job is accepted but no work has started
	StatusPending JobStatus = "pending"

	// StatusDownloading means the resolver is fetching the media
	StatusDownloading JobStatus = "downloading"

	// StatusCompleted means the artifact was written successfully
	StatusCompleted JobStatus = "completed"

	// StatusError means the job failed; Job.Error carries the reason
	StatusError JobStatus = "error"
)

// String returns the string representation of JobStatus
func (s JobStatus) String() string {
	return string(s)
}

// IsActive returns true if the job may still make progress
func (s JobStatus) IsActive() bool {
	return s == StatusPending || s == StatusDownloading
}

// IsTerminal returns true if the job reached a final state. Terminal jobs
// never transition again.
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}
