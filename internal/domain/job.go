package domain

// JobStatus is the backend-reported state of a submission job.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Terminal reports whether polling should stop at this status.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ResultItem is one produced item of a completed job (a posted tweet).
type ResultItem struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// JobState is a single status check result.
type JobState struct {
	Status        JobStatus    `json:"status"`
	Items         []ResultItem `json:"tweets,omitempty"`
	Transcription string       `json:"transcription,omitempty"`
	Error         string       `json:"error,omitempty"`
}

// Outcome is the final state of a polled job.
type Outcome struct {
	JobID string
	JobState
}
