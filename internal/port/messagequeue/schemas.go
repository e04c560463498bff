package messagequeue

// JobRequestPayload is the schema for analysis.job.requested messages.
// The job and repository rows are persisted before publish, so the
// worker can re-read state and treat redeliveries as no-ops.
type JobRequestPayload struct {
	JobID        string `json:"job_id"`
	RepositoryID string `json:"repository_id"`
	Owner        string `json:"owner"`
	Name         string `json:"name"`
}
