package messagequeue

// JobEnvelope is the part of every mail.jobs.* message the broker layer
// inspects before handing it to the worker.
type JobEnvelope struct {
	JobID string `json:"job_id"`
	Kind  string `json:"kind"`
}
