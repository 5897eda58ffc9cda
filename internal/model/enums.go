package model

// JobState is the client-side lifecycle state of a generation job.
type JobState string

const (
	JobStateNotStarted JobState = "not_started"
	JobStateSubmitting JobState = "submitting"
	JobStatePolling    JobState = "polling"
	JobStateCompleted  JobState = "completed"
	JobStateFailed     JobState = "failed"
	JobStateTimedOut   JobState = "timed_out"
)

// IsTerminal returns true if the state represents a final state.
func (s JobState) IsTerminal() bool {
	switch s {
	case JobStateCompleted, JobStateFailed, JobStateTimedOut:
		return true
	default:
		return false
	}
}

// Remote worker status values as reported by the job status endpoint.
const (
	RemoteStatusProcessing = "processing"
	RemoteStatusCompleted  = "completed"
	RemoteStatusFailed     = "failed"
)

// Clip status
type ClipStatus string

const (
	ClipStatusPending ClipStatus = "pending"
	ClipStatusReady   ClipStatus = "ready"
	ClipStatusFailed  ClipStatus = "failed"
)

// JobEventType classifies events emitted by the lifecycle controller.
type JobEventType string

const (
	JobEventProgressed JobEventType = "progressed"
	JobEventCompleted  JobEventType = "completed"
	JobEventFailed     JobEventType = "failed"
	JobEventTimedOut   JobEventType = "timed_out"
)

// IsTerminal returns true for events after which no further events follow.
func (t JobEventType) IsTerminal() bool {
	return t == JobEventCompleted || t == JobEventFailed || t == JobEventTimedOut
}
