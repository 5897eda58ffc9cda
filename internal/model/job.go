package model

import "time"

// Job represents one remote clip-generation request as tracked client-side.
type Job struct {
	ID           string   `json:"id"`
	AccountID    string   `json:"accountId"`
	MediaID      string   `json:"mediaId"`
	RemoteJobID  string   `json:"remoteJobId,omitempty"` // absent until submission succeeds
	State        JobState `json:"state"`
	RemoteStatus string   `json:"remoteStatus,omitempty"` // last observed status string
	Attempt      int      `json:"attempt"`
	Generation   uint64   `json:"generation"`
	ClipCount    int      `json:"clipCount"`
	Error        *string  `json:"error,omitempty"`
	// SettlementWarning is set when the job completed but the credit
	// deduction could not be recorded. Non-fatal: clips stay usable.
	SettlementWarning string     `json:"settlementWarning,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	CompletedAt       *time.Time `json:"completedAt,omitempty"`
	Canceled          bool       `json:"canceled"`
}

// JobEvent is one observation emitted by the lifecycle controller. Events
// for a job are strictly ordered; a terminal event is always the last one.
type JobEvent struct {
	Type       JobEventType
	Generation uint64
	Attempt    int
	StageIndex int
	ClipCount  int    // set on Completed
	Reason     string // set on Failed
	// SettlementWarning rides on a Completed event when the deduction
	// failed after the clips were produced.
	SettlementWarning string
}

// GenerateClipsRequest starts a generation job for an uploaded source asset.
type GenerateClipsRequest struct {
	MediaID string `json:"mediaId" validate:"required,uuid"`
}

// GenerateClipsResponse is returned when a job was accepted. Completion is
// always reported through the processing view, never here.
type GenerateClipsResponse struct {
	JobID     string    `json:"jobId"`
	State     JobState  `json:"state"`
	CreatedAt time.Time `json:"createdAt"`
}

// CancelJobResponse acknowledges cancellation of observation.
type CancelJobResponse struct {
	JobID    string   `json:"jobId"`
	State    JobState `json:"state"`
	Canceled bool     `json:"canceled"`
}
