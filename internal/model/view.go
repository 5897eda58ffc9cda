package model

// Render-state snapshots exposed to the UI layer. These three views are the
// orchestrator's entire outward surface; every terminal state maps onto one
// of them.

// IntakeView backs the media-selection screen.
type IntakeView struct {
	SelectedMedia *SourceMedia `json:"selectedMedia,omitempty"`
	Error         string       `json:"error,omitempty"`
}

// ProcessingView backs the waiting screen while a job is in flight. Percent
// and stage are cosmetic estimates, not ground truth.
type ProcessingView struct {
	JobID             string   `json:"jobId"`
	State             JobState `json:"state"`
	Percent           int      `json:"percent"`
	StageLabel        string   `json:"stageLabel"`
	StagesCompleted   []string `json:"stagesCompleted"`
	Error             string   `json:"error,omitempty"`
	SettlementWarning string   `json:"settlementWarning,omitempty"`
}

// GalleryView backs the results screen once a job has completed.
type GalleryView struct {
	JobID string         `json:"jobId,omitempty"`
	Clips []ResolvedClip `json:"clips"`
}
