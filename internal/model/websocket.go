package model

// WebSocket message types
const (
	WSMessageTypeProgress = "progress"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSProgressMessage represents a progress update for a generation job
type WSProgressMessage struct {
	Type       string   `json:"type"`
	JobID      string   `json:"jobId"`
	Percent    int      `json:"percent"`
	State      JobState `json:"state"`
	StageLabel string   `json:"stageLabel,omitempty"`
}

// WSCompleteMessage represents job completion
type WSCompleteMessage struct {
	Type      string `json:"type"`
	JobID     string `json:"jobId"`
	ClipCount int    `json:"clipCount"`
	// Warning carries a non-fatal settlement failure; the clips are fine.
	Warning string `json:"warning,omitempty"`
}

// WSErrorMessage represents a terminal failure or timeout
type WSErrorMessage struct {
	Type  string  `json:"type"`
	JobID string  `json:"jobId"`
	Error WSError `json:"error"`
}

// WSError represents error details
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
