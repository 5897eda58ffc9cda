package model

import "time"

// Clip is one generated short-form output artifact. Rows materialize on the
// remote side while a job runs; this service only ever reads them.
type Clip struct {
	ID            string     `json:"id"`
	JobID         *string    `json:"jobId,omitempty"` // nil for manually curated clips
	SourceMediaID string     `json:"sourceMediaId"`
	Title         string     `json:"title"`
	StartSeconds  float64    `json:"startSeconds"`
	EndSeconds    float64    `json:"endSeconds"`
	AssetURL      *string    `json:"assetUrl,omitempty"`     // processed vertical render
	StoragePath   *string    `json:"storagePath,omitempty"`  // raw storage location
	ThumbnailURL  *string    `json:"thumbnailUrl,omitempty"` // precomputed thumbnail
	ViralityScore float64    `json:"viralityScore"`
	Status        ClipStatus `json:"status"`
	DeletedAt     *time.Time `json:"deletedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// SourceMedia is a pre-existing uploaded asset owned by the media library.
// Read-only here; its base URL is the resolver's fallback of last resort.
type SourceMedia struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	URL             string  `json:"url"`
	ThumbnailURL    *string `json:"thumbnailUrl,omitempty"`
	DurationSeconds float64 `json:"durationSeconds"`
}

// ResolvedClip pairs a raw clip with the resolver's output so the UI never
// has to pick between optional fields itself.
type ResolvedClip struct {
	Clip         Clip   `json:"clip"`
	PlayableURL  string `json:"playableUrl,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	// Playable is false when no tier of the fallback chain produced a URL;
	// the UI renders a "not yet available" placeholder instead of a player.
	Playable bool `json:"playable"`
}
