// Package resolver picks playable and thumbnail URLs for clips out of
// several optional fields. Pure and deterministic: no I/O, no side effects,
// same inputs always give the same outputs.
package resolver

import (
	"fmt"
	"strings"

	"github.com/clipforge/api/internal/model"
)

// timeFragmentMarker appears in a raw storage path only when the path is an
// already-synthesized fallback reference into the source, not a standalone
// asset. Such paths must fall through to the next tier.
const timeFragmentMarker = "#t="

// PlayableURL resolves the best available playback URL for a clip.
//
// Priority, first non-empty wins:
//  1. the clip's own processed asset URL
//  2. the clip's raw storage path, unless it embeds a time fragment
//  3. the source media's base URL with a synthesized #t=start,end fragment
//
// Returns ("", false) when no tier applies; the caller renders a
// "not yet available" state rather than a broken player.
func PlayableURL(clip *model.Clip, source *model.SourceMedia) (string, bool) {
	if clip.AssetURL != nil && *clip.AssetURL != "" {
		return *clip.AssetURL, true
	}

	if clip.StoragePath != nil && *clip.StoragePath != "" &&
		!strings.Contains(*clip.StoragePath, timeFragmentMarker) {
		return *clip.StoragePath, true
	}

	if source != nil && source.URL != "" {
		return fmt.Sprintf("%s#t=%s,%s", source.URL,
			formatOffset(clip.StartSeconds), formatOffset(clip.EndSeconds)), true
	}

	return "", false
}

// ThumbnailURL resolves the best available thumbnail for a clip: the clip's
// own thumbnail, then the source media's, then none (placeholder icon).
func ThumbnailURL(clip *model.Clip, source *model.SourceMedia) (string, bool) {
	if clip.ThumbnailURL != nil && *clip.ThumbnailURL != "" {
		return *clip.ThumbnailURL, true
	}

	if source != nil && source.ThumbnailURL != nil && *source.ThumbnailURL != "" {
		return *source.ThumbnailURL, true
	}

	return "", false
}

// Resolve builds the UI-facing record for one clip.
func Resolve(clip model.Clip, source *model.SourceMedia) model.ResolvedClip {
	playable, ok := PlayableURL(&clip, source)
	thumb, _ := ThumbnailURL(&clip, source)

	return model.ResolvedClip{
		Clip:         clip,
		PlayableURL:  playable,
		ThumbnailURL: thumb,
		Playable:     ok,
	}
}

// formatOffset renders a media-fragment time offset without a trailing
// decimal point for whole seconds ("10", "12.5").
func formatOffset(seconds float64) string {
	return fmt.Sprintf("%g", seconds)
}
