// Package facematch holds the face matching core shared by the streaming and
// single-shot pipelines: distance metrics, nearest identity lookup and
// per-identity cooldown gating.
package facematch

import (
	"context"
	"image"
)

// Outcome labels recorded for events that did not match a watchlist identity.
const (
	LabelUnknown = "Unknown"
	LabelNoFace  = "No face"
)

// Identity is one reference embedding of a watchlisted person. A person with
// several reference faces appears as several identities sharing a name.
type Identity struct {
	Name      string
	Embedding []float32
}

// Face is a face found in an image by a Detector.
type Face struct {
	Region    image.Rectangle
	Embedding []float32
	Score     float64 // detector confidence, informational
}

// Detector finds faces in an encoded image and computes their embeddings.
// Faces are returned in detection order.
type Detector interface {
	DetectFaces(ctx context.Context, imageData []byte) ([]Face, error)
}

// MatchResult is the outcome of comparing one face against the reference set.
type MatchResult struct {
	Matched    bool    `json:"matched"`
	Identity   string  `json:"identity,omitempty"`
	Distance   float64 `json:"distance"`
	Confidence float64 `json:"confidence"`
}

// Label returns the identity name for a match and LabelUnknown otherwise.
func (r MatchResult) Label() string {
	if r.Matched {
		return r.Identity
	}
	return LabelUnknown
}

// IsWatchlisted reports whether an event label names a watchlist identity.
func IsWatchlisted(label string) bool {
	return label != "" && label != LabelUnknown && label != LabelNoFace
}
