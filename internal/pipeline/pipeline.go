// Package pipeline runs the streaming and single-shot face matching
// pipelines: frames in, match events and evidence artifacts out.
package pipeline

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/facewatch/internal/constants"
	"github.com/kozaktomas/facewatch/internal/facematch"
)

var (
	// ErrMalformedInput is returned for submissions that are not a decodable image.
	ErrMalformedInput = errors.New("malformed image input")
	// ErrNotRunning is returned by StreamFrames on a stopped session.
	ErrNotRunning = errors.New("session is not running")
	// ErrSessionDraining is returned by Start while the previous loop is still
	// releasing the capture device.
	ErrSessionDraining = errors.New("session is still releasing the capture device")
	// ErrFatalCapture wraps the device error that ended a session.
	ErrFatalCapture = errors.New("fatal capture failure")
)

// ReferenceSource supplies the watchlist used for one matching call.
type ReferenceSource interface {
	Reference() facematch.Reference
}

// Outcome names used in metrics.
const (
	outcomeMatch   = "match"
	outcomeUnknown = "unknown"
	outcomeNoFace  = "no_face"
)

func outcomeOf(label string) string {
	switch label {
	case facematch.LabelNoFace:
		return outcomeNoFace
	case facematch.LabelUnknown:
		return outcomeUnknown
	default:
		return outcomeMatch
	}
}

// shortID returns the first 8 hex characters of a random UUID.
func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// EvidenceKey returns the artifact key for a streaming match, e.g.
// detections/match_jiri_novak_20240301_120000_1a2b3c4d.jpg.
func EvidenceKey(identity string, at time.Time) string {
	name := fmt.Sprintf("match_%s_%s_%s.jpg", facematch.Slug(identity), at.Format(constants.ArtifactTimeFormat), shortID())
	return path.Join(constants.DetectionsPrefix, name)
}

// ScanKey returns the artifact key for a single-shot submission in the given
// image format.
func ScanKey(at time.Time, format string) string {
	ext := format
	switch format {
	case "jpeg", "":
		ext = "jpg"
	}
	name := fmt.Sprintf("scan_%s_%s.%s", at.Format(constants.ArtifactTimeFormat), shortID(), ext)
	return path.Join(constants.ScansPrefix, name)
}
