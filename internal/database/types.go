package database

import (
	"fmt"
	"time"

	"github.com/kozaktomas/facewatch/internal/facematch"
)

// Channel identifies how the image behind an event was acquired.
type Channel string

// Channel constants for the three acquisition paths.
const (
	ChannelUpload         Channel = "upload"
	ChannelSingleCapture  Channel = "single_capture"
	ChannelRealTimeCamera Channel = "real_time_camera"
)

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	switch c {
	case ChannelUpload, ChannelSingleCapture, ChannelRealTimeCamera:
		return true
	}
	return false
}

// ParseChannel parses a channel name. Empty input yields an empty channel.
func ParseChannel(s string) (Channel, error) {
	if s == "" {
		return "", nil
	}
	c := Channel(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown channel %q", s)
	}
	return c, nil
}

// MatchEvent is an immutable record of one matching outcome.
type MatchEvent struct {
	ID          int64     `json:"id"`
	Label       string    `json:"label"` // identity name, "Unknown" or "No face"
	ImageRef    string    `json:"image_ref"`
	Confidence  float64   `json:"confidence"`
	Channel     Channel   `json:"channel"`
	Watchlisted bool      `json:"watchlisted"`
	Embedding   []float32 `json:"-"` // face embedding, only stored by backends supporting similarity search
	CreatedAt   time.Time `json:"created_at"`
}

// EventTime normalizes t to the microsecond precision that the SQL backends
// store and drops the monotonic clock reading, so a persisted event reads
// back Equal to the one that was written.
func EventTime(t time.Time) time.Time {
	return t.Truncate(time.Microsecond)
}

// NewMatchEvent builds an event and derives the watchlisted flag from the
// label. The timestamp is normalized with EventTime.
func NewMatchEvent(label, imageRef string, confidence float64, channel Channel, at time.Time) MatchEvent {
	return MatchEvent{
		Label:       label,
		ImageRef:    imageRef,
		Confidence:  confidence,
		Channel:     channel,
		Watchlisted: facematch.IsWatchlisted(label),
		CreatedAt:   EventTime(at),
	}
}

// EventFilter narrows event listings. Zero values mean no filtering.
type EventFilter struct {
	Limit           int
	Channel         Channel
	Label           string
	WatchlistedOnly bool
	Since           time.Time
}

// SimilarEvent is an event found by face embedding similarity.
type SimilarEvent struct {
	Event    MatchEvent `json:"event"`
	Distance float64    `json:"distance"`
}

// Identity is a watchlist record managed outside this service.
type Identity struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	ImageKey    string    `json:"image_key"` // artifact store key of the reference image
	AddedAt     time.Time `json:"added_at"`
}
