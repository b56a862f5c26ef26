// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Face matching constants
const (
	// DefaultTolerance is the maximum embedding distance still accepted as a match.
	// Lower values = stricter matching
	DefaultTolerance = 0.5

	// DefaultMetric is the distance metric used when MATCH_METRIC is unset
	DefaultMetric = "euclidean"

	// DefaultCooldown is the minimum time between two recorded streaming events
	// for the same identity
	DefaultCooldown = 10 * time.Second
)

// Capture constants
const (
	// DefaultFrameWidth and DefaultFrameHeight are the capture size hints passed to devices
	DefaultFrameWidth  = 640
	DefaultFrameHeight = 480

	// DefaultFrameRate is the capture frame rate hint
	DefaultFrameRate = 30

	// FrameInterval is the pause between loop iterations of a streaming session
	FrameInterval = 30 * time.Millisecond

	// RetryDelay is the pause after a transient frame read failure
	RetryDelay = 100 * time.Millisecond

	// MaxFrameSize caps a single MJPEG frame read from a device (8MB)
	MaxFrameSize = 8 << 20

	// DefaultFFmpegPath is the ffmpeg binary looked up in PATH
	DefaultFFmpegPath = "ffmpeg"
)

// Artifact constants
const (
	// DetectionsPrefix is the storage directory for streaming evidence frames
	DetectionsPrefix = "detections"

	// ScansPrefix is the storage directory for single-shot submissions
	ScansPrefix = "scans"

	// JPEGQuality is the quality used for evidence and preview frames
	JPEGQuality = 85

	// ArtifactTimeFormat is the timestamp layout embedded in artifact keys
	ArtifactTimeFormat = "20060102_150405"
)

// Handler constants
const (
	// DefaultEventLimit is the default number of events returned by list endpoints
	DefaultEventLimit = 100

	// MaxEventLimit caps the number of events a single list request returns
	MaxEventLimit = 1000

	// DefaultSimilarLimit is the default limit for similar event search results
	DefaultSimilarLimit = 20

	// MaxUploadSize is the maximum file upload size in bytes (32MB)
	MaxUploadSize = 32 << 20

	// MaxImagePixels caps the decoded size of any image or frame (40 megapixels)
	MaxImagePixels = 40_000_000
)

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for event channels
	EventChannelBuffer = 100

	// FrameChannelBuffer is the buffer size for preview frame subscribers.
	// Slow consumers drop frames instead of stalling the capture loop.
	FrameChannelBuffer = 2
)

// HNSW index parameters for face embeddings
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	HNSWMaxNeighbors = 16

	// HNSWEfSearch is the search candidate pool size.
	HNSWEfSearch = 100
)
