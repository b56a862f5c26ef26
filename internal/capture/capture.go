// Package capture reads encoded frames from camera devices.
package capture

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/kozaktomas/facewatch/internal/config"
)

var (
	// ErrTransient marks a frame read failure worth retrying.
	ErrTransient = errors.New("capture: transient read failure")
	// ErrDeviceLost marks a device that will not produce frames again.
	ErrDeviceLost = errors.New("capture: device lost")
	// ErrNotOpen is returned by ReadFrame before Open or after Release.
	ErrNotOpen = errors.New("capture: device not open")
)

// Frame is one encoded image read from a device.
type Frame struct {
	Data       []byte // encoded image, JPEG for the bundled devices
	Seq        uint64
	CapturedAt time.Time
}

// Device is a camera that yields frames between Open and Release.
// A Device is used by a single goroutine.
type Device interface {
	Open(ctx context.Context) error
	// ReadFrame blocks until the next frame. Errors wrap ErrTransient or
	// ErrDeviceLost; any other error is treated as fatal by callers.
	ReadFrame(ctx context.Context) (Frame, error)
	// Release frees the device. It is safe to call more than once.
	Release() error
}

// New creates the device for the configured source. HTTP(S) sources are read
// as MJPEG streams, anything else is handed to ffmpeg.
func New(cfg config.CameraConfig, logger *slog.Logger) Device {
	if cfg.IsHTTPSource() {
		return NewHTTPDevice(cfg.Source, nil, logger)
	}
	return NewFFmpegDevice(cfg, logger)
}
