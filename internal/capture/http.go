package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/kozaktomas/facewatch/internal/constants"
	"github.com/kozaktomas/facewatch/internal/logging"
)

// HTTPDevice reads an MJPEG (multipart/x-mixed-replace) stream over HTTP,
// as served by IP cameras and webcam bridges. Endpoints returning a single
// image are polled once per ReadFrame.
type HTTPDevice struct {
	url    string
	client *http.Client
	logger *slog.Logger

	body     io.ReadCloser
	reader   *multipart.Reader
	snapshot bool
	seq      uint64
}

// NewHTTPDevice creates a device for url. A nil client uses a client without
// a timeout since the stream response never ends.
func NewHTTPDevice(url string, client *http.Client, logger *slog.Logger) *HTTPDevice {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPDevice{
		url:    url,
		client: client,
		logger: logging.Component(logger, "capture-http"),
	}
}

// Open connects to the stream. The connection lives until ctx ends or
// Release is called.
func (d *HTTPDevice) Open(ctx context.Context) error {
	resp, err := d.get(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceLost, err)
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		resp.Body.Close()
		return fmt.Errorf("%w: invalid content type: %w", ErrDeviceLost, err)
	}

	switch {
	case strings.HasPrefix(mediaType, "multipart/"):
		boundary := strings.TrimPrefix(params["boundary"], "--")
		if boundary == "" {
			resp.Body.Close()
			return fmt.Errorf("%w: multipart stream without boundary", ErrDeviceLost)
		}
		d.body = resp.Body
		d.reader = multipart.NewReader(resp.Body, boundary)
		d.snapshot = false
	case strings.HasPrefix(mediaType, "image/"):
		// snapshot endpoint, re-fetched on every read
		resp.Body.Close()
		d.snapshot = true
	default:
		resp.Body.Close()
		return fmt.Errorf("%w: unsupported content type %q", ErrDeviceLost, mediaType)
	}

	d.logger.Info("camera stream opened", "url", d.url, "snapshot", d.snapshot)
	return nil
}

// ReadFrame returns the next JPEG from the stream.
func (d *HTTPDevice) ReadFrame(ctx context.Context) (Frame, error) {
	if d.snapshot {
		return d.readSnapshot(ctx)
	}
	if d.reader == nil {
		return Frame{}, ErrNotOpen
	}

	part, err := d.reader.NextPart()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Frame{}, ctxErr
		}
		return Frame{}, fmt.Errorf("%w: %w", ErrDeviceLost, err)
	}
	defer part.Close()

	data, err := readLimited(part)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Frame{}, ctxErr
		}
		return Frame{}, err
	}
	return d.frame(data), nil
}

// Release closes the stream connection.
func (d *HTTPDevice) Release() error {
	d.reader = nil
	d.snapshot = false
	if d.body == nil {
		return nil
	}
	err := d.body.Close()
	d.body = nil
	return err
}

func (d *HTTPDevice) readSnapshot(ctx context.Context) (Frame, error) {
	resp, err := d.get(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Frame{}, ctxErr
		}
		return Frame{}, fmt.Errorf("%w: %w", ErrTransient, err)
	}
	defer resp.Body.Close()

	data, err := readLimited(resp.Body)
	if err != nil {
		return Frame{}, err
	}
	return d.frame(data), nil
}

func (d *HTTPDevice) get(ctx context.Context) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("camera returned status %d", resp.StatusCode)
	}
	return resp, nil
}

func (d *HTTPDevice) frame(data []byte) Frame {
	d.seq++
	return Frame{Data: data, Seq: d.seq, CapturedAt: time.Now()}
}

// readLimited reads one frame body, rejecting empty and oversized frames as
// transient failures.
func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, constants.MaxFrameSize+1))
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: %w", ErrDeviceLost, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrTransient, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrTransient)
	}
	if len(data) > constants.MaxFrameSize {
		return nil, fmt.Errorf("%w: frame exceeds %d bytes", ErrTransient, constants.MaxFrameSize)
	}
	return data, nil
}
