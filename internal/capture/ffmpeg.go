package capture

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kozaktomas/facewatch/internal/config"
	"github.com/kozaktomas/facewatch/internal/constants"
	"github.com/kozaktomas/facewatch/internal/logging"
)

// FFmpegDevice captures frames by running ffmpeg and splitting its MJPEG
// output. It handles V4L2 devices, RTSP streams and video files.
type FFmpegDevice struct {
	cfg    config.CameraConfig
	logger *slog.Logger

	// command builds the process, replaced in tests
	command func(ctx context.Context, name string, args ...string) *exec.Cmd

	cmd    *exec.Cmd
	cancel context.CancelFunc
	frames chan []byte
	done   chan struct{}
	stderr *limitedBuffer

	mu      sync.Mutex
	readErr error
	seq     uint64
}

// NewFFmpegDevice creates an ffmpeg backed device.
func NewFFmpegDevice(cfg config.CameraConfig, logger *slog.Logger) *FFmpegDevice {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = constants.DefaultFFmpegPath
	}
	return &FFmpegDevice{
		cfg:     cfg,
		logger:  logging.Component(logger, "capture-ffmpeg"),
		command: exec.CommandContext,
	}
}

// Args returns the ffmpeg command line for the configured source.
func (d *FFmpegDevice) Args() []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin"}

	switch {
	case strings.HasPrefix(d.cfg.Source, "/dev/video"):
		args = append(args, "-f", "v4l2")
		if d.cfg.Width > 0 && d.cfg.Height > 0 {
			args = append(args, "-video_size", fmt.Sprintf("%dx%d", d.cfg.Width, d.cfg.Height))
		}
		if d.cfg.FPS > 0 {
			args = append(args, "-framerate", strconv.Itoa(d.cfg.FPS))
		}
	case strings.HasPrefix(d.cfg.Source, "rtsp://"):
		args = append(args, "-rtsp_transport", "tcp")
	}
	args = append(args, "-i", d.cfg.Source)

	var filters []string
	if d.cfg.Width > 0 && d.cfg.Height > 0 {
		filters = append(filters, fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease", d.cfg.Width, d.cfg.Height))
	}
	if d.cfg.FPS > 0 {
		filters = append(filters, "fps="+strconv.Itoa(d.cfg.FPS))
	}
	if len(filters) > 0 {
		args = append(args, "-vf", strings.Join(filters, ","))
	}

	return append(args, "-f", "image2pipe", "-c:v", "mjpeg", "-q:v", "5", "pipe:1")
}

// Open starts ffmpeg. The process is stopped by Release or when ctx ends.
func (d *FFmpegDevice) Open(ctx context.Context) error {
	if d.cmd != nil {
		return nil
	}
	procCtx, cancel := context.WithCancel(ctx)
	cmd := d.command(procCtx, d.cfg.FFmpegPath, d.Args()...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("%w: stdout pipe: %w", ErrDeviceLost, err)
	}
	d.stderr = &limitedBuffer{max: 4096}
	cmd.Stderr = d.stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("%w: start ffmpeg: %w", ErrDeviceLost, err)
	}

	d.cmd = cmd
	d.cancel = cancel
	d.frames = make(chan []byte, constants.FrameChannelBuffer)
	d.done = make(chan struct{})
	d.readErr = nil
	go d.pump(stdout)

	d.logger.Info("ffmpeg capture started", "source", d.cfg.Source, "pid", cmd.Process.Pid)
	return nil
}

func (d *FFmpegDevice) pump(stdout io.Reader) {
	defer close(d.done)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 256<<10), constants.MaxFrameSize)
	scanner.Split(SplitJPEG)
	for scanner.Scan() {
		frame := append([]byte(nil), scanner.Bytes()...)
		select {
		case d.frames <- frame:
		default:
			// consumer is behind, drop the oldest frame
			select {
			case <-d.frames:
			default:
			}
			d.frames <- frame
		}
	}

	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	d.mu.Lock()
	d.readErr = err
	d.mu.Unlock()
}

// ReadFrame returns the next frame produced by ffmpeg.
func (d *FFmpegDevice) ReadFrame(ctx context.Context) (Frame, error) {
	if d.cmd == nil {
		return Frame{}, ErrNotOpen
	}

	select {
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case data := <-d.frames:
		return d.frame(data), nil
	case <-d.done:
		// drain frames produced before the pipe closed
		select {
		case data := <-d.frames:
			return d.frame(data), nil
		default:
		}
		d.mu.Lock()
		err := d.readErr
		d.mu.Unlock()
		if errors.Is(err, bufio.ErrTooLong) {
			return Frame{}, fmt.Errorf("%w: %w", ErrDeviceLost, err)
		}
		return Frame{}, fmt.Errorf("%w: ffmpeg output ended: %w%s", ErrDeviceLost, err, d.stderrSuffix())
	}
}

// Release stops ffmpeg and waits for it to exit.
func (d *FFmpegDevice) Release() error {
	if d.cmd == nil {
		return nil
	}
	d.cancel()
	<-d.done
	err := d.cmd.Wait()
	d.logger.Info("ffmpeg capture stopped", "source", d.cfg.Source)
	d.cmd = nil

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// killed by the cancel above
		return nil
	}
	return err
}

func (d *FFmpegDevice) frame(data []byte) Frame {
	d.seq++
	return Frame{Data: data, Seq: d.seq, CapturedAt: time.Now()}
}

func (d *FFmpegDevice) stderrSuffix() string {
	if d.stderr == nil {
		return ""
	}
	msg := strings.TrimSpace(d.stderr.String())
	if msg == "" {
		return ""
	}
	return " (" + msg + ")"
}

// limitedBuffer keeps the first max bytes written to it.
type limitedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	max int
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.max - b.buf.Len(); room > 0 {
		b.buf.Write(p[:min(len(p), room)])
	}
	return len(p), nil
}
