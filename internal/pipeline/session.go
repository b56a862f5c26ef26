package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/kozaktomas/facewatch/internal/annotate"
	"github.com/kozaktomas/facewatch/internal/capture"
	"github.com/kozaktomas/facewatch/internal/constants"
	"github.com/kozaktomas/facewatch/internal/database"
	"github.com/kozaktomas/facewatch/internal/facematch"
	"github.com/kozaktomas/facewatch/internal/logging"
)

// State is the lifecycle state of a streaming session.
type State string

// Session states.
const (
	StateStopped State = "stopped"
	StateRunning State = "running"
)

const (
	persistTimeout = 10 * time.Second
	stopTimeout    = 5 * time.Second
)

// SessionConfig wires a streaming session.
type SessionConfig struct {
	Device     capture.Device
	Detector   facematch.Detector
	References ReferenceSource
	Matcher    *facematch.Matcher
	Tolerance  float64
	Cooldown   *facematch.CooldownTracker
	Sinks

	Logger *slog.Logger
	// ReleaseOnDisconnect stops the session when the last preview subscriber leaves.
	ReleaseOnDisconnect bool
	// MaxWidth and MaxHeight bound the preview frame size. Zero keeps the frame size.
	MaxWidth, MaxHeight int
	// Banner is drawn on preview frames. Empty uses annotate.DefaultBanner.
	Banner string

	FrameInterval time.Duration // defaults to constants.FrameInterval
	RetryDelay    time.Duration // defaults to constants.RetryDelay
	Now           func() time.Time
}

// Status is a point-in-time view of a session.
type Status struct {
	State       State     `json:"state"`
	StartedAt   time.Time `json:"started_at,omitzero"`
	Frames      uint64    `json:"frames"`
	Events      uint64    `json:"events"`
	Suppressed  uint64    `json:"suppressed"`
	Errors      uint64    `json:"errors"`
	Viewers     int       `json:"viewers"`
	LastEventAt time.Time `json:"last_event_at,omitzero"`
	LastError   string    `json:"last_error,omitempty"`
}

// Session owns one capture device and runs the detection loop while started.
// All methods are safe for concurrent use.
type Session struct {
	cfg    SessionConfig
	rec    recorder
	logger *slog.Logger

	mu          sync.Mutex
	state       State
	cancel      context.CancelFunc
	done        chan struct{}
	err         error
	subscribers map[chan []byte]struct{}
	stats       Status
}

// NewSession creates a stopped session.
func NewSession(cfg SessionConfig) *Session {
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = constants.FrameInterval
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = constants.RetryDelay
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Banner == "" {
		cfg.Banner = annotate.DefaultBanner
	}
	if cfg.Cooldown == nil {
		cfg.Cooldown = facematch.NewCooldownTracker(constants.DefaultCooldown)
	}
	logger := logging.Component(cfg.Logger, "session")
	return &Session{
		cfg:         cfg,
		rec:         recorder{Sinks: cfg.Sinks, logger: logger},
		logger:      logger,
		state:       StateStopped,
		subscribers: make(map[chan []byte]struct{}),
	}
}

// Start begins capturing. Starting a running session is a no-op. Start
// returns ErrSessionDraining while a previous loop is still shutting down.
func (s *Session) Start() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRunning {
		return StateRunning, nil
	}
	if s.done != nil {
		select {
		case <-s.done:
		default:
			return StateStopped, ErrSessionDraining
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.state = StateRunning
	s.cancel = cancel
	s.done = make(chan struct{})
	s.err = nil
	s.stats = Status{StartedAt: s.cfg.Now()}

	go s.run(ctx, cancel, s.done)

	s.logger.Info("session started")
	return StateRunning, nil
}

// Stop ends capturing and waits for the loop to release the device or for
// ctx to expire, whichever comes first. Stopping a stopped session is a no-op.
func (s *Session) Stop(ctx context.Context) State {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return StateStopped
	}
	s.state = StateStopped
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	select {
	case <-done:
		s.logger.Info("session stopped")
	case <-ctx.Done():
		s.logger.Warn("session stop timed out, device still releasing")
	}
	return StateStopped
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status returns the current state and counters.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.State = s.state
	st.Viewers = len(s.subscribers)
	return st
}

// Done is closed when the current loop has exited and released the device.
// It returns a closed channel for a session that never started.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return s.done
}

// Err returns the error that ended the last loop, nil after a requested stop.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Session) run(ctx context.Context, cancel context.CancelFunc, done chan struct{}) {
	var runErr error
	defer func() {
		cancel()
		if err := s.cfg.Device.Release(); err != nil {
			s.logger.Warn("failed to release capture device", "error", err)
		}
		s.finish(done, runErr)
	}()

	if err := s.cfg.Device.Open(ctx); err != nil {
		if ctx.Err() == nil {
			runErr = fmt.Errorf("%w: open device: %w", ErrFatalCapture, err)
			s.logger.Error("failed to open capture device", "error", err)
		}
		return
	}
	s.cfg.Metrics.SetRunning(true)

	for {
		if ctx.Err() != nil {
			return
		}

		frame, err := s.cfg.Device.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, capture.ErrTransient) {
				s.logger.Debug("transient frame read failure", "error", err)
				s.cfg.Metrics.IncFrameError("transient")
				if !sleep(ctx, s.cfg.RetryDelay) {
					return
				}
				continue
			}
			runErr = fmt.Errorf("%w: %w", ErrFatalCapture, err)
			s.logger.Error("capture device failed", "error", err)
			return
		}

		s.processFrame(ctx, frame)
		if !sleep(ctx, s.cfg.FrameInterval) {
			return
		}
	}
}

// finish marks the loop as exited. The session may have been stopped by Stop
// already; a loop ending on its own moves it to stopped here.
func (s *Session) finish(done chan struct{}, err error) {
	s.mu.Lock()
	s.state = StateStopped
	s.err = err
	if err != nil {
		s.stats.LastError = err.Error()
		s.stats.Errors++
	}
	for ch := range s.subscribers {
		close(ch)
	}
	clear(s.subscribers)
	s.mu.Unlock()

	s.cfg.Metrics.SetRunning(false)
	s.cfg.Metrics.SetViewers(0)
	close(done)
}

func (s *Session) processFrame(ctx context.Context, frame capture.Frame) {
	start := time.Now()

	img, _, err := annotate.Decode(frame.Data)
	if err != nil {
		s.logger.Debug("skipping undecodable frame", "seq", frame.Seq, "error", err)
		s.cfg.Metrics.IncFrameError("decode")
		return
	}

	faces, err := s.cfg.Detector.DetectFaces(ctx, frame.Data)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("face detection failed", "seq", frame.Seq, "error", err)
		s.cfg.Metrics.IncFrameError("detect")
		s.countFrame()
		s.broadcast(frame.Data)
		return
	}

	ref := s.cfg.References.Reference()
	overlays := make([]annotate.Overlay, 0, len(faces))
	for _, face := range faces {
		res := s.cfg.Matcher.Identify(ref, face.Embedding, s.cfg.Tolerance)
		overlays = append(overlays, annotate.Overlay{
			Region:     face.Region,
			Matched:    res.Matched,
			Identity:   res.Identity,
			Confidence: res.Confidence,
		})
		if res.Matched {
			s.cfg.Metrics.IncMatch(string(database.ChannelRealTimeCamera))
			s.handleMatch(ctx, img, face, res)
		}
	}

	s.countFrame()
	s.cfg.Metrics.ObserveFrame(len(faces), time.Since(start))

	if !s.hasSubscribers() {
		return
	}
	preview := annotate.Fit(annotate.Preview(img, overlays, s.cfg.Banner), s.cfg.MaxWidth, s.cfg.MaxHeight)
	data, err := annotate.EncodeJPEG(preview, constants.JPEGQuality)
	if err != nil {
		s.logger.Warn("failed to encode preview frame", "error", err)
		return
	}
	s.broadcast(data)
}

// handleMatch records a match unless the identity is cooling down. A failed
// recording is reverted in the cooldown tracker so the next frame retries.
func (s *Session) handleMatch(ctx context.Context, img image.Image, face facematch.Face, res facematch.MatchResult) {
	now := database.EventTime(s.cfg.Now())
	if !s.cfg.Cooldown.Allow(res.Identity, now) {
		s.cfg.Metrics.IncSuppressed()
		s.mu.Lock()
		s.stats.Suppressed++
		s.mu.Unlock()
		return
	}

	// a stop request must not abandon evidence already captured
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := s.record(persistCtx, img, face, res, now); err != nil {
		s.cfg.Cooldown.Forget(res.Identity, now)
		s.cfg.Metrics.IncPersistError()
		s.logger.Error("failed to record match", "identity", res.Identity, "error", err)
		s.mu.Lock()
		s.stats.Errors++
		s.stats.LastError = err.Error()
		s.mu.Unlock()
		return
	}

	s.logger.Info("watchlist match recorded", "identity", res.Identity, "confidence", res.Confidence)
	s.mu.Lock()
	s.stats.Events++
	s.stats.LastEventAt = now
	s.mu.Unlock()
}

func (s *Session) record(ctx context.Context, img image.Image, face facematch.Face, res facematch.MatchResult, now time.Time) error {
	evidence := annotate.Evidence(img, face.Region, res.Identity, res.Confidence, now)
	data, err := annotate.EncodeJPEG(evidence, constants.JPEGQuality)
	if err != nil {
		return fmt.Errorf("encode evidence: %w", err)
	}

	key := EvidenceKey(res.Identity, now)
	if err := s.rec.storeArtifact(ctx, key, data); err != nil {
		return err
	}

	ev := database.NewMatchEvent(res.Identity, key, res.Confidence, database.ChannelRealTimeCamera, now)
	ev.Embedding = face.Embedding
	if err := s.rec.persist(ctx, &ev); err != nil {
		if delErr := s.cfg.Artifacts.Delete(ctx, key); delErr != nil {
			s.logger.Warn("failed to remove orphaned evidence", "key", key, "error", delErr)
		}
		return err
	}
	return nil
}

func (s *Session) countFrame() {
	s.mu.Lock()
	s.stats.Frames++
	s.mu.Unlock()
}

// sleep waits for d or until ctx ends. It reports whether the wait completed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
