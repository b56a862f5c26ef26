package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kozaktomas/facewatch/internal/annotate"
	"github.com/kozaktomas/facewatch/internal/capture"
	"github.com/kozaktomas/facewatch/internal/database"
	"github.com/kozaktomas/facewatch/internal/database/mock"
	"github.com/kozaktomas/facewatch/internal/facematch"
	"github.com/kozaktomas/facewatch/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sessionFixture struct {
	session  *Session
	device   *fakeDevice
	detector *fakeDetector
	events   *mock.MockEventRepository
	alerts   *recordingAlerts
	feed     *EventFeed
	root     string
}

func newSessionFixture(t *testing.T, device *fakeDevice, faces ...facematch.Face) *sessionFixture {
	t.Helper()
	store := newLocalStore(t)
	f := &sessionFixture{
		device:   device,
		detector: &fakeDetector{faces: faces},
		events:   mock.NewMockEventRepository(),
		alerts:   &recordingAlerts{},
		feed:     NewEventFeed(),
		root:     store.Root(),
	}
	f.session = NewSession(SessionConfig{
		Device:     device,
		Detector:   f.detector,
		References: testRefs,
		Matcher:    facematch.NewMatcher(facematch.Euclidean, false),
		Tolerance:  0.5,
		Cooldown:   facematch.NewCooldownTracker(10 * time.Second),
		Sinks: Sinks{
			Events:    f.events,
			Artifacts: store,
			Alerts:    f.alerts,
			Feed:      f.feed,
		},
		Logger:              logging.Discard(),
		ReleaseOnDisconnect: true,
		FrameInterval:       time.Millisecond,
		RetryDelay:          time.Millisecond,
	})
	return f
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session loop did not exit")
	}
}

func stop(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Stop(ctx)
	waitDone(t, s)
}

func TestSession_StartStopIdempotent(t *testing.T) {
	f := newSessionFixture(t, &fakeDevice{after: "hang"})
	s := f.session

	assert.Equal(t, StateStopped, s.State())
	assert.Equal(t, StateStopped, s.Stop(context.Background()), "stopping a stopped session is a no-op")

	state, err := s.Start()
	require.NoError(t, err)
	assert.Equal(t, StateRunning, state)

	state, err = s.Start()
	require.NoError(t, err)
	assert.Equal(t, StateRunning, state)

	stop(t, s)
	assert.Equal(t, StateStopped, s.State())
	assert.Equal(t, StateStopped, s.Stop(context.Background()))

	assert.Equal(t, int32(1), f.device.opens.Load(), "second Start must not open the device again")
	assert.Equal(t, int32(1), f.device.releases.Load())
	assert.NoError(t, s.Err())
}

func TestSession_RestartAfterStop(t *testing.T) {
	f := newSessionFixture(t, &fakeDevice{after: "hang"})

	for range 3 {
		_, err := f.session.Start()
		require.NoError(t, err)
		stop(t, f.session)
	}
	assert.Equal(t, int32(3), f.device.opens.Load())
	assert.Equal(t, int32(3), f.device.releases.Load())
}

func TestSession_CooldownSuppressesRepeatedMatches(t *testing.T) {
	frame := testJPEG(t)
	f := newSessionFixture(t, &fakeDevice{script: frames(frame, 5), after: "lost"}, aliceFace)

	_, err := f.session.Start()
	require.NoError(t, err)
	waitDone(t, f.session)

	events := f.events.Events()
	require.Len(t, events, 1, "five frames within the cooldown window yield one event")
	ev := events[0]
	assert.Equal(t, "Alice", ev.Label)
	assert.Equal(t, database.ChannelRealTimeCamera, ev.Channel)
	assert.True(t, ev.Watchlisted)
	assert.InDelta(t, 90.0, ev.Confidence, 0.001)
	assert.Regexp(t, `^detections/match_alice_\d{8}_\d{6}_[0-9a-f]{8}\.jpg$`, ev.ImageRef)

	evidence, err := os.ReadFile(filepath.Join(f.root, ev.ImageRef))
	require.NoError(t, err)
	_, format, err := annotate.Decode(evidence)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)

	st := f.session.Status()
	assert.Equal(t, uint64(5), st.Frames)
	assert.Equal(t, uint64(1), st.Events)
	assert.Equal(t, uint64(4), st.Suppressed)
	assert.Equal(t, 1, f.alerts.count())
}

func TestSession_MultipleIdentitiesInOneFrame(t *testing.T) {
	frame := testJPEG(t)
	f := newSessionFixture(t, &fakeDevice{script: frames(frame, 2), after: "lost"}, aliceFace, unknownFace, bobFace)

	_, err := f.session.Start()
	require.NoError(t, err)
	waitDone(t, f.session)

	var labels []string
	for _, ev := range f.events.Events() {
		labels = append(labels, ev.Label)
	}
	assert.ElementsMatch(t, []string{"Alice", "Bob"}, labels, "unknown faces are never recorded by the stream")
}

func TestSession_FatalCaptureEndsSession(t *testing.T) {
	f := newSessionFixture(t, &fakeDevice{after: "lost"})

	_, err := f.session.Start()
	require.NoError(t, err)
	waitDone(t, f.session)

	assert.Equal(t, StateStopped, f.session.State())
	assert.ErrorIs(t, f.session.Err(), ErrFatalCapture)
	assert.ErrorIs(t, f.session.Err(), capture.ErrDeviceLost)
	assert.Equal(t, int32(1), f.device.releases.Load())
	assert.NotEmpty(t, f.session.Status().LastError)
}

func TestSession_OpenFailure(t *testing.T) {
	f := newSessionFixture(t, &fakeDevice{openErr: errors.New("no such device")})

	_, err := f.session.Start()
	require.NoError(t, err)
	waitDone(t, f.session)

	assert.ErrorIs(t, f.session.Err(), ErrFatalCapture)
	assert.Equal(t, int32(1), f.device.releases.Load())
}

func TestSession_TransientErrorsAreRetried(t *testing.T) {
	frame := testJPEG(t)
	device := &fakeDevice{
		script: []readResult{
			{err: capture.ErrTransient},
			{data: []byte("not a jpeg")},
			{err: capture.ErrTransient},
			{data: frame},
		},
		after: "lost",
	}
	f := newSessionFixture(t, device, aliceFace)

	_, err := f.session.Start()
	require.NoError(t, err)
	waitDone(t, f.session)

	assert.Equal(t, 1, f.events.Len())
	assert.Equal(t, uint64(1), f.session.Status().Frames, "undecodable frames are skipped")
}

func TestSession_PersistFailureIsSurfacedAndRetried(t *testing.T) {
	frame := testJPEG(t)
	f := newSessionFixture(t, &fakeDevice{script: frames(frame, 3), after: "lost"}, aliceFace)
	f.events.CreateError = errors.New("database unavailable")

	_, err := f.session.Start()
	require.NoError(t, err)
	waitDone(t, f.session)

	st := f.session.Status()
	assert.Equal(t, uint64(0), st.Events)
	// one failure per frame since the cooldown entry is reverted, plus the fatal capture error
	assert.Equal(t, uint64(4), st.Errors)
	assert.Equal(t, uint64(0), st.Suppressed)
	assert.Equal(t, 0, f.events.Len())
	assert.Equal(t, 0, f.alerts.count())

	entries, err := os.ReadDir(filepath.Join(f.root, "detections"))
	if err == nil {
		assert.Empty(t, entries, "evidence of unrecorded events is removed")
	}
}

func TestSession_PersistFailureMessage(t *testing.T) {
	frame := testJPEG(t)
	f := newSessionFixture(t, &fakeDevice{script: frames(frame, 1), after: "hang"}, aliceFace)
	f.events.CreateError = errors.New("database unavailable")

	_, err := f.session.Start()
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return f.session.Status().Errors > 0
	}, 5*time.Second, 5*time.Millisecond)

	assert.Contains(t, f.session.Status().LastError, "database unavailable")
	assert.Equal(t, StateRunning, f.session.State(), "persistence failures do not stop the loop")
	stop(t, f.session)
}

func TestSession_FeedReceivesEvents(t *testing.T) {
	frame := testJPEG(t)
	f := newSessionFixture(t, &fakeDevice{script: frames(frame, 1), after: "lost"}, bobFace)
	ch := f.feed.Subscribe()
	defer f.feed.Unsubscribe(ch)

	_, err := f.session.Start()
	require.NoError(t, err)

	select {
	case ev := <-ch:
		assert.Equal(t, "Bob", ev.Label)
		assert.NotZero(t, ev.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("no event on the feed")
	}
	waitDone(t, f.session)
}

func TestSession_DetectorErrorKeepsLoopRunning(t *testing.T) {
	frame := testJPEG(t)
	f := newSessionFixture(t, &fakeDevice{script: frames(frame, 3), after: "lost"})
	f.detector.err = errors.New("embedding service unavailable")

	_, err := f.session.Start()
	require.NoError(t, err)
	waitDone(t, f.session)

	assert.Equal(t, uint64(3), f.session.Status().Frames)
	assert.Equal(t, 0, f.events.Len())
	f.detector.mu.Lock()
	assert.Equal(t, 3, f.detector.calls)
	f.detector.mu.Unlock()
}

func TestSession_StartWhileDraining(t *testing.T) {
	gate := make(chan struct{})
	f := newSessionFixture(t, &fakeDevice{after: "hang", releaseGate: gate})

	_, err := f.session.Start()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Equal(t, StateStopped, f.session.Stop(ctx))

	_, err = f.session.Start()
	assert.ErrorIs(t, err, ErrSessionDraining)

	close(gate)
	waitDone(t, f.session)

	_, err = f.session.Start()
	require.NoError(t, err)
	stop(t, f.session)
}

func TestSession_StreamFrames(t *testing.T) {
	frame := testJPEG(t)
	f := newSessionFixture(t, &fakeDevice{script: frames(frame, 1), after: "loop"}, aliceFace, unknownFace)

	_, err := f.session.StreamFrames(context.Background())
	assert.ErrorIs(t, err, ErrNotRunning)

	_, err = f.session.Start()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := f.session.StreamFrames(ctx)
	require.NoError(t, err)

	select {
	case data := <-ch:
		img, format, err := annotate.Decode(data)
		require.NoError(t, err)
		assert.Equal(t, "jpeg", format)
		assert.Equal(t, 160, img.Bounds().Dx())
	case <-time.After(5 * time.Second):
		t.Fatal("no preview frame received")
	}
	assert.Equal(t, 1, f.session.Status().Viewers)

	// last viewer leaving releases the camera
	cancel()
	waitDone(t, f.session)
	assert.Equal(t, StateStopped, f.session.State())
	assert.Equal(t, int32(1), f.device.releases.Load())

	for range ch {
		// drain until closed
	}
}

func TestSession_StreamClosesOnStop(t *testing.T) {
	frame := testJPEG(t)
	f := newSessionFixture(t, &fakeDevice{script: frames(frame, 1), after: "loop"})

	_, err := f.session.Start()
	require.NoError(t, err)
	ch, err := f.session.StreamFrames(context.Background())
	require.NoError(t, err)

	stop(t, f.session)

	timeout := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("subscriber channel not closed after stop")
		}
	}
}

func TestWriteMultipart(t *testing.T) {
	ch := make(chan []byte, 2)
	ch <- []byte("one")
	ch <- []byte("two")
	close(ch)

	var buf bytes.Buffer
	require.NoError(t, WriteMultipart(&buf, ch))
	assert.Equal(t,
		"--frame\r\nContent-Type: image/jpeg\r\n\r\none\r\n--frame\r\nContent-Type: image/jpeg\r\n\r\ntwo\r\n",
		buf.String())
	assert.Equal(t, "multipart/x-mixed-replace; boundary=frame", MultipartContentType)
}

func TestEvidenceKey(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 30, 45, 0, time.UTC)
	key := EvidenceKey("Jiří Novák", at)
	assert.Regexp(t, `^detections/match_jiri_novak_20240301_123045_[0-9a-f]{8}\.jpg$`, key)
	assert.NotEqual(t, key, EvidenceKey("Jiří Novák", at), "keys are unique within the same second")

	assert.Regexp(t, `^scans/scan_20240301_123045_[0-9a-f]{8}\.jpg$`, ScanKey(at, "jpeg"))
	assert.Regexp(t, `^scans/scan_20240301_123045_[0-9a-f]{8}\.png$`, ScanKey(at, "png"))
}
