package pipeline

import (
	"context"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/kozaktomas/facewatch/internal/annotate"
	"github.com/kozaktomas/facewatch/internal/capture"
	"github.com/kozaktomas/facewatch/internal/database"
	"github.com/kozaktomas/facewatch/internal/facematch"
	"github.com/kozaktomas/facewatch/internal/notify"
	"github.com/kozaktomas/facewatch/internal/storage"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// testJPEG returns a small encoded frame.
func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 160, 120))
	for y := range 120 {
		for x := range 160 {
			img.Set(x, y, color.RGBA{R: 90, G: 90, B: 90, A: 255})
		}
	}
	data, err := annotate.EncodeJPEG(img, 80)
	require.NoError(t, err)
	return data
}

type staticRefs facematch.IdentitySlice

func (r staticRefs) Reference() facematch.Reference {
	return facematch.IdentitySlice(r)
}

var testRefs = staticRefs{
	{Name: "Alice", Embedding: []float32{0, 0}},
	{Name: "Bob", Embedding: []float32{1, 1}},
}

var (
	aliceFace   = facematch.Face{Region: image.Rect(40, 70, 80, 110), Embedding: []float32{0.1, 0}}
	bobFace     = facematch.Face{Region: image.Rect(90, 70, 130, 110), Embedding: []float32{1, 1.1}}
	unknownFace = facematch.Face{Region: image.Rect(10, 70, 30, 110), Embedding: []float32{5, 5}}
)

// fakeDetector returns the same faces for every image.
type fakeDetector struct {
	mu    sync.Mutex
	faces []facematch.Face
	err   error
	calls int
}

func (d *fakeDetector) DetectFaces(context.Context, []byte) ([]facematch.Face, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	return d.faces, d.err
}

// fakeDevice replays scripted reads. After the script it either blocks
// until the context ends (hang), repeats the last frame (loop) or reports
// the device as lost.
type fakeDevice struct {
	script []readResult
	after  string // "hang", "loop" or "lost"

	releaseGate chan struct{} // when set, Release blocks until closed

	mu       sync.Mutex
	pos      int
	opens    atomic.Int32
	releases atomic.Int32
	openErr  error
}

type readResult struct {
	data []byte
	err  error
}

func (d *fakeDevice) Open(context.Context) error {
	d.opens.Add(1)
	return d.openErr
}

func (d *fakeDevice) ReadFrame(ctx context.Context) (capture.Frame, error) {
	d.mu.Lock()
	if d.pos < len(d.script) {
		r := d.script[d.pos]
		d.pos++
		d.mu.Unlock()
		if r.err != nil {
			return capture.Frame{}, r.err
		}
		return capture.Frame{Data: r.data, Seq: uint64(d.pos)}, nil
	}
	var last []byte
	if n := len(d.script); n > 0 {
		last = d.script[n-1].data
	}
	d.mu.Unlock()

	switch d.after {
	case "loop":
		return capture.Frame{Data: last}, nil
	case "hang":
		<-ctx.Done()
		return capture.Frame{}, ctx.Err()
	default:
		return capture.Frame{}, capture.ErrDeviceLost
	}
}

func (d *fakeDevice) Release() error {
	if d.releaseGate != nil {
		<-d.releaseGate
	}
	d.releases.Add(1)
	return nil
}

func frames(data []byte, n int) []readResult {
	out := make([]readResult, n)
	for i := range out {
		out[i] = readResult{data: data}
	}
	return out
}

type recordingAlerts struct {
	mu     sync.Mutex
	alerts []notify.Alert
}

func (a *recordingAlerts) Publish(_ context.Context, alert notify.Alert) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, alert)
	return nil
}

func (a *recordingAlerts) Close() error { return nil }

func (a *recordingAlerts) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.alerts)
}

func newLocalStore(t *testing.T) *storage.Local {
	t.Helper()
	s, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	return s
}

func eventsByChannel(events []database.MatchEvent, ch database.Channel) []database.MatchEvent {
	var out []database.MatchEvent
	for _, ev := range events {
		if ev.Channel == ch {
			out = append(out, ev)
		}
	}
	return out
}
