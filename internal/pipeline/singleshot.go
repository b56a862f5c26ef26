package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kozaktomas/facewatch/internal/annotate"
	"github.com/kozaktomas/facewatch/internal/database"
	"github.com/kozaktomas/facewatch/internal/facematch"
	"github.com/kozaktomas/facewatch/internal/logging"
)

// SingleShotConfig wires a single-shot pipeline.
type SingleShotConfig struct {
	Detector   facematch.Detector
	References ReferenceSource
	Matcher    *facematch.Matcher
	Tolerance  float64
	Sinks

	Logger *slog.Logger
	Now    func() time.Time
}

// Outcome is the result of one single-shot submission.
type Outcome struct {
	Event   database.MatchEvent `json:"event"`
	Faces   int                 `json:"faces"`
	Matched bool                `json:"matched"`
	Message string              `json:"message"`
}

// SingleShot matches one submitted image and records exactly one event per
// successful call. Calls are independent and may run concurrently.
type SingleShot struct {
	cfg    SingleShotConfig
	rec    recorder
	logger *slog.Logger
}

// NewSingleShot creates a single-shot pipeline.
func NewSingleShot(cfg SingleShotConfig) *SingleShot {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := logging.Component(cfg.Logger, "singleshot")
	return &SingleShot{
		cfg:    cfg,
		rec:    recorder{Sinks: cfg.Sinks, logger: logger},
		logger: logger,
	}
}

// Process stores the submitted image, matches the faces in it and records
// the outcome. The first matched face in detection order determines the
// label; without faces the label is "No face", otherwise "Unknown".
// Undecodable input fails with ErrMalformedInput before anything is stored.
func (p *SingleShot) Process(ctx context.Context, data []byte, channel database.Channel) (*Outcome, error) {
	if !channel.Valid() {
		return nil, fmt.Errorf("unknown channel %q", channel)
	}
	_, format, err := annotate.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedInput, err)
	}

	now := database.EventTime(p.cfg.Now())
	key := ScanKey(now, format)
	if err := p.rec.storeArtifact(ctx, key, data); err != nil {
		return nil, err
	}

	faces, err := p.cfg.Detector.DetectFaces(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", err)
	}

	out := &Outcome{Faces: len(faces)}
	label, confidence := facematch.LabelNoFace, 0.0
	out.Message = "No face detected"
	var embedding []float32

	if len(faces) > 0 {
		label, out.Message = facematch.LabelUnknown, "No match"
		embedding = faces[0].Embedding

		ref := p.cfg.References.Reference()
		for _, face := range faces {
			res := p.cfg.Matcher.Identify(ref, face.Embedding, p.cfg.Tolerance)
			if !res.Matched {
				continue
			}
			label, confidence = res.Identity, res.Confidence
			embedding = face.Embedding
			out.Matched = true
			out.Message = fmt.Sprintf("Match detected: %s (match %s%%)", res.Identity, annotate.FormatConfidence(res.Confidence))
			p.cfg.Metrics.IncMatch(string(channel))
			break
		}
	}

	ev := database.NewMatchEvent(label, key, confidence, channel, now)
	ev.Embedding = embedding
	if err := p.rec.persist(ctx, &ev); err != nil {
		return nil, err
	}
	out.Event = ev

	p.logger.Info("scan processed", "channel", channel, "label", label, "confidence", confidence, "faces", len(faces))
	return out, nil
}

// SubmitCapture processes a browser capture given as a base64 data URL
// ("data:image/jpeg;base64,..."). A bare base64 payload is accepted too.
func (p *SingleShot) SubmitCapture(ctx context.Context, dataURL string) (*Outcome, error) {
	data, err := ParseDataURL(dataURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedInput, err)
	}
	return p.Process(ctx, data, database.ChannelSingleCapture)
}

// ParseDataURL decodes the payload of a base64 data URL. Everything up to
// the first comma is treated as the header.
func ParseDataURL(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if header, payload, ok := strings.Cut(s, ","); ok {
		if strings.HasPrefix(header, "data:") && !strings.HasSuffix(header, ";base64") {
			return nil, errors.New("data URL is not base64 encoded")
		}
		s = payload
	}
	if s == "" {
		return nil, errors.New("empty capture payload")
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		if raw, rawErr := base64.RawStdEncoding.DecodeString(s); rawErr == nil {
			return raw, nil
		}
		return nil, fmt.Errorf("invalid base64 payload: %w", err)
	}
	return data, nil
}
