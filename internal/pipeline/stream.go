package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/kozaktomas/facewatch/internal/constants"
)

// MultipartBoundary separates preview frames in the MJPEG stream.
const MultipartBoundary = "frame"

// MultipartContentType is the Content-Type of the preview stream.
const MultipartContentType = "multipart/x-mixed-replace; boundary=" + MultipartBoundary

// StreamFrames subscribes to JPEG preview frames. The channel is closed when
// ctx ends or the session stops. Slow subscribers miss frames.
func (s *Session) StreamFrames(ctx context.Context) (<-chan []byte, error) {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return nil, ErrNotRunning
	}
	ch := make(chan []byte, constants.FrameChannelBuffer)
	s.subscribers[ch] = struct{}{}
	viewers := len(s.subscribers)
	done := s.done
	s.mu.Unlock()

	s.cfg.Metrics.SetViewers(viewers)
	s.logger.Debug("preview subscriber added", "viewers", viewers)

	go func() {
		select {
		case <-ctx.Done():
			s.unsubscribe(ch)
		case <-done:
		}
	}()
	return ch, nil
}

func (s *Session) unsubscribe(ch chan []byte) {
	s.mu.Lock()
	if _, ok := s.subscribers[ch]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.subscribers, ch)
	close(ch)
	viewers := len(s.subscribers)
	last := viewers == 0 && s.state == StateRunning
	s.mu.Unlock()

	s.cfg.Metrics.SetViewers(viewers)
	if last && s.cfg.ReleaseOnDisconnect {
		s.logger.Info("last preview subscriber left, releasing camera")
		ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		s.Stop(ctx)
	}
}

func (s *Session) hasSubscribers() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers) > 0
}

func (s *Session) broadcast(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- frame:
		default:
			// subscriber is behind, skip this frame
		}
	}
}

// WriteMultipart writes every frame as one part of a multipart/x-mixed-replace
// stream until frames is closed. Writers implementing http.Flusher are
// flushed after each part.
func WriteMultipart(w io.Writer, frames <-chan []byte) error {
	flusher, _ := w.(http.Flusher)
	for frame := range frames {
		if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\n\r\n", MultipartBoundary); err != nil {
			return err
		}
		if _, err := w.Write(frame); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "\r\n"); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
	return nil
}
