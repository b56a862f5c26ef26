package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/kozaktomas/facewatch/internal/pipeline"
)

// stopTimeout bounds how long a stop request waits for the loop to drain.
const stopTimeout = 10 * time.Second

// SessionController is the streaming session surface used by SessionHandler.
type SessionController interface {
	Start() (pipeline.State, error)
	Stop(ctx context.Context) pipeline.State
	Status() pipeline.Status
	StreamFrames(ctx context.Context) (<-chan []byte, error)
}

// SessionHandler handles the real-time camera session endpoints.
type SessionHandler struct {
	session SessionController
	logger  *slog.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(session SessionController, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{session: session, logger: logger}
}

// Start starts the session. Starting a running session is a no-op.
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	state, err := h.session.Start()
	if err != nil {
		h.logger.Warn("session start failed", "error", err)
		respondError(w, statusForError(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"state": state})
}

// Stop stops the session and waits for the capture loop to finish.
func (h *SessionHandler) Stop(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), stopTimeout)
	defer cancel()

	state := h.session.Stop(ctx)
	respondJSON(w, http.StatusOK, map[string]any{"state": state})
}

// Status returns the session status.
func (h *SessionHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.session.Status())
}

// Stream serves annotated preview frames as a multipart MJPEG stream until
// the client disconnects or the session stops.
func (h *SessionHandler) Stream(w http.ResponseWriter, r *http.Request) {
	frames, err := h.session.StreamFrames(r.Context())
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}

	// The stream outlives the server write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", pipeline.MultipartContentType)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := pipeline.WriteMultipart(w, frames); err != nil && !errors.Is(err, context.Canceled) {
		h.logger.Debug("preview stream ended", "error", err)
	}
}
