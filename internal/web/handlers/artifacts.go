package handlers

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/facewatch/internal/storage"
)

// ArtifactsHandler serves stored evidence frames and scan submissions.
type ArtifactsHandler struct {
	files  storage.FileStore
	logger *slog.Logger
}

// NewArtifactsHandler creates a new artifacts handler.
func NewArtifactsHandler(files storage.FileStore, logger *slog.Logger) *ArtifactsHandler {
	return &ArtifactsHandler{files: files, logger: logger}
}

// Get streams the artifact named by the wildcard path, e.g.
// /artifacts/detections/match_alice_20240101_120000_ab12cd34.jpg.
func (h *ArtifactsHandler) Get(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if key == "" {
		respondError(w, http.StatusBadRequest, "missing artifact path")
		return
	}

	rc, err := h.files.Read(r.Context(), key)
	switch {
	case errors.Is(err, storage.ErrInvalidPath):
		respondError(w, http.StatusBadRequest, "invalid artifact path")
		return
	case errors.Is(err, os.ErrNotExist):
		respondError(w, http.StatusNotFound, "artifact not found")
		return
	case err != nil:
		h.logger.Error("failed to read artifact", "key", sanitizeForLog(key), "error", err)
		respondError(w, http.StatusInternalServerError, "failed to read artifact")
		return
	}
	defer rc.Close()

	ct := mime.TypeByExtension(path.Ext(key))
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Debug("artifact copy interrupted", "key", sanitizeForLog(key), "error", err)
	}
}
