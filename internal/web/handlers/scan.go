package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kozaktomas/facewatch/internal/constants"
	"github.com/kozaktomas/facewatch/internal/database"
	"github.com/kozaktomas/facewatch/internal/pipeline"
)

// Scanner runs single-shot matching.
type Scanner interface {
	Process(ctx context.Context, data []byte, channel database.Channel) (*pipeline.Outcome, error)
	SubmitCapture(ctx context.Context, dataURL string) (*pipeline.Outcome, error)
}

// ScanHandler handles single-shot upload and capture endpoints.
type ScanHandler struct {
	scanner Scanner
	logger  *slog.Logger
}

// NewScanHandler creates a new scan handler.
func NewScanHandler(scanner Scanner, logger *slog.Logger) *ScanHandler {
	return &ScanHandler{scanner: scanner, logger: logger}
}

// CaptureRequest is the JSON body of a browser capture submission.
type CaptureRequest struct {
	Image string `json:"image"` // base64 data URL
}

// Upload matches an image uploaded in the multipart field "face".
func (h *ScanHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	file, header, err := r.FormFile("face")
	if err != nil {
		respondError(w, http.StatusBadRequest, "face file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read uploaded file")
		return
	}

	h.logger.Debug("scan upload received", "filename", sanitizeForLog(header.Filename), "bytes", len(data))
	h.respondOutcome(w, r, func(ctx context.Context) (*pipeline.Outcome, error) {
		return h.scanner.Process(ctx, data, database.ChannelUpload)
	})
}

// Capture matches a browser capture sent as JSON {"image": "<data URL>"} or
// as the form field "image".
func (h *ScanHandler) Capture(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)

	var dataURL string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req CaptureRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, errInvalidRequestBody)
			return
		}
		dataURL = req.Image
	} else {
		dataURL = r.FormValue("image")
	}
	if dataURL == "" {
		respondError(w, http.StatusBadRequest, "image is required")
		return
	}

	h.respondOutcome(w, r, func(ctx context.Context) (*pipeline.Outcome, error) {
		return h.scanner.SubmitCapture(ctx, dataURL)
	})
}

func (h *ScanHandler) respondOutcome(w http.ResponseWriter, r *http.Request, run func(context.Context) (*pipeline.Outcome, error)) {
	out, err := run(r.Context())
	if err != nil {
		status := statusForError(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("scan failed", "error", err)
			respondError(w, status, "failed to process image")
			return
		}
		respondError(w, status, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, out)
}
