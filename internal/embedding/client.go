// Package embedding talks to the face embedding service that performs face
// detection and encoding.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/kozaktomas/facewatch/internal/facematch"
)

const (
	defaultEmbeddingURL = "http://localhost:8000"
	faceEndpoint        = "/embed/face"
	requestTimeout      = 30 * time.Second
	maxErrorBody        = 4 << 10
)

// Client detects faces and computes their embeddings using the embedding server.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the service at baseURL. An empty URL
// selects the local default.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultEmbeddingURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: requestTimeout},
	}
}

// FaceDetection is one face as reported by the service.
type FaceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// FaceResponse is the body returned by the face endpoint.
type FaceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []FaceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// APIError is returned when the service answers with a non-200 status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("embedding service error (status %d): %s", e.StatusCode, e.Body)
}

// DetectFaces implements facematch.Detector. Faces without an embedding or
// with a bbox outside the image are dropped.
func (c *Client) DetectFaces(ctx context.Context, imageData []byte) ([]facematch.Face, error) {
	var resp FaceResponse
	if err := c.postImage(ctx, faceEndpoint, imageData, &resp); err != nil {
		return nil, err
	}

	bounds := imageBounds(imageData)
	faces := make([]facematch.Face, 0, len(resp.Faces))
	for _, det := range resp.Faces {
		if len(det.Embedding) == 0 {
			continue
		}
		region, ok := facematch.RegionFromBBox(det.BBox, bounds)
		if !ok {
			continue
		}
		faces = append(faces, facematch.Face{
			Region:    region,
			Embedding: det.Embedding,
			Score:     det.DetScore,
		})
	}
	return faces, nil
}

// postImage uploads imageData as the "file" part of a multipart form and
// decodes the JSON answer into out.
func (c *Client) postImage(ctx context.Context, endpoint string, imageData []byte, out any) error {
	body, contentType, err := multipartImage(imageData)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse embedding response: %w", err)
	}
	return nil
}

func multipartImage(imageData []byte) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	mimeType := sniffImageType(imageData)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="face%s"`, extensionFor(mimeType)))
	h.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, "", fmt.Errorf("failed to write image data: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

// sniffImageType reports the image MIME type of data, or
// application/octet-stream for anything that is not an image.
func sniffImageType(data []byte) string {
	ct := http.DetectContentType(data)
	if strings.HasPrefix(ct, "image/") {
		return ct
	}
	return "application/octet-stream"
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/bmp":
		return ".bmp"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}

// imageBounds returns the pixel bounds of the encoded image, or an unbounded
// rectangle when the format is not registered.
func imageBounds(data []byte) image.Rectangle {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Rect(0, 0, math.MaxInt32, math.MaxInt32)
	}
	return image.Rect(0, 0, cfg.Width, cfg.Height)
}

var _ facematch.Detector = (*Client)(nil)
