package annotate

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/kozaktomas/facewatch/internal/constants"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var (
	// ErrEmptyImage is returned by Decode for zero-length input.
	ErrEmptyImage = errors.New("empty image data")
	// ErrImageTooLarge is returned by Decode when the declared dimensions
	// exceed constants.MaxImagePixels.
	ErrImageTooLarge = errors.New("image dimensions too large")
)

// Decode decodes a JPEG, PNG, GIF, BMP or WebP image. The header is checked
// first so an image declaring more than constants.MaxImagePixels is rejected
// before its pixel buffer is allocated.
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", ErrEmptyImage
	}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		if int64(cfg.Width)*int64(cfg.Height) > constants.MaxImagePixels {
			return nil, "", fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
		}
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return img, format, nil
}

// EncodeJPEG encodes img as JPEG. Non-positive quality selects the default.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if quality <= 0 {
		quality = constants.JPEGQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// Fit scales img down to fit within maxWidth x maxHeight keeping the aspect
// ratio. Images that already fit, or non-positive limits, are returned as is.
func Fit(img image.Image, maxWidth, maxHeight int) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if maxWidth <= 0 || maxHeight <= 0 || (width <= maxWidth && height <= maxHeight) {
		return img
	}

	scale := min(float64(maxWidth)/float64(width), float64(maxHeight)/float64(height))
	newWidth := max(1, int(float64(width)*scale))
	newHeight := max(1, int(float64(height)*scale))

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
	return resized
}
