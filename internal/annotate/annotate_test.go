package annotate

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func sameColor(a, b color.Color) bool {
	r1, g1, b1, a1 := a.RGBA()
	r2, g2, b2, a2 := b.RGBA()
	return r1 == r2 && g1 == g2 && b1 == b2 && a1 == a2
}

var grey = color.RGBA{R: 128, G: 128, B: 128, A: 255}

func TestEvidence(t *testing.T) {
	frame := solid(640, 480, grey)
	region := image.Rect(200, 150, 300, 260)
	ts := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	out := Evidence(frame, region, "Alice", 87.5, ts)

	if out.Bounds() != frame.Bounds() {
		t.Fatalf("bounds = %v, want %v", out.Bounds(), frame.Bounds())
	}

	// input untouched
	if !sameColor(frame.At(200, 150), grey) || !sameColor(frame.At(250, 120), grey) {
		t.Error("Evidence modified the input frame")
	}

	// perimeter dot at the top-left corner
	if !sameColor(out.At(200, 150), Red) {
		t.Errorf("expected red dot at region corner, got %v", out.At(200, 150))
	}
	// gap between dots on the top edge (x=204 is 4px from dots at 200 and 208)
	if !sameColor(out.At(204, 152), grey) {
		t.Errorf("expected gap between dots, got %v", out.At(204, 152))
	}
	// label band spans into the 100px extension and stays above the face
	if !sameColor(out.At(398, 95), Red) {
		t.Errorf("expected label band in extension area, got %v", out.At(398, 95))
	}
	if !sameColor(out.At(250, 200), grey) {
		t.Errorf("face interior should be untouched, got %v", out.At(250, 200))
	}
	// timestamp band in the bottom-left corner
	if !sameColor(out.At(290, 445), Black) {
		t.Errorf("expected black timestamp band, got %v", out.At(290, 445))
	}
	if !sameColor(out.At(305, 445), grey) {
		t.Errorf("timestamp band should end at x=300, got %v", out.At(305, 445))
	}
}

func TestEvidence_RegionNearEdge(t *testing.T) {
	frame := solid(120, 100, grey)
	// band would start above the image and extend past the right edge
	out := Evidence(frame, image.Rect(60, 20, 110, 80), "Bob", 99, time.Now())
	if !sameColor(out.At(115, 10), Red) {
		t.Errorf("clipped label band missing, got %v", out.At(115, 10))
	}
}

func TestPreview(t *testing.T) {
	frame := solid(640, 480, grey)
	overlays := []Overlay{
		{Region: image.Rect(100, 100, 200, 200), Matched: true, Identity: "Alice", Confidence: 90},
		{Region: image.Rect(400, 100, 500, 200)},
	}

	out := Preview(frame, overlays, DefaultBanner)

	if !sameColor(out.At(150, 199), Red) {
		t.Errorf("matched face box should be red, got %v", out.At(150, 199))
	}
	if !sameColor(out.At(450, 199), Green) {
		t.Errorf("unknown face box should be green, got %v", out.At(450, 199))
	}
	if !sameColor(out.At(150, 150), grey) {
		t.Errorf("box interior should be untouched, got %v", out.At(150, 150))
	}
	if !sameColor(out.At(299, 39), Black) {
		t.Errorf("expected banner background, got %v", out.At(299, 39))
	}
	if !sameColor(frame.At(150, 199), grey) {
		t.Error("Preview modified the input frame")
	}

	plain := Preview(frame, nil, "")
	if !sameColor(plain.At(299, 39), grey) {
		t.Error("empty banner should not be drawn")
	}
}

func TestOverlayLabel(t *testing.T) {
	tests := []struct {
		o    Overlay
		want string
	}{
		{Overlay{Matched: true, Identity: "Alice", Confidence: 87.5}, "MATCH: Alice (87.5%)"},
		{Overlay{Matched: true, Identity: "Bob", Confidence: 100}, "MATCH: Bob (100%)"},
		{Overlay{}, "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.o.Label(); got != tt.want {
			t.Errorf("Label() = %q, want %q", got, tt.want)
		}
	}
}

func TestDecodeAndEncode(t *testing.T) {
	if _, _, err := Decode(nil); err != ErrEmptyImage {
		t.Errorf("Decode(nil) error = %v, want ErrEmptyImage", err)
	}
	if _, _, err := Decode([]byte("not an image")); err == nil {
		t.Error("expected error for garbage input")
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, solid(8, 6, grey)); err != nil {
		t.Fatal(err)
	}
	img, format, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode png: %v", err)
	}
	if format != "png" {
		t.Errorf("format = %q, want png", format)
	}

	data, err := EncodeJPEG(img, 0)
	if err != nil {
		t.Fatalf("EncodeJPEG: %v", err)
	}
	back, format, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode jpeg: %v", err)
	}
	if format != "jpeg" || back.Bounds().Dx() != 8 || back.Bounds().Dy() != 6 {
		t.Errorf("unexpected round trip result: %s %v", format, back.Bounds())
	}
}

func TestFit(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		maxW, maxH   int
		wantW, wantH int
	}{
		{"already fits", 640, 480, 640, 480, 640, 480},
		{"landscape", 1280, 720, 640, 480, 640, 360},
		{"portrait", 600, 1200, 640, 480, 240, 480},
		{"no limit", 1280, 720, 0, 0, 1280, 720},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Fit(image.NewRGBA(image.Rect(0, 0, tt.w, tt.h)), tt.maxW, tt.maxH)
			if out.Bounds().Dx() != tt.wantW || out.Bounds().Dy() != tt.wantH {
				t.Errorf("Fit = %dx%d, want %dx%d", out.Bounds().Dx(), out.Bounds().Dy(), tt.wantW, tt.wantH)
			}
		})
	}
}

// pngHeader returns a PNG signature and IHDR chunk declaring a w x h 8-bit
// grayscale image. It is enough for image.DecodeConfig.
func pngHeader(w, h uint32) []byte {
	var ihdr bytes.Buffer
	ihdr.WriteString("IHDR")
	binary.Write(&ihdr, binary.BigEndian, w)
	binary.Write(&ihdr, binary.BigEndian, h)
	ihdr.Write([]byte{8, 0, 0, 0, 0})

	var out bytes.Buffer
	out.WriteString("\x89PNG\r\n\x1a\n")
	binary.Write(&out, binary.BigEndian, uint32(ihdr.Len()-4))
	out.Write(ihdr.Bytes())
	binary.Write(&out, binary.BigEndian, crc32.ChecksumIEEE(ihdr.Bytes()))
	return out.Bytes()
}

func TestDecode_RejectsOversizedDimensions(t *testing.T) {
	_, _, err := Decode(pngHeader(12000, 12000))
	if !errors.Is(err, ErrImageTooLarge) {
		t.Fatalf("expected ErrImageTooLarge, got %v", err)
	}
}
