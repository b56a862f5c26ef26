// Package annotate renders evidence images and live preview overlays for
// detected faces.
package annotate

import (
	"image"
	"image/color"
	"strconv"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Colours used by the overlays.
var (
	Red   = color.RGBA{R: 255, A: 255}
	Green = color.RGBA{G: 255, A: 255}
	Black = color.RGBA{A: 255}
	White = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Evidence layout.
const (
	dotRadius       = 2
	dotSpacing      = 8
	labelBandHeight = 60
	labelBandExtra  = 100 // band extends this far past the right edge of the face
	boxThickness    = 2
	previewBand     = 35

	// TimestampLayout is the format of the evidence timestamp.
	TimestampLayout = "2006-01-02 15:04:05"
	// DefaultBanner is the preview status text.
	DefaultBanner = "DETECTION ACTIVE"
)

// Overlay describes one face in a preview frame.
type Overlay struct {
	Region     image.Rectangle
	Matched    bool
	Identity   string
	Confidence float64
}

// Label returns the text drawn above the face box.
func (o Overlay) Label() string {
	if !o.Matched {
		return "Unknown"
	}
	return "MATCH: " + o.Identity + " (" + FormatConfidence(o.Confidence) + "%)"
}

// FormatConfidence renders a confidence with the shortest exact decimal form.
func FormatConfidence(c float64) string {
	return strconv.FormatFloat(c, 'f', -1, 64)
}

// Clone returns an RGBA copy of img with the same bounds.
func Clone(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, img, b.Min, draw.Src)
	return dst
}

// Evidence returns a copy of frame marked up as match evidence: a dotted red
// perimeter around region, a red label band above it with the identity and
// confidence, and a timestamp band in the bottom-left corner. frame is not
// modified.
func Evidence(frame image.Image, region image.Rectangle, identity string, confidence float64, ts time.Time) *image.RGBA {
	dst := Clone(frame)
	b := dst.Bounds()

	for x := region.Min.X; x < region.Max.X; x += dotSpacing {
		fillCircle(dst, x, region.Min.Y, dotRadius, Red)
		fillCircle(dst, x, region.Max.Y, dotRadius, Red)
	}
	for y := region.Min.Y; y < region.Max.Y; y += dotSpacing {
		fillCircle(dst, region.Min.X, y, dotRadius, Red)
		fillCircle(dst, region.Max.X, y, dotRadius, Red)
	}

	band := image.Rect(region.Min.X, region.Min.Y-labelBandHeight, region.Max.X+labelBandExtra, region.Min.Y)
	fillRect(dst, band, Red)
	drawText(dst, region.Min.X+5, region.Min.Y-35, "MATCH: "+identity, White)
	drawText(dst, region.Min.X+5, region.Min.Y-15, "Confidence: "+FormatConfidence(confidence)+"%", White)

	tsBand := image.Rect(b.Min.X+10, b.Max.Y-40, b.Min.X+300, b.Max.Y-10)
	fillRect(dst, tsBand, Black)
	drawText(dst, b.Min.X+15, b.Max.Y-20, ts.Format(TimestampLayout), White)

	return dst
}

// Preview returns a copy of frame with a box per face (red for matches,
// green otherwise) and a status banner in the top-left corner. An empty
// banner is not drawn.
func Preview(frame image.Image, overlays []Overlay, banner string) *image.RGBA {
	dst := Clone(frame)
	b := dst.Bounds()

	for _, o := range overlays {
		c := Green
		if o.Matched {
			c = Red
		}
		strokeRect(dst, o.Region, boxThickness, c)
		fillRect(dst, image.Rect(o.Region.Min.X, o.Region.Min.Y-previewBand, o.Region.Max.X, o.Region.Min.Y), c)
		drawText(dst, o.Region.Min.X+6, o.Region.Min.Y-6, o.Label(), White)
	}

	if banner != "" {
		fillRect(dst, image.Rect(b.Min.X+10, b.Min.Y+10, b.Min.X+300, b.Min.Y+40), Black)
		drawText(dst, b.Min.X+15, b.Min.Y+30, banner, Green)
	}
	return dst
}

func fillRect(dst *image.RGBA, r image.Rectangle, c color.Color) {
	draw.Draw(dst, r.Intersect(dst.Bounds()), image.NewUniform(c), image.Point{}, draw.Src)
}

func strokeRect(dst *image.RGBA, r image.Rectangle, thickness int, c color.Color) {
	fillRect(dst, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+thickness), c)
	fillRect(dst, image.Rect(r.Min.X, r.Max.Y-thickness, r.Max.X, r.Max.Y), c)
	fillRect(dst, image.Rect(r.Min.X, r.Min.Y, r.Min.X+thickness, r.Max.Y), c)
	fillRect(dst, image.Rect(r.Max.X-thickness, r.Min.Y, r.Max.X, r.Max.Y), c)
}

func fillCircle(dst *image.RGBA, cx, cy, radius int, c color.Color) {
	b := dst.Bounds()
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy > radius*radius {
				continue
			}
			p := image.Pt(cx+dx, cy+dy)
			if p.In(b) {
				dst.Set(p.X, p.Y, c)
			}
		}
	}
}

// drawText draws s with its baseline at (x, y).
func drawText(dst *image.RGBA, x, y int, s string, c color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}
