package facematch

import (
	"image"
	"math"
)

// RegionFromBBox converts a pixel bbox [x1, y1, x2, y2] to a rectangle clipped
// to bounds. Returns false when the bbox is malformed or lies outside bounds.
func RegionFromBBox(bbox []float64, bounds image.Rectangle) (image.Rectangle, bool) {
	if len(bbox) != 4 {
		return image.Rectangle{}, false
	}

	r := image.Rect(
		int(math.Floor(bbox[0])),
		int(math.Floor(bbox[1])),
		int(math.Ceil(bbox[2])),
		int(math.Ceil(bbox[3])),
	).Intersect(bounds)

	if r.Empty() {
		return image.Rectangle{}, false
	}
	return r, true
}

// RelativeRegion converts a pixel rectangle to relative [x, y, w, h] coordinates in bounds.
func RelativeRegion(r, bounds image.Rectangle) []float64 {
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil
	}
	return []float64{
		float64(r.Min.X-bounds.Min.X) / float64(w),
		float64(r.Min.Y-bounds.Min.Y) / float64(h),
		float64(r.Dx()) / float64(w),
		float64(r.Dy()) / float64(h),
	}
}
