package images

import (
	"errors"
	"image"

	"github.com/disintegration/imaging"
)

// ExtractRegion copies r grown by pad pixels on each side out of frame. The
// rectangle is clamped to the frame and is at least 1x1. The returned image
// does not alias frame, so frame may be reused afterwards.
func ExtractRegion(frame image.Image, r image.Rectangle, pad int) (image.Image, image.Rectangle, error) {
	if frame == nil {
		return nil, image.Rectangle{}, errors.New("nil frame")
	}
	if pad < 0 {
		pad = 0
	}
	b := frame.Bounds()
	roi := r.Inset(-pad).Intersect(b)
	if roi.Empty() {
		// Keep a 1x1 region at the nearest in-bounds point.
		x := clamp(r.Min.X, b.Min.X, b.Max.X-1)
		y := clamp(r.Min.Y, b.Min.Y, b.Max.Y-1)
		roi = image.Rect(x, y, x+1, y+1)
	}
	return imaging.Crop(frame, roi), roi, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
