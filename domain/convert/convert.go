// Package convert copies source frames into reusable gray and color planes.
//
// Destination buffers are grown only when the frame dimensions change, so a
// relay running at a fixed resolution performs no per-frame allocation here.
package convert

import (
	"image"
	"image/color"
	"image/draw"
)

// ColorMode selects which planes a conversion fills.
type ColorMode int

const (
	// GrayOnly fills the luminance plane.
	GrayOnly ColorMode = iota
	// GrayAndColor fills the luminance plane and an RGBA copy.
	GrayAndColor
)

func (m ColorMode) String() string {
	switch m {
	case GrayOnly:
		return "gray"
	case GrayAndColor:
		return "gray+color"
	default:
		return "unknown"
	}
}

// Planes bundles the converted representations of one frame.
type Planes struct {
	Gray  *image.Gray
	Color *image.RGBA
}

// Load converts src into p, reusing existing buffers. Color is left untouched
// when mode is GrayOnly.
func (p *Planes) Load(src image.Image, mode ColorMode) {
	if p == nil || src == nil {
		return
	}
	p.Gray = Gray(p.Gray, src)
	if mode == GrayAndColor {
		p.Color = RGBA(p.Color, src)
	}
}

// Bounds reports the dimensions of the gray plane (origin 0,0).
func (p *Planes) Bounds() image.Rectangle {
	if p == nil || p.Gray == nil {
		return image.Rectangle{}
	}
	return p.Gray.Rect
}

// Luma returns 8-bit luminance using the integer approximation
// (77R + 150G + 29B) >> 8.
func Luma(r, g, b uint8) uint8 {
	return uint8((77*uint32(r) + 150*uint32(g) + 29*uint32(b)) >> 8)
}

// Gray converts src to an 8-bit luminance image stored in dst. The result
// always has its origin at (0,0). A nil or undersized dst is reallocated.
func Gray(dst *image.Gray, src image.Image) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst = ensureGray(dst, w, h)
	if w == 0 || h == 0 {
		return dst
	}
	switch s := src.(type) {
	case *image.YCbCr:
		// Y is already luminance; copy row by row.
		for y := 0; y < h; y++ {
			off := s.YOffset(b.Min.X, b.Min.Y+y)
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+w], s.Y[off:off+w])
		}
	case *image.Gray:
		for y := 0; y < h; y++ {
			off := s.PixOffset(b.Min.X, b.Min.Y+y)
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+w], s.Pix[off:off+w])
		}
	case *image.RGBA:
		rgbaRowsToGray(dst, s.Pix, s.Stride, s.PixOffset(b.Min.X, b.Min.Y), w, h)
	case *image.NRGBA:
		// Alpha is ignored; sources are opaque camera/screen frames.
		rgbaRowsToGray(dst, s.Pix, s.Stride, s.PixOffset(b.Min.X, b.Min.Y), w, h)
	default:
		for y := 0; y < h; y++ {
			row := dst.Pix[y*dst.Stride : y*dst.Stride+w]
			for x := 0; x < w; x++ {
				r, g, bb, _ := src.At(b.Min.X+x, b.Min.Y+y).RGBA()
				row[x] = Luma(uint8(r>>8), uint8(g>>8), uint8(bb>>8))
			}
		}
	}
	return dst
}

func rgbaRowsToGray(dst *image.Gray, pix []byte, stride, start, w, h int) {
	for y := 0; y < h; y++ {
		src := pix[start+y*stride : start+y*stride+w*4]
		row := dst.Pix[y*dst.Stride : y*dst.Stride+w]
		for x := 0; x < w; x++ {
			i := x * 4
			row[x] = Luma(src[i], src[i+1], src[i+2])
		}
	}
}

// RGBA converts src to an opaque RGBA image stored in dst. The result always
// has its origin at (0,0). A nil or undersized dst is reallocated.
func RGBA(dst *image.RGBA, src image.Image) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst = ensureRGBA(dst, w, h)
	if w == 0 || h == 0 {
		return dst
	}
	switch s := src.(type) {
	case *image.YCbCr:
		for y := 0; y < h; y++ {
			row := dst.Pix[y*dst.Stride : y*dst.Stride+w*4]
			for x := 0; x < w; x++ {
				yi := s.YOffset(b.Min.X+x, b.Min.Y+y)
				ci := s.COffset(b.Min.X+x, b.Min.Y+y)
				r, g, bb := color.YCbCrToRGB(s.Y[yi], s.Cb[ci], s.Cr[ci])
				i := x * 4
				row[i], row[i+1], row[i+2], row[i+3] = r, g, bb, 0xFF
			}
		}
	case *image.RGBA:
		for y := 0; y < h; y++ {
			off := s.PixOffset(b.Min.X, b.Min.Y+y)
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+w*4], s.Pix[off:off+w*4])
		}
	case *image.Gray:
		for y := 0; y < h; y++ {
			off := s.PixOffset(b.Min.X, b.Min.Y+y)
			row := dst.Pix[y*dst.Stride : y*dst.Stride+w*4]
			for x := 0; x < w; x++ {
				v := s.Pix[off+x]
				i := x * 4
				row[i], row[i+1], row[i+2], row[i+3] = v, v, v, 0xFF
			}
		}
	default:
		draw.Draw(dst, dst.Rect, src, b.Min, draw.Src)
	}
	return dst
}

// GrayToRGBA expands a gray plane into dst, reusing dst when possible.
func GrayToRGBA(dst *image.RGBA, src *image.Gray) *image.RGBA {
	if src == nil {
		return dst
	}
	return RGBA(dst, src)
}

func ensureGray(dst *image.Gray, w, h int) *image.Gray {
	need := w * h
	if dst == nil || cap(dst.Pix) < need {
		return image.NewGray(image.Rect(0, 0, w, h))
	}
	dst.Pix = dst.Pix[:need]
	dst.Stride = w
	dst.Rect = image.Rect(0, 0, w, h)
	return dst
}

func ensureRGBA(dst *image.RGBA, w, h int) *image.RGBA {
	need := w * h * 4
	if dst == nil || cap(dst.Pix) < need {
		return image.NewRGBA(image.Rect(0, 0, w, h))
	}
	dst.Pix = dst.Pix[:need]
	dst.Stride = w * 4
	dst.Rect = image.Rect(0, 0, w, h)
	return dst
}

// EnsureRGBA returns an RGBA image of the requested size, reusing dst when
// its backing array is large enough.
func EnsureRGBA(dst *image.RGBA, w, h int) *image.RGBA {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return ensureRGBA(dst, w, h)
}
