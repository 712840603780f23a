package process

import (
	"image"
	"image/draw"

	"github.com/disintegration/imaging"

	"github.com/soocke/framerelay/domain/relay"
)

var (
	sobelX = [9]float64{-1, 0, 1, -2, 0, 2, -1, 0, 1}
	sobelY = [9]float64{-1, -2, -1, 0, 0, 0, 1, 2, 1}
)

// Edge renders the Sobel gradient magnitude (|gx| + |gy|, saturated).
type Edge struct{}

func (Edge) Name() string { return "edge" }

func (Edge) Process(f *relay.Frame, out *image.RGBA) error {
	if err := checkFrame(f, out); err != nil {
		return err
	}
	gx := imaging.Convolve3x3(f.Gray, sobelX, &imaging.ConvolveOptions{Abs: true})
	gy := imaging.Convolve3x3(f.Gray, sobelY, &imaging.ConvolveOptions{Abs: true})
	w, h := out.Rect.Dx(), out.Rect.Dy()
	for y := 0; y < h; y++ {
		rx := gx.Pix[y*gx.Stride : y*gx.Stride+w*4]
		ry := gy.Pix[y*gy.Stride : y*gy.Stride+w*4]
		dst := out.Pix[y*out.Stride : y*out.Stride+w*4]
		for x := 0; x < w; x++ {
			i := x * 4
			m := int(rx[i]) + int(ry[i])
			if m > 255 {
				m = 255
			}
			v := uint8(m)
			dst[i], dst[i+1], dst[i+2], dst[i+3] = v, v, v, 0xFF
		}
	}
	return nil
}

// Blur applies a Gaussian blur to the color plane, or to the gray plane
// when the relay runs in gray-only mode.
type Blur struct {
	Sigma float64
}

func (Blur) Name() string { return "blur" }

func (b Blur) Process(f *relay.Frame, out *image.RGBA) error {
	if err := checkFrame(f, out); err != nil {
		return err
	}
	var src image.Image = f.Gray
	if f.Color != nil && f.Color.Rect.Eq(f.Gray.Rect) {
		src = f.Color
	}
	sigma := b.Sigma
	if sigma <= 0 {
		sigma = 2
	}
	blurred := imaging.Blur(src, sigma)
	draw.Draw(out, out.Rect, blurred, image.Point{}, draw.Src)
	return nil
}
