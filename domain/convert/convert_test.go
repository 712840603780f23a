package convert

import (
	"image"
	"image/color"
	"testing"
)

func uniformRGBA(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func TestLuma_WhiteAndBlack(t *testing.T) {
	if v := Luma(255, 255, 255); v != 255 {
		t.Fatalf("white luma = %d, want 255", v)
	}
	if v := Luma(0, 0, 0); v != 0 {
		t.Fatalf("black luma = %d, want 0", v)
	}
}

func TestGray_FromRGBA(t *testing.T) {
	src := uniformRGBA(8, 4, color.RGBA{R: 100, G: 100, B: 100, A: 255})
	g := Gray(nil, src)
	if g.Rect != image.Rect(0, 0, 8, 4) {
		t.Fatalf("unexpected bounds %v", g.Rect)
	}
	want := Luma(100, 100, 100)
	for i, v := range g.Pix {
		if v != want {
			t.Fatalf("pixel %d = %d, want %d", i, v, want)
		}
	}
}

func TestGray_FromYCbCrCopiesLumaPlane(t *testing.T) {
	src := image.NewYCbCr(image.Rect(0, 0, 6, 4), image.YCbCrSubsampleRatio420)
	for i := range src.Y {
		src.Y[i] = byte(i)
	}
	g := Gray(nil, src)
	for y := 0; y < 4; y++ {
		for x := 0; x < 6; x++ {
			if got, want := g.GrayAt(x, y).Y, src.Y[src.YOffset(x, y)]; got != want {
				t.Fatalf("(%d,%d) = %d want %d", x, y, got, want)
			}
		}
	}
}

func TestGray_SubImageOriginNormalized(t *testing.T) {
	full := uniformRGBA(20, 20, color.RGBA{R: 10, G: 10, B: 10, A: 255})
	sub := full.SubImage(image.Rect(5, 5, 15, 12)).(*image.RGBA)
	g := Gray(nil, sub)
	if g.Rect != image.Rect(0, 0, 10, 7) {
		t.Fatalf("expected origin-normalized rect, got %v", g.Rect)
	}
}

func TestPlanes_ReuseBuffersAtFixedResolution(t *testing.T) {
	var p Planes
	src := uniformRGBA(32, 24, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	p.Load(src, GrayAndColor)
	grayPtr := &p.Gray.Pix[0]
	colorPtr := &p.Color.Pix[0]
	for i := 0; i < 5; i++ {
		p.Load(src, GrayAndColor)
	}
	if &p.Gray.Pix[0] != grayPtr || &p.Color.Pix[0] != colorPtr {
		t.Fatalf("buffers reallocated at constant resolution")
	}
	// Smaller frames still reuse the backing arrays.
	p.Load(uniformRGBA(16, 12, color.RGBA{A: 255}), GrayAndColor)
	if &p.Gray.Pix[0] != grayPtr {
		t.Fatalf("gray reallocated for a smaller frame")
	}
	if p.Bounds() != image.Rect(0, 0, 16, 12) {
		t.Fatalf("unexpected bounds %v", p.Bounds())
	}
}

func TestPlanes_GrayOnlyLeavesColorNil(t *testing.T) {
	var p Planes
	p.Load(uniformRGBA(4, 4, color.RGBA{A: 255}), GrayOnly)
	if p.Color != nil {
		t.Fatalf("color plane filled in gray-only mode")
	}
}

func TestRGBA_FromYCbCrIsOpaque(t *testing.T) {
	src := image.NewYCbCr(image.Rect(0, 0, 4, 4), image.YCbCrSubsampleRatio420)
	for i := range src.Y {
		src.Y[i] = 200
	}
	for i := range src.Cb {
		src.Cb[i], src.Cr[i] = 128, 128
	}
	out := RGBA(nil, src)
	px := out.RGBAAt(1, 1)
	if px.A != 0xFF || px.R != 200 || px.G != 200 || px.B != 200 {
		t.Fatalf("unexpected pixel %+v", px)
	}
}
