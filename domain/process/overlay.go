package process

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/soocke/framerelay/domain/relay"
)

var (
	overlayText = image.NewUniform(color.RGBA{R: 0xF0, G: 0xF0, B: 0x40, A: 0xFF})
	overlayBack = image.NewUniform(color.RGBA{A: 0xB0})
)

// Overlay wraps an operation and stamps a one-line profiling caption onto
// its output. Stats is polled once per frame; nil disables timing figures.
type Overlay struct {
	Inner Operation
	Stats func() relay.Stats
}

func (o *Overlay) Name() string { return o.Inner.Name() }

func (o *Overlay) Process(f *relay.Frame, out *image.RGBA) error {
	if err := o.Inner.Process(f, out); err != nil {
		return err
	}
	drawCaption(out, o.caption(f))
	return nil
}

func (o *Overlay) caption(f *relay.Frame) string {
	if o.Stats == nil {
		return fmt.Sprintf("%s #%d", o.Inner.Name(), f.Seq)
	}
	st := o.Stats()
	return fmt.Sprintf("%s #%d conv %.2fms proc %.2fms drop %d",
		o.Inner.Name(), f.Seq, st.Convert.Average, st.Process.Average, st.Dropped)
}

// drawCaption writes text in the top-left corner over a translucent band.
func drawCaption(dst *image.RGBA, text string) {
	face := basicfont.Face7x13
	h := face.Height + 4
	if dst.Rect.Dy() < h {
		return
	}
	d := &font.Drawer{Dst: dst, Src: overlayText, Face: face}
	wText := d.MeasureString(text).Ceil() + 6
	band := image.Rect(dst.Rect.Min.X, dst.Rect.Min.Y, dst.Rect.Min.X+wText, dst.Rect.Min.Y+h).Intersect(dst.Rect)
	draw.Draw(dst, band, overlayBack, image.Point{}, draw.Over)
	d.Dot = fixed.P(dst.Rect.Min.X+3, dst.Rect.Min.Y+face.Ascent+2)
	d.DrawString(text)
}
