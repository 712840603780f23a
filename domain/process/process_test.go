package process

import (
	"errors"
	"image"
	"io"
	"log/slog"
	"testing"

	"github.com/soocke/framerelay/config"
	"github.com/soocke/framerelay/domain/convert"
	"github.com/soocke/framerelay/domain/relay"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// grayFrame builds a uniform gray frame and applies an optional mutate func.
func grayFrame(seq uint64, w, h int, base byte, mutate func(g *image.Gray)) *relay.Frame {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = base
	}
	if mutate != nil {
		mutate(g)
	}
	return &relay.Frame{Seq: seq, Planes: convert.Planes{Gray: g}}
}

func fillRect(g *image.Gray, r image.Rectangle, v byte) {
	r = r.Intersect(g.Rect)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			g.Pix[y*g.Stride+x] = v
		}
	}
}

// gradientPatch paints a linear ramp into r so every offset scores
// differently under NCC.
func gradientPatch(g *image.Gray, r image.Rectangle) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if !(image.Point{X: x, Y: y}).In(g.Rect) {
				continue
			}
			g.Pix[y*g.Stride+x] = byte(60 + 4*(x-r.Min.X) + 2*(y-r.Min.Y))
		}
	}
}

func outFor(f *relay.Frame) *image.RGBA { return image.NewRGBA(f.Gray.Rect) }

func TestNew_RegistryKnowsBuiltins(t *testing.T) {
	for _, name := range []string{"gray", "edge", "blur", "threshold", "motion", "track"} {
		op, err := New(name, config.DefaultConfig(), discardLogger())
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if op.Name() != name {
			t.Fatalf("expected name %q, got %q", name, op.Name())
		}
	}
	if _, err := New("sharpen", nil, nil); !errors.Is(err, ErrUnknownOperation) {
		t.Fatalf("expected ErrUnknownOperation, got %v", err)
	}
}

func TestProcess_RejectsMissingInputAndSizeMismatch(t *testing.T) {
	if err := (Gray{}).Process(&relay.Frame{}, image.NewRGBA(image.Rect(0, 0, 1, 1))); !errors.Is(err, ErrNoInput) {
		t.Fatalf("expected ErrNoInput, got %v", err)
	}
	f := grayFrame(1, 8, 8, 0, nil)
	if err := (Gray{}).Process(f, image.NewRGBA(image.Rect(0, 0, 4, 4))); !errors.Is(err, ErrSizeMismatch) {
		t.Fatalf("expected ErrSizeMismatch, got %v", err)
	}
}

func TestThreshold_SplitsAroundMean(t *testing.T) {
	f := grayFrame(1, 10, 10, 20, func(g *image.Gray) { fillRect(g, image.Rect(0, 0, 5, 10), 200) })
	out := outFor(f)
	if err := (Threshold{}).Process(f, out); err != nil {
		t.Fatalf("threshold: %v", err)
	}
	if out.RGBAAt(1, 1).R != 0xFF || out.RGBAAt(8, 8).R != 0 {
		t.Fatalf("unexpected binarisation: %v %v", out.RGBAAt(1, 1), out.RGBAAt(8, 8))
	}
}

func TestEdge_RespondsOnlyAtStep(t *testing.T) {
	f := grayFrame(1, 20, 10, 10, func(g *image.Gray) { fillRect(g, image.Rect(10, 0, 20, 10), 210) })
	out := outFor(f)
	if err := (Edge{}).Process(f, out); err != nil {
		t.Fatalf("edge: %v", err)
	}
	if v := out.RGBAAt(3, 5).R; v != 0 {
		t.Fatalf("flat region produced edge %d", v)
	}
	if v := out.RGBAAt(10, 5).R; v < 200 {
		t.Fatalf("step edge too weak: %d", v)
	}
}

func TestBlur_PreservesSizeAndSmooths(t *testing.T) {
	f := grayFrame(1, 16, 16, 0, func(g *image.Gray) { fillRect(g, image.Rect(8, 0, 16, 16), 255) })
	out := outFor(f)
	if err := (Blur{Sigma: 2}).Process(f, out); err != nil {
		t.Fatalf("blur: %v", err)
	}
	v := out.RGBAAt(8, 8).R
	if v == 0 || v == 255 {
		t.Fatalf("expected intermediate value at the step, got %d", v)
	}
}

func TestMotion_DetectsSpikeAfterSteadyFrames(t *testing.T) {
	m := NewMotionDetector(nil)
	var events []MotionEvent
	m.OnEvent = func(ev MotionEvent) { events = append(events, ev) }
	out := image.NewRGBA(image.Rect(0, 0, 40, 40))
	for i := 0; i < 5; i++ {
		if err := m.Process(grayFrame(uint64(i+1), 40, 40, 80, nil), out); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}
	if len(events) != 0 {
		t.Fatalf("steady frames produced events: %v", events)
	}
	burst := grayFrame(6, 40, 40, 80, func(g *image.Gray) { fillRect(g, image.Rect(10, 10, 30, 30), 140) })
	m.Process(burst, out)
	if len(events) != 1 || events[0].Seq != 6 {
		t.Fatalf("expected one event at seq 6, got %v", events)
	}
	if px := out.RGBAAt(15, 15); px.R != 0xFF || px.G != 0 {
		t.Fatalf("changed pixel not highlighted: %v", px)
	}
	// Holding the same frame is not new motion.
	m.Process(grayFrame(7, 40, 40, 80, func(g *image.Gray) { fillRect(g, image.Rect(10, 10, 30, 30), 140) }), out)
	if len(events) != 1 {
		t.Fatalf("unexpected retrigger: %v", events)
	}
	if st := m.Stats(); st.Frames != 7 || st.Events != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestMotion_IgnoresSmallNoise(t *testing.T) {
	m := NewMotionDetector(nil)
	out := image.NewRGBA(image.Rect(0, 0, 40, 40))
	fired := false
	m.OnEvent = func(MotionEvent) { fired = true }
	for i := 0; i < 30; i++ {
		v := byte(80)
		if i%2 == 0 {
			v = 84
		}
		m.Process(grayFrame(uint64(i+1), 40, 40, v, nil), out)
	}
	if fired {
		t.Fatalf("sub-threshold flicker produced an event")
	}
}

func TestTracker_FollowsShiftedPatch(t *testing.T) {
	tr := NewTracker(TrackerOptions{TemplateSize: 32, Threshold: 0.8, Stride: 2}, discardLogger())
	first := grayFrame(1, 96, 96, 50, func(g *image.Gray) { gradientPatch(g, image.Rect(32, 32, 64, 64)) })
	out := outFor(first)
	if err := tr.Process(first, out); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if got := tr.Last().Box; got != image.Rect(32, 32, 64, 64) {
		t.Fatalf("unexpected seed box %v", got)
	}
	second := grayFrame(2, 96, 96, 50, func(g *image.Gray) { gradientPatch(g, image.Rect(37, 35, 69, 67)) })
	if err := tr.Process(second, out); err != nil {
		t.Fatalf("track: %v", err)
	}
	res := tr.Last()
	if !res.Found || res.Box.Min != (image.Point{X: 37, Y: 35}) {
		t.Fatalf("expected match at (37,35), got %+v", res)
	}
	if px := out.RGBAAt(37, 35); px != boxFound {
		t.Fatalf("box not drawn: %v", px)
	}
}

func TestTracker_ReportsLossOnBlankFrame(t *testing.T) {
	tr := NewTracker(TrackerOptions{TemplateSize: 32}, nil)
	out := image.NewRGBA(image.Rect(0, 0, 96, 96))
	tr.Process(grayFrame(1, 96, 96, 50, func(g *image.Gray) { gradientPatch(g, image.Rect(32, 32, 64, 64)) }), out)
	tr.Process(grayFrame(2, 96, 96, 50, nil), out)
	if tr.Last().Found {
		t.Fatalf("expected loss on a featureless frame")
	}
}

func TestTracker_WaitsForTexturedSeed(t *testing.T) {
	tr := NewTracker(TrackerOptions{TemplateSize: 32, Threshold: 0.8}, discardLogger())
	blank := grayFrame(1, 96, 96, 0, nil)
	out := outFor(blank)
	if err := tr.Process(blank, out); err != nil {
		t.Fatalf("blank: %v", err)
	}
	if res := tr.Last(); res.Found || res.Box != (image.Rectangle{}) {
		t.Fatalf("seeded from a flat frame: %+v", res)
	}
	textured := func(seq uint64) *relay.Frame {
		return grayFrame(seq, 96, 96, 50, func(g *image.Gray) { gradientPatch(g, image.Rect(32, 32, 64, 64)) })
	}
	for seq := uint64(2); seq < 6; seq++ {
		if err := tr.Process(textured(seq), out); err != nil {
			t.Fatalf("frame %d: %v", seq, err)
		}
	}
	res := tr.Last()
	if !res.Found || res.Box != image.Rect(32, 32, 64, 64) || res.Score < 0.8 {
		t.Fatalf("expected lock on the textured patch, got %+v", res)
	}
}

func TestOverlay_DrawsCaption(t *testing.T) {
	f := grayFrame(3, 200, 40, 0, nil)
	out := outFor(f)
	o := &Overlay{Inner: Gray{}, Stats: func() relay.Stats { return relay.Stats{Dropped: 2} }}
	if err := o.Process(f, out); err != nil {
		t.Fatalf("overlay: %v", err)
	}
	lit := 0
	for y := 0; y < 17; y++ {
		for x := 0; x < 200; x++ {
			if out.RGBAAt(x, y).R > 0x80 {
				lit++
			}
		}
	}
	if lit == 0 {
		t.Fatalf("no caption pixels drawn")
	}
	if o.Name() != "gray" {
		t.Fatalf("overlay should keep inner name, got %q", o.Name())
	}
}
