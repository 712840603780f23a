package process

import (
	"image"
	"image/color"
	"log/slog"
	"sync/atomic"

	"github.com/soocke/framerelay/domain/relay"
)

var (
	boxFound = color.RGBA{R: 0x30, G: 0xE0, B: 0x50, A: 0xFF}
	boxLost  = color.RGBA{R: 0xE0, G: 0x30, B: 0x30, A: 0xFF}
)

// TrackerOptions configure a Tracker. Zero values select defaults.
type TrackerOptions struct {
	// TemplateSize is the side of the square template cut from the first
	// frame's centre.
	TemplateSize int
	// Threshold is the minimum NCC score for a match.
	Threshold float64
	// Stride is the coarse scan step.
	Stride int
	// SearchRadius bounds the local search around the last match. Defaults
	// to TemplateSize.
	SearchRadius int
	// Scales are the template scale factors tried in order.
	Scales []float64
	// StopOnScore ends the scale sweep early once reached.
	StopOnScore float64
}

// TrackResult is the outcome for one frame.
type TrackResult struct {
	Box   image.Rectangle
	Score float64
	Scale float64
	Found bool
}

// Tracker follows a patch across frames with normalized cross-correlation.
// The template is seeded from the centre of the first frame it sees.
// Process and Reset must run on one goroutine; Last may be called from any.
type Tracker struct {
	opts   TrackerOptions
	logger *slog.Logger

	pre    grayPrecomp
	base   *templatePrecomp
	scaled map[float64]*templatePrecomp
	last   TrackResult
	lost   int
	shared atomic.Pointer[TrackResult]
}

// NewTracker builds a tracker.
func NewTracker(opts TrackerOptions, logger *slog.Logger) *Tracker {
	if opts.TemplateSize < 8 {
		opts.TemplateSize = 48
	}
	if opts.Threshold <= 0 || opts.Threshold > 1 {
		opts.Threshold = 0.6
	}
	if opts.Stride <= 0 {
		opts.Stride = 2
	}
	if opts.SearchRadius <= 0 {
		opts.SearchRadius = opts.TemplateSize
	}
	if len(opts.Scales) == 0 {
		opts.Scales = []float64{1.0, 0.9, 1.1}
	}
	if opts.StopOnScore <= 0 {
		opts.StopOnScore = 0.95
	}
	return &Tracker{opts: opts, logger: logger, scaled: map[float64]*templatePrecomp{}}
}

func (t *Tracker) Name() string { return "track" }

// Last returns the result of the most recently processed frame.
func (t *Tracker) Last() TrackResult {
	if r := t.shared.Load(); r != nil {
		return *r
	}
	return TrackResult{}
}

func (t *Tracker) publish() {
	r := t.last
	t.shared.Store(&r)
}

// Reset drops the template; the next frame seeds a new one.
func (t *Tracker) Reset() {
	t.base = nil
	t.scaled = map[float64]*templatePrecomp{}
	t.last = TrackResult{}
	t.lost = 0
	t.publish()
}

func (t *Tracker) template(scale float64) *templatePrecomp {
	if pc, ok := t.scaled[scale]; ok {
		return pc
	}
	pc := t.base.scaled(scale)
	t.scaled[scale] = pc
	return pc
}

const minTemplateStd = 1e-9

func (t *Tracker) seed(g *image.Gray) bool {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	size := min(t.opts.TemplateSize, w/2, h/2)
	if size < 4 {
		return false
	}
	r := image.Rect((w-size)/2, (h-size)/2, (w-size)/2+size, (h-size)/2+size)
	base := templateFromGray(g, r)
	// A flat patch has no correlation signal; wait for a textured frame.
	if base.stdT <= minTemplateStd {
		return false
	}
	t.base = base
	t.scaled = map[float64]*templatePrecomp{1.0: t.base}
	t.last = TrackResult{Box: r, Score: 1, Scale: 1, Found: true}
	if t.logger != nil {
		t.logger.Debug("track template seeded", "box", r, "std", t.base.stdT)
	}
	return true
}

func (t *Tracker) Process(f *relay.Frame, out *image.RGBA) error {
	if err := checkFrame(f, out); err != nil {
		return err
	}
	defer t.publish()
	if f.Color != nil && f.Color.Rect.Eq(out.Rect) {
		copy(out.Pix, f.Color.Pix)
	} else {
		writeGray(out, f.Gray)
	}
	if t.base == nil {
		if t.seed(f.Gray) {
			drawBox(out, t.last.Box, boxFound, 2)
		}
		return nil
	}

	t.pre.load(f.Gray)
	var area image.Rectangle
	stride := t.opts.Stride
	if t.last.Found {
		r := t.opts.SearchRadius
		area = image.Rect(t.last.Box.Min.X-r, t.last.Box.Min.Y-r, t.last.Box.Min.X+r+1, t.last.Box.Min.Y+r+1)
	} else {
		// Lost: sweep the whole frame coarsely.
		area = image.Rect(0, 0, t.pre.W, t.pre.H)
		stride *= 4
	}

	res := TrackResult{Score: -1}
	for _, s := range t.opts.Scales {
		pc := t.template(s)
		if pc == nil {
			continue
		}
		m := matchNCC(&t.pre, pc, area, stride)
		if m.Score > res.Score {
			res = TrackResult{Box: image.Rect(m.X, m.Y, m.X+pc.W, m.Y+pc.H), Score: m.Score, Scale: s}
		}
		if res.Score >= t.opts.StopOnScore {
			break
		}
	}
	res.Found = res.Score >= t.opts.Threshold
	if res.Found {
		if t.lost > 0 && t.logger != nil {
			t.logger.Debug("track reacquired", "seq", f.Seq, "score", res.Score, "after", t.lost)
		}
		t.lost = 0
		t.last = res
		drawBox(out, res.Box, boxFound, 2)
		return nil
	}
	t.lost++
	if t.lost == 1 && t.logger != nil {
		t.logger.Debug("track lost", "seq", f.Seq, "score", res.Score)
	}
	t.last.Found = false
	t.last.Score = res.Score
	drawBox(out, t.last.Box, boxLost, 1)
	return nil
}

// drawBox outlines r in img with the given thickness, clipped to bounds.
func drawBox(img *image.RGBA, r image.Rectangle, c color.RGBA, thickness int) {
	b := img.Rect
	for i := 0; i < thickness; i++ {
		rr := r.Inset(i)
		if rr.Empty() {
			return
		}
		for x := rr.Min.X; x < rr.Max.X; x++ {
			setPx(img, b, x, rr.Min.Y, c)
			setPx(img, b, x, rr.Max.Y-1, c)
		}
		for y := rr.Min.Y; y < rr.Max.Y; y++ {
			setPx(img, b, rr.Min.X, y, c)
			setPx(img, b, rr.Max.X-1, y, c)
		}
	}
}

func setPx(img *image.RGBA, b image.Rectangle, x, y int, c color.RGBA) {
	if !(image.Point{X: x, Y: y}).In(b) {
		return
	}
	img.SetRGBA(x, y, c)
}
