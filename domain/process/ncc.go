package process

import (
	"image"
	"math"
)

// grayPrecomp stores a frame's luminance and its summed-area tables
// (integral images) so window sums and variances cost O(1). Buffers are
// reused across frames of the same size.
type grayPrecomp struct {
	gray       []float64
	integral   []float64
	integralSq []float64
	W, H       int
}

func (p *grayPrecomp) load(g *image.Gray) {
	W, H := g.Rect.Dx(), g.Rect.Dy()
	need := W * H
	if cap(p.gray) < need {
		p.gray = make([]float64, need)
		p.integral = make([]float64, need)
		p.integralSq = make([]float64, need)
	}
	p.gray = p.gray[:need]
	p.integral = p.integral[:need]
	p.integralSq = p.integralSq[:need]
	p.W, p.H = W, H
	for y := 0; y < H; y++ {
		var rowSum, rowSum2 float64
		row := g.Pix[y*g.Stride : y*g.Stride+W]
		for x, v := range row {
			gv := float64(v)
			off := y*W + x
			p.gray[off] = gv
			rowSum += gv
			rowSum2 += gv * gv
			if y == 0 {
				p.integral[off] = rowSum
				p.integralSq[off] = rowSum2
			} else {
				p.integral[off] = p.integral[(y-1)*W+x] + rowSum
				p.integralSq[off] = p.integralSq[(y-1)*W+x] + rowSum2
			}
		}
	}
}

// integralSum returns the inclusive sum over [x0..x1] x [y0..y1].
func integralSum(I []float64, W int, x0, y0, x1, y1 int) float64 {
	if x0 > x1 || y0 > y1 {
		return 0
	}
	A := func(x, y int) float64 {
		if x < 0 || y < 0 {
			return 0
		}
		return I[y*W+x]
	}
	return A(x1, y1) - A(x0-1, y1) - A(x1, y0-1) + A(x0-1, y0-1)
}

// templatePrecomp caches template pixels and summary statistics.
type templatePrecomp struct {
	gray  []float32
	W, H  int
	meanT float64
	stdT  float64
}

func newTemplatePrecomp(gray []float32, w, h int) *templatePrecomp {
	var sumT, sumT2 float64
	for _, v := range gray {
		fv := float64(v)
		sumT += fv
		sumT2 += fv * fv
	}
	n := float64(w * h)
	meanT := sumT / n
	varT := (sumT2 - sumT*sumT/n) / n
	stdT := 0.0
	if varT > 0 {
		stdT = math.Sqrt(varT)
	}
	return &templatePrecomp{gray: gray, W: w, H: h, meanT: meanT, stdT: stdT}
}

// templateFromGray cuts r out of g. r must lie inside g.
func templateFromGray(g *image.Gray, r image.Rectangle) *templatePrecomp {
	w, h := r.Dx(), r.Dy()
	gray := make([]float32, w*h)
	for y := 0; y < h; y++ {
		off := g.PixOffset(r.Min.X, r.Min.Y+y)
		for x := 0; x < w; x++ {
			gray[y*w+x] = float32(g.Pix[off+x])
		}
	}
	return newTemplatePrecomp(gray, w, h)
}

// scaled returns a bilinearly resampled copy of the template, or nil when
// the result would be degenerate.
func (base *templatePrecomp) scaled(factor float64) *templatePrecomp {
	if base == nil || factor <= 0 {
		return nil
	}
	if factor == 1.0 {
		return base
	}
	w := int(float64(base.W) * factor)
	h := int(float64(base.H) * factor)
	if w < 2 || h < 2 {
		return nil
	}
	gray := make([]float32, w*h)
	fx := float64(base.W) / float64(w)
	fy := float64(base.H) / float64(h)
	bw, bh := base.W, base.H
	src := base.gray
	for y := 0; y < h; y++ {
		ys := clampF((float64(y)+0.5)*fy-0.5, 0, float64(bh-1))
		y0 := int(math.Floor(ys))
		y1 := min(y0+1, bh-1)
		dy := ys - float64(y0)
		for x := 0; x < w; x++ {
			xs := clampF((float64(x)+0.5)*fx-0.5, 0, float64(bw-1))
			x0 := int(math.Floor(xs))
			x1 := min(x0+1, bw-1)
			dx := xs - float64(x0)
			top := float64(src[y0*bw+x0])*(1-dx) + float64(src[y0*bw+x1])*dx
			bottom := float64(src[y1*bw+x0])*(1-dx) + float64(src[y1*bw+x1])*dx
			gray[y*w+x] = float32(top*(1-dy) + bottom*dy)
		}
	}
	return newTemplatePrecomp(gray, w, h)
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// nccAt scores the template with its top-left corner at (x,y).
func nccAt(pre *grayPrecomp, pc *templatePrecomp, x, y int) (float64, bool) {
	w, h := pc.W, pc.H
	n := float64(w * h)
	sumF := integralSum(pre.integral, pre.W, x, y, x+w-1, y+h-1)
	sumF2 := integralSum(pre.integralSq, pre.W, x, y, x+w-1, y+h-1)
	meanF := sumF / n
	varF := (sumF2 - sumF*sumF/n) / n
	if varF <= 1e-9 {
		return 0, false
	}
	stdF := math.Sqrt(varF)
	var sumFT float64
	for ty := 0; ty < h; ty++ {
		frow := pre.gray[(y+ty)*pre.W+x : (y+ty)*pre.W+x+w]
		trow := pc.gray[ty*w : ty*w+w]
		for i, fv := range frow {
			sumFT += fv * float64(trow[i])
		}
	}
	denom := n * stdF * pc.stdT
	if denom <= 0 {
		return 0, false
	}
	return (sumFT - n*meanF*pc.meanT) / denom, true
}

type nccMatch struct {
	X, Y  int
	Score float64
}

// matchNCC scans top-left positions inside area with the given stride and
// refines around the coarse best when stride > 1. area is clipped to the
// valid placement range.
func matchNCC(pre *grayPrecomp, pc *templatePrecomp, area image.Rectangle, stride int) nccMatch {
	best := nccMatch{Score: -1}
	if pre == nil || pc == nil || pc.stdT <= 1e-9 || pre.W < pc.W || pre.H < pc.H {
		return best
	}
	valid := image.Rect(0, 0, pre.W-pc.W+1, pre.H-pc.H+1)
	area = area.Intersect(valid)
	if area.Empty() {
		return best
	}
	if stride <= 0 {
		stride = 1
	}
	for y := area.Min.Y; y < area.Max.Y; y += stride {
		for x := area.Min.X; x < area.Max.X; x += stride {
			if s, ok := nccAt(pre, pc, x, y); ok && s > best.Score {
				best = nccMatch{X: x, Y: y, Score: s}
			}
		}
	}
	if stride > 1 && best.Score > -1 {
		refine := image.Rect(best.X-stride, best.Y-stride, best.X+stride+1, best.Y+stride+1).Intersect(valid)
		for y := refine.Min.Y; y < refine.Max.Y; y++ {
			for x := refine.Min.X; x < refine.Max.X; x++ {
				if s, ok := nccAt(pre, pc, x, y); ok && s > best.Score {
					best = nccMatch{X: x, Y: y, Score: s}
				}
			}
		}
	}
	return best
}
