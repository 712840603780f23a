package process

import (
	"image"
	"log/slog"
	"math"

	"github.com/soocke/framerelay/domain/relay"
)

const (
	windowSize          = 20
	minFramesForStats   = 5
	pixelDiffThreshold  = 10
	ratioThresholdSpike = 0.18
	ratioThresholdBase  = 0.12
	baselineDiffThresh  = 14
	stdDevMultiplier    = 2.0
	bigImmediateRatio   = 0.20
	bigImmediateDiff    = 12
	emaAlpha            = 0.03
)

// MotionEvent describes a detected burst of change.
type MotionEvent struct {
	Seq          uint64
	MeanDiff     float64
	ChangedRatio float64
	BaseDiff     float64
}

// MotionStats are the measurements of the most recent frame.
type MotionStats struct {
	Frames       int
	Events       int
	LastDiff     float64
	LastChanged  float64
	LastBaseDiff float64
	Active       bool
}

// MotionDetector flags frames whose difference from the previous frame
// spikes above the recent distribution, or whose difference from a slow EMA
// baseline jumps. Changed pixels are painted red over a dimmed gray image.
// Not safe for concurrent use.
type MotionDetector struct {
	logger  *slog.Logger
	OnEvent func(MotionEvent)

	prev, ema []byte
	w, h      int
	window    []float64
	wIdx      int
	wCount    int
	frameCnt  int
	active    bool
	frozen    bool
	events    int

	lastDT, lastRatio, lastBase float64
}

// NewMotionDetector returns a detector with an empty history.
func NewMotionDetector(logger *slog.Logger) *MotionDetector {
	return &MotionDetector{logger: logger, window: make([]float64, windowSize)}
}

func (m *MotionDetector) Name() string { return "motion" }

// Reset clears history and statistics.
func (m *MotionDetector) Reset() {
	m.prev, m.ema = nil, nil
	m.w, m.h = 0, 0
	m.wIdx, m.wCount, m.frameCnt = 0, 0, 0
	m.active, m.frozen = false, false
	m.events = 0
	m.lastDT, m.lastRatio, m.lastBase = 0, 0, 0
	for i := range m.window {
		m.window[i] = 0
	}
}

// Stats returns the latest measurements.
func (m *MotionDetector) Stats() MotionStats {
	return MotionStats{
		Frames:       m.frameCnt,
		Events:       m.events,
		LastDiff:     m.lastDT,
		LastChanged:  m.lastRatio,
		LastBaseDiff: m.lastBase,
		Active:       m.active,
	}
}

func (m *MotionDetector) windowStats() (mean, std float64) {
	var m2 float64
	for i := 0; i < m.wCount; i++ {
		x := m.window[i]
		if i == 0 {
			mean = x
			continue
		}
		delta := x - mean
		mean += delta / float64(i+1)
		m2 += delta * (x - mean)
	}
	if m.wCount > 1 {
		if v := m2 / float64(m.wCount-1); v > 0 {
			std = math.Sqrt(v)
		}
	}
	return mean, std
}

func (m *MotionDetector) Process(f *relay.Frame, out *image.RGBA) error {
	if err := checkFrame(f, out); err != nil {
		return err
	}
	g := f.Gray
	w, h := g.Rect.Dx(), g.Rect.Dy()
	n := w * h
	if n == 0 {
		return nil
	}
	if m.prev == nil || w != m.w || h != m.h {
		m.prev = make([]byte, n)
		m.ema = make([]byte, n)
		m.w, m.h = w, h
		m.frameCnt = 0
		m.wIdx, m.wCount = 0, 0
	}

	if m.frameCnt == 0 {
		for y := 0; y < h; y++ {
			copy(m.prev[y*w:(y+1)*w], g.Pix[y*g.Stride:y*g.Stride+w])
		}
		copy(m.ema, m.prev)
		m.frameCnt++
		writeGray(out, g)
		return nil
	}

	var sumPrev, sumBase int
	changed := 0
	for y := 0; y < h; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+w]
		dst := out.Pix[y*out.Stride : y*out.Stride+w*4]
		for x, cur := range row {
			i := y*w + x
			d := int(cur) - int(m.prev[i])
			if d < 0 {
				d = -d
			}
			sumPrev += d
			db := int(cur) - int(m.ema[i])
			if db < 0 {
				db = -db
			}
			sumBase += db

			o := x * 4
			if d > pixelDiffThreshold {
				changed++
				dst[o], dst[o+1], dst[o+2], dst[o+3] = 0xFF, 0, 0, 0xFF
			} else {
				v := cur / 2
				dst[o], dst[o+1], dst[o+2], dst[o+3] = v, v, v, 0xFF
			}
		}
	}
	dt := float64(sumPrev) / float64(n)
	ratio := float64(changed) / float64(n)
	base := float64(sumBase) / float64(n)
	m.lastDT, m.lastRatio, m.lastBase = dt, ratio, base

	mean, std := m.windowStats()
	spike := m.wCount >= minFramesForStats && dt > mean+stdDevMultiplier*std && ratio > ratioThresholdSpike
	baseJump := base > baselineDiffThresh && ratio > ratioThresholdBase
	bigImmediate := m.wCount < minFramesForStats && ratio > bigImmediateRatio && dt > bigImmediateDiff
	candidate := spike || baseJump || bigImmediate

	if candidate && !m.active {
		m.events++
		ev := MotionEvent{Seq: f.Seq, MeanDiff: dt, ChangedRatio: ratio, BaseDiff: base}
		if m.logger != nil {
			m.logger.Info("motion detected", "seq", f.Seq, "dt", dt, "meanDt", mean, "stdDt", std, "changedRatio", ratio, "diffBaseMean", base)
		}
		if m.OnEvent != nil {
			m.OnEvent(ev)
		}
	}
	m.active = candidate
	// Freeze the window while a burst is in progress so it does not learn
	// the burst as normal.
	m.frozen = candidate
	if !m.frozen {
		m.window[m.wIdx] = dt
		m.wIdx = (m.wIdx + 1) % windowSize
		if m.wCount < windowSize {
			m.wCount++
		}
	}

	for y := 0; y < h; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+w]
		for x, cur := range row {
			i := y*w + x
			v := int(m.ema[i]) + int(float64(int(cur)-int(m.ema[i]))*emaAlpha)
			if v < 0 {
				v = 0
			} else if v > 255 {
				v = 255
			}
			m.ema[i] = byte(v)
			m.prev[i] = cur
		}
	}
	m.frameCnt++
	return nil
}
