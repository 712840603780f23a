package model

import (
	"image"
	"sync/atomic"
)

// PreviewModel tracks whether the pipeline is enabled from the UI's point of
// view and which result sequence the preview currently shows. Enabled is
// read from worker goroutines and must stay atomic; the remaining fields
// are touched only on the Tk goroutine.
type PreviewModel struct {
	enabled atomic.Bool

	shownSeq uint64
	redraws  uint64
	region   image.Rectangle
}

// NewPreviewModel returns a disabled model.
func NewPreviewModel() *PreviewModel { return &PreviewModel{} }

// Enabled reports whether a run was requested.
func (m *PreviewModel) Enabled() bool {
	if m == nil {
		return false
	}
	return m.enabled.Load()
}

// SetEnabled stores the enabled flag.
func (m *PreviewModel) SetEnabled(b bool) {
	if m == nil {
		return
	}
	m.enabled.Store(b)
}

// ShouldRedraw reports whether seq is newer than what is on screen.
func (m *PreviewModel) ShouldRedraw(seq uint64) bool {
	return m != nil && seq > m.shownSeq
}

// MarkShown records that seq is now displayed.
func (m *PreviewModel) MarkShown(seq uint64) {
	if m == nil || seq <= m.shownSeq {
		return
	}
	m.shownSeq = seq
	m.redraws++
}

// Shown returns the displayed sequence and the number of redraws so far.
func (m *PreviewModel) Shown() (seq, redraws uint64) {
	if m == nil {
		return 0, 0
	}
	return m.shownSeq, m.redraws
}

// SetRegion sets the highlighted region in result coordinates. An empty
// rectangle clears it.
func (m *PreviewModel) SetRegion(r image.Rectangle) {
	if m == nil {
		return
	}
	if r.Empty() {
		m.region = image.Rectangle{}
		return
	}
	m.region = r
}

// Region returns the highlighted region, possibly empty.
func (m *PreviewModel) Region() image.Rectangle {
	if m == nil {
		return image.Rectangle{}
	}
	return m.region
}

// Reset forgets the displayed sequence so a new run redraws from scratch.
func (m *PreviewModel) Reset() {
	if m == nil {
		return
	}
	m.shownSeq = 0
	m.region = image.Rectangle{}
}
