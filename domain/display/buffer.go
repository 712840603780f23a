// Package display holds the processed-result double buffer shared between
// the worker and whatever redraws the result.
package display

import (
	"image"
	"sync"

	"github.com/soocke/framerelay/domain/convert"
)

// Buffer is a front/back pair of RGBA images guarded by its own mutex. The
// worker renders into Back and then calls Publish; readers only ever see the
// front image, and only under the lock.
type Buffer struct {
	mu       sync.Mutex
	front    *image.RGBA
	back     *image.RGBA
	frontSeq uint64
	epoch    uint64

	published uint64
	stale     uint64
}

// Version identifies a published result. Seq restarts with every run, so
// Epoch tells results of different runs apart.
type Version struct {
	Epoch uint64
	Seq   uint64
}

// NewBuffer returns an empty buffer.
func NewBuffer() *Buffer { return &Buffer{} }

// Back returns the image the worker may draw into, sized w x h. It must only
// be called from the single rendering goroutine.
func (b *Buffer) Back(w, h int) *image.RGBA {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.back = convert.EnsureRGBA(b.back, w, h)
	return b.back
}

// Publish makes the back image the front one. Results older than or equal
// to the current front sequence are discarded and Publish returns false.
func (b *Buffer) Publish(seq uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.back == nil || (b.front != nil && seq <= b.frontSeq) {
		b.stale++
		return false
	}
	b.front, b.back = b.back, b.front
	b.frontSeq = seq
	b.published++
	return true
}

// Seq is the sequence of the current front image, 0 when nothing has been
// published.
func (b *Buffer) Seq() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frontSeq
}

// Version returns the epoch and sequence of the current front image.
func (b *Buffer) Version() Version {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Version{Epoch: b.epoch, Seq: b.frontSeq}
}

// Reset drops the front image and starts a new epoch. Sequences of the next
// run are accepted from 1 again. It must not race with Back or Publish.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.front != nil && b.back == nil {
		b.back = b.front
	}
	b.front = nil
	b.frontSeq = 0
	b.published, b.stale = 0, 0
	b.epoch++
}

// View calls fn with the front image while holding the lock. fn must not
// retain img and must not call back into the buffer.
func (b *Buffer) View(fn func(img *image.RGBA, seq uint64)) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.front == nil {
		return false
	}
	fn(b.front, b.frontSeq)
	return true
}

// Snapshot copies the front image into dst (reallocated when too small) and
// returns it with its sequence. It returns nil when nothing is published.
func (b *Buffer) Snapshot(dst *image.RGBA) (*image.RGBA, uint64) {
	img, v := b.SnapshotVersion(dst)
	return img, v.Seq
}

// SnapshotVersion is Snapshot reporting the full version of the copy.
func (b *Buffer) SnapshotVersion(dst *image.RGBA) (*image.RGBA, Version) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.front == nil {
		return nil, Version{Epoch: b.epoch}
	}
	dst = convert.EnsureRGBA(dst, b.front.Rect.Dx(), b.front.Rect.Dy())
	copy(dst.Pix, b.front.Pix)
	return dst, Version{Epoch: b.epoch, Seq: b.frontSeq}
}

// Counts returns how many results were published and how many were
// discarded as stale.
func (b *Buffer) Counts() (published, stale uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.published, b.stale
}
