// Package relay implements the two-slot frame handoff between a capture
// source and a single processing worker.
//
// The producer never waits: if the camera-side slot is held it drops the
// frame. The worker only ever processes the newest stamped frame, so stale
// frames are skipped rather than queued.
package relay

import (
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soocke/framerelay/domain/convert"
)

// Options tune a Relay. Zero values select defaults.
type Options struct {
	Mode         convert.ColorMode
	Decay        float64
	WarmUp       int
	ProfileEvery int
}

// Relay owns the slot pair and the counters shared by producer and worker.
type Relay struct {
	pair   *Pair
	mode   convert.ColorMode
	logger *slog.Logger

	seq       atomic.Uint64
	submitted atomic.Uint64
	dropped   atomic.Uint64
	processed atomic.Uint64
	failed    atomic.Uint64
	lastDone  atomic.Uint64

	profileEvery uint64

	// wake is signalled after each stamped frame; the worker may block on it
	// for a bounded time when idle.
	wake chan struct{}

	timingMu    sync.Mutex
	convertTime timing
	processTime timing
}

// New constructs a relay with freshly allocated slots.
func New(opts Options, logger *slog.Logger) *Relay {
	every := opts.ProfileEvery
	if every <= 0 {
		every = 500
	}
	warm := opts.WarmUp
	if warm < 0 {
		warm = 0
	}
	return &Relay{
		pair:         NewPair(),
		mode:         opts.Mode,
		logger:       logger,
		profileEvery: uint64(every),
		wake:         make(chan struct{}, 1),
		convertTime:  newTiming(opts.Decay, warm),
		processTime:  newTiming(opts.Decay, warm),
	}
}

// Pair exposes the slot pair.
func (r *Relay) Pair() *Pair { return r.pair }

// Submit offers one frame from the source. It returns false when the
// camera-side slot is busy and the frame was dropped. Submit must be called
// from a single goroutine at a time (the source callback context).
func (r *Relay) Submit(img image.Image, timestamp int64) bool {
	cam := r.pair.Camera()
	if !cam.TryMarkBusy() {
		r.dropped.Add(1)
		return false
	}
	start := time.Now()
	cam.Planes.Load(img, r.mode)
	cam.Seq = r.seq.Add(1)
	cam.Timestamp = timestamp
	cam.MarkFree()
	elapsed := time.Since(start)

	r.timingMu.Lock()
	r.convertTime.add(elapsed)
	r.timingMu.Unlock()

	n := r.submitted.Add(1)
	select {
	case r.wake <- struct{}{}:
	default:
	}
	if n%r.profileEvery == 0 {
		r.logProfile(n)
	}
	return true
}

func (r *Relay) recordProcess(d time.Duration, seq uint64, err error) {
	if err != nil {
		r.failed.Add(1)
	} else {
		r.processed.Add(1)
	}
	r.lastDone.Store(seq)
	r.timingMu.Lock()
	r.processTime.add(d)
	r.timingMu.Unlock()
}

// Stats returns a snapshot of the relay counters and timings.
func (r *Relay) Stats() Stats {
	r.timingMu.Lock()
	conv := r.convertTime.avg
	proc := r.processTime.avg
	r.timingMu.Unlock()
	return Stats{
		Submitted:     r.submitted.Load(),
		Dropped:       r.dropped.Load(),
		Processed:     r.processed.Load(),
		Failed:        r.failed.Load(),
		LastSeq:       r.seq.Load(),
		LastProcessed: r.lastDone.Load(),
		Convert:       conv,
		Process:       proc,
	}
}

func (r *Relay) logProfile(frames uint64) {
	if r.logger == nil {
		return
	}
	st := r.Stats()
	r.logger.Info("relay.profile",
		"frames", frames,
		"convert_ms", st.Convert.Average,
		"process_ms", st.Process.Average,
		"process_max_ms", st.Process.Maximum,
		"dropped", st.Dropped,
		"failed", st.Failed,
	)
}
