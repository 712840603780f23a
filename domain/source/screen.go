package source

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vova616/screenshot"
)

const captureStatsLogInterval = 5 * time.Second

// ScreenOptions configure a ScreenSource.
type ScreenOptions struct {
	// Interval is the minimum time between grabs.
	Interval time.Duration
	// Selection optionally restricts the grab to a rectangle. A nil or empty
	// result captures the full screen.
	Selection func() *image.Rectangle
}

// CaptureStats summarises the screen grab loop.
type CaptureStats struct {
	Captures   uint64        `json:"captures"`
	Skipped    uint64        `json:"skipped"`
	AvgCapture time.Duration `json:"avg_capture"`
	Sequence   uint64        `json:"sequence"`
}

// ScreenSource polls the desktop for frames.
type ScreenSource struct {
	opts   ScreenOptions
	logger *slog.Logger

	grabFull   func() (*image.RGBA, error)
	grabRect   func(image.Rectangle) (*image.RGBA, error)
	screenRect func() (image.Rectangle, error)

	mu     sync.Mutex
	opened bool
	closed bool
	stop   chan struct{}
	done   chan struct{}

	running      atomic.Bool
	captures     atomic.Uint64
	skipped      atomic.Uint64
	captureNanos atomic.Uint64
	sequence     atomic.Uint64
}

// NewScreenSource constructs a screen source backed by the screenshot package.
func NewScreenSource(opts ScreenOptions, logger *slog.Logger) *ScreenSource {
	if opts.Interval <= 0 {
		opts.Interval = time.Second / 30
	}
	return &ScreenSource{
		opts:       opts,
		logger:     logger,
		grabFull:   screenshot.CaptureScreen,
		grabRect:   screenshot.CaptureRect,
		screenRect: screenshot.ScreenRect,
	}
}

func (s *ScreenSource) selection() *image.Rectangle {
	if s.opts.Selection == nil {
		return nil
	}
	if r := s.opts.Selection(); r != nil && !r.Empty() {
		return r
	}
	return nil
}

// Open reports the size of the selection, or of the screen when no
// selection is set.
func (s *ScreenSource) Open(ctx context.Context) (Resolution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Resolution{}, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return Resolution{}, err
	}
	var r image.Rectangle
	if sel := s.selection(); sel != nil {
		r = *sel
	} else {
		full, err := s.screenRect()
		if err != nil {
			return Resolution{}, err
		}
		r = full
	}
	if r.Empty() {
		return Resolution{}, errors.New("source: empty screen rectangle")
	}
	s.opened = true
	return Resolution{Width: r.Dx(), Height: r.Dy()}, nil
}

// Start launches the grab loop.
func (s *ScreenSource) Start(h Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if !s.opened {
		return ErrNotOpen
	}
	if s.running.Load() {
		return nil
	}
	s.running.Store(true)
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(h, s.stop, s.done)
	return nil
}

// Stop halts the loop and waits for it to exit.
func (s *ScreenSource) Stop() {
	s.mu.Lock()
	if !s.running.Load() {
		s.mu.Unlock()
		return
	}
	s.running.Store(false)
	close(s.stop)
	done := s.done
	s.mu.Unlock()
	<-done
}

// Close stops the loop. The source cannot be reopened.
func (s *ScreenSource) Close() error {
	s.Stop()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Running reports whether the grab loop is active.
func (s *ScreenSource) Running() bool { return s.running.Load() }

// Stats returns capture counters.
func (s *ScreenSource) Stats() CaptureStats {
	captures := s.captures.Load()
	var avg time.Duration
	if captures > 0 {
		avg = time.Duration(s.captureNanos.Load() / captures)
	}
	return CaptureStats{
		Captures:   captures,
		Skipped:    s.skipped.Load(),
		AvgCapture: avg,
		Sequence:   s.sequence.Load(),
	}
}

func (s *ScreenSource) grab() *image.RGBA {
	if r := s.selection(); r != nil {
		img, err := s.grabRect(*r)
		if err == nil {
			return img
		}
		if s.logger != nil {
			s.logger.Error("capture selection", "error", err)
		}
	}
	img, err := s.grabFull()
	if err != nil {
		if s.logger != nil {
			s.logger.Error("capture full", "error", err)
		}
		return nil
	}
	return img
}

func (s *ScreenSource) loop(h Handler, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	logTicker := time.NewTicker(captureStatsLogInterval)
	defer logTicker.Stop()
	for {
		select {
		case <-stop:
			return
		default:
		}
		start := time.Now()
		img := s.grab()
		if img == nil {
			s.skipped.Add(1)
			if !s.sleep(stop, time.Millisecond) {
				return
			}
			continue
		}
		elapsed := time.Since(start)
		s.captureNanos.Add(uint64(elapsed.Nanoseconds()))
		s.captures.Add(1)
		s.sequence.Add(1)
		h(img, start.UnixNano())

		select {
		case <-logTicker.C:
			s.logStats()
		default:
		}

		if wait := s.opts.Interval - time.Since(start); wait > 0 {
			if !s.sleep(stop, wait) {
				return
			}
		}
	}
}

func (s *ScreenSource) sleep(stop <-chan struct{}, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-stop:
		return false
	case <-t.C:
		return true
	}
}

func (s *ScreenSource) logStats() {
	if s.logger == nil {
		return
	}
	stats := s.Stats()
	s.logger.Debug("capture.stats",
		"captures", stats.Captures,
		"skipped", stats.Skipped,
		"avg_capture", stats.AvgCapture,
	)
}
