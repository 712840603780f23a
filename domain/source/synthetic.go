package source

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// SyntheticOptions configure a SyntheticSource.
type SyntheticOptions struct {
	Width  int
	Height int
	FPS    int
	// OpenDelay simulates a slow format negotiation.
	OpenDelay time.Duration
	// MaxFrames stops delivery after that many frames when > 0.
	MaxFrames int
}

// SyntheticSource renders a moving test pattern in YCbCr 4:2:0: diagonal
// luma bands plus a bright square that travels across the frame.
type SyntheticSource struct {
	opts   SyntheticOptions
	logger *slog.Logger

	mu     sync.Mutex
	opened bool
	closed bool
	stop   chan struct{}
	done   chan struct{}
	frame  *image.YCbCr

	running atomic.Bool
	frames  atomic.Uint64
}

// NewSyntheticSource returns a pattern generator. Zero options select
// 640x480 at 30 fps.
func NewSyntheticSource(opts SyntheticOptions, logger *slog.Logger) *SyntheticSource {
	if opts.Width <= 0 {
		opts.Width = 640
	}
	if opts.Height <= 0 {
		opts.Height = 480
	}
	if opts.FPS <= 0 {
		opts.FPS = 30
	}
	return &SyntheticSource{opts: opts, logger: logger}
}

// Open waits OpenDelay (or until ctx ends) and reports the configured size.
func (s *SyntheticSource) Open(ctx context.Context) (Resolution, error) {
	if s.opts.OpenDelay > 0 {
		t := time.NewTimer(s.opts.OpenDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return Resolution{}, ctx.Err()
		case <-t.C:
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Resolution{}, ErrClosed
	}
	s.opened = true
	s.frame = image.NewYCbCr(image.Rect(0, 0, s.opts.Width, s.opts.Height), image.YCbCrSubsampleRatio420)
	for i := range s.frame.Cb {
		s.frame.Cb[i] = 128
		s.frame.Cr[i] = 128
	}
	return Resolution{Width: s.opts.Width, Height: s.opts.Height}, nil
}

// Start begins emitting frames at the configured rate.
func (s *SyntheticSource) Start(h Handler) error {
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

// Stop halts delivery and waits for the loop to exit.
func (s *SyntheticSource) Stop() {
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

// Close stops delivery permanently.
func (s *SyntheticSource) Close() error {
	s.Stop()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Frames is the number of frames delivered so far.
func (s *SyntheticSource) Frames() uint64 { return s.frames.Load() }

func (s *SyntheticSource) loop(h Handler, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(time.Second / time.Duration(s.opts.FPS))
	defer ticker.Stop()
	var n int
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			Render(s.frame, n)
			h(s.frame, now.UnixNano())
			n++
			s.frames.Add(1)
			if s.opts.MaxFrames > 0 && n >= s.opts.MaxFrames {
				if s.logger != nil {
					s.logger.Debug("synthetic source exhausted", "frames", n)
				}
				// Stop would deadlock waiting on this goroutine.
				s.running.Store(false)
				return
			}
		}
	}
}

// Render draws pattern frame n into img's luma plane.
func Render(img *image.YCbCr, n int) {
	b := img.Rect
	w, h := b.Dx(), b.Dy()
	size := min(w, h) / 6
	if size < 2 {
		size = 2
	}
	span := w - size
	if span < 1 {
		span = 1
	}
	bx := (n * 4) % span
	by := (h - size) / 2
	for y := 0; y < h; y++ {
		row := img.Y[y*img.YStride : y*img.YStride+w]
		for x := 0; x < w; x++ {
			v := uint8(((x + y + n*2) / 8 % 2) * 40)
			if x >= bx && x < bx+size && y >= by && y < by+size {
				v = 235
			}
			row[x] = v + 16
		}
	}
}
