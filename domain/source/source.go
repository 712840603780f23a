// Package source defines the frame source contract and the concrete sources
// the relay can be fed from.
package source

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"strings"

	"github.com/soocke/framerelay/config"
)

// Handler receives frames from a source. Calls never overlap for a given
// source. img is only valid for the duration of the call; the receiver must
// copy what it needs before returning.
type Handler func(img image.Image, timestamp int64)

// Source produces frames on its own goroutine.
type Source interface {
	// Open negotiates the output format and may block. It must honour ctx.
	Open(ctx context.Context) (Resolution, error)
	// Start begins delivering frames to h. It requires a successful Open.
	Start(h Handler) error
	// Stop halts delivery and waits for the last callback to return.
	Stop()
	// Close releases the device. The source cannot be reused afterwards.
	Close() error
}

var (
	// ErrNotOpen is returned by Start before a successful Open.
	ErrNotOpen = errors.New("source: not open")
	// ErrClosed is returned by operations on a closed source.
	ErrClosed = errors.New("source: closed")
	// ErrUnknownSource is returned by New for an unrecognised kind.
	ErrUnknownSource = errors.New("source: unknown kind")
)

// Resolution is a negotiated frame size in pixels.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// IsZero reports whether either dimension is unset.
func (r Resolution) IsZero() bool { return r.Width <= 0 || r.Height <= 0 }

func (r Resolution) String() string { return fmt.Sprintf("%dx%d", r.Width, r.Height) }

// SelectResolution returns the candidate closest to target, measured as
// |w-tw| + |h-th|. The first candidate wins ties. It returns false when
// candidates is empty.
func SelectResolution(candidates []Resolution, target Resolution) (Resolution, bool) {
	if len(candidates) == 0 {
		return Resolution{}, false
	}
	best := 0
	bestErr := math.MaxInt
	for i, c := range candidates {
		e := abs(c.Width-target.Width) + abs(c.Height-target.Height)
		if e < bestErr {
			best, bestErr = i, e
		}
	}
	return candidates[best], true
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// New builds the source named by cfg.Source.
func New(cfg *config.Config, logger *slog.Logger) (Source, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	switch strings.ToLower(cfg.Source) {
	case "synthetic", "":
		return NewSyntheticSource(SyntheticOptions{
			Width:  cfg.Width,
			Height: cfg.Height,
			FPS:    cfg.FPS,
		}, logger), nil
	case "screen":
		var sel *image.Rectangle
		if cfg.SelectionW > 0 && cfg.SelectionH > 0 {
			r := image.Rect(cfg.SelectionX, cfg.SelectionY, cfg.SelectionX+cfg.SelectionW, cfg.SelectionY+cfg.SelectionH)
			sel = &r
		}
		return NewScreenSource(ScreenOptions{
			Interval:  cfg.FrameInterval(),
			Selection: func() *image.Rectangle { return sel },
		}, logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, cfg.Source)
	}
}
