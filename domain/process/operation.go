// Package process holds the per-frame operations a worker can run and the
// registry that builds them by name.
package process

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/soocke/framerelay/config"
	"github.com/soocke/framerelay/domain/relay"
)

// Operation renders one processed frame into out. out has the frame's
// dimensions and origin (0,0); implementations overwrite every pixel.
// Operations are called from a single worker goroutine.
type Operation interface {
	Name() string
	Process(f *relay.Frame, out *image.RGBA) error
}

// Factory builds an operation from configuration.
type Factory func(cfg *config.Config, logger *slog.Logger) (Operation, error)

var (
	// ErrUnknownOperation is returned by New for an unregistered name.
	ErrUnknownOperation = errors.New("process: unknown operation")
	// ErrNoInput is returned when the frame carries no gray plane.
	ErrNoInput = errors.New("process: frame has no gray plane")
	// ErrSizeMismatch is returned when out does not match the frame.
	ErrSizeMismatch = errors.New("process: output size does not match frame")
)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes an operation available to New. It panics on duplicates.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	name = strings.ToLower(name)
	if _, dup := registry[name]; dup {
		panic("process: duplicate operation " + name)
	}
	registry[name] = f
}

// New builds the named operation.
func New(name string, cfg *config.Config, logger *slog.Logger) (Operation, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	registryMu.RLock()
	f := registry[strings.ToLower(name)]
	registryMu.RUnlock()
	if f == nil {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownOperation, name, strings.Join(Names(), ", "))
	}
	return f(cfg, logger)
}

// Names lists registered operations in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func init() {
	Register("gray", func(*config.Config, *slog.Logger) (Operation, error) { return Gray{}, nil })
	Register("edge", func(*config.Config, *slog.Logger) (Operation, error) { return Edge{}, nil })
	Register("blur", func(cfg *config.Config, _ *slog.Logger) (Operation, error) {
		return Blur{Sigma: cfg.BlurSigma}, nil
	})
	Register("threshold", func(*config.Config, *slog.Logger) (Operation, error) { return Threshold{}, nil })
	Register("motion", func(_ *config.Config, logger *slog.Logger) (Operation, error) {
		return NewMotionDetector(logger), nil
	})
	Register("track", func(cfg *config.Config, logger *slog.Logger) (Operation, error) {
		return NewTracker(TrackerOptions{
			TemplateSize: cfg.TrackTemplatePx,
			Threshold:    cfg.TrackThreshold,
			Stride:       cfg.TrackStride,
		}, logger), nil
	})
}

// checkFrame validates the common preconditions.
func checkFrame(f *relay.Frame, out *image.RGBA) error {
	if f == nil || f.Gray == nil {
		return ErrNoInput
	}
	if out == nil || out.Rect.Dx() != f.Gray.Rect.Dx() || out.Rect.Dy() != f.Gray.Rect.Dy() {
		return ErrSizeMismatch
	}
	return nil
}

// writeGray expands a gray plane into out.
func writeGray(out *image.RGBA, g *image.Gray) {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	for y := 0; y < h; y++ {
		src := g.Pix[y*g.Stride : y*g.Stride+w]
		dst := out.Pix[y*out.Stride : y*out.Stride+w*4]
		for x, v := range src {
			i := x * 4
			dst[i], dst[i+1], dst[i+2], dst[i+3] = v, v, v, 0xFF
		}
	}
}

// Gray shows the luminance plane.
type Gray struct{}

func (Gray) Name() string { return "gray" }

func (Gray) Process(f *relay.Frame, out *image.RGBA) error {
	if err := checkFrame(f, out); err != nil {
		return err
	}
	writeGray(out, f.Gray)
	return nil
}

// Threshold binarises the gray plane around its global mean.
type Threshold struct{}

func (Threshold) Name() string { return "threshold" }

func (Threshold) Process(f *relay.Frame, out *image.RGBA) error {
	if err := checkFrame(f, out); err != nil {
		return err
	}
	g := f.Gray
	w, h := g.Rect.Dx(), g.Rect.Dy()
	if w == 0 || h == 0 {
		return nil
	}
	var sum uint64
	for y := 0; y < h; y++ {
		for _, v := range g.Pix[y*g.Stride : y*g.Stride+w] {
			sum += uint64(v)
		}
	}
	mean := uint8(sum / uint64(w*h))
	for y := 0; y < h; y++ {
		src := g.Pix[y*g.Stride : y*g.Stride+w]
		dst := out.Pix[y*out.Stride : y*out.Stride+w*4]
		for x, v := range src {
			var o uint8
			if v > mean {
				o = 0xFF
			}
			i := x * 4
			dst[i], dst[i+1], dst[i+2], dst[i+3] = o, o, o, 0xFF
		}
	}
	return nil
}
