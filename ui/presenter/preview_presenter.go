package presenter

import (
	"image"
	"log/slog"

	"github.com/soocke/framerelay/domain/display"
	"github.com/soocke/framerelay/ui/images"
	"github.com/soocke/framerelay/ui/model"
)

// PreviewView is the UI surface showing results.
type PreviewView interface {
	UpdatePreview(img image.Image)
	UpdateDetail(img image.Image)
}

// RegionFunc reports a region of interest in result coordinates, for
// example the tracker's current box.
type RegionFunc func() (image.Rectangle, bool)

const (
	detailPad     = 8
	detailMagnify = 2
)

// PreviewPresenter redraws the preview from the display buffer. It only
// touches the buffer after the notifier fired, so an idle pipeline costs
// one channel poll per tick.
type PreviewPresenter struct {
	buf    *display.Buffer
	wake   <-chan struct{}
	model  *model.PreviewModel
	view   PreviewView
	region RegionFunc
	logger *slog.Logger

	scratch *image.RGBA
}

func NewPreviewPresenter(buf *display.Buffer, wake <-chan struct{}, m *model.PreviewModel, view PreviewView, region RegionFunc, logger *slog.Logger) *PreviewPresenter {
	return &PreviewPresenter{buf: buf, wake: wake, model: m, view: view, region: region, logger: logger}
}

// ProcessFrame redraws when a newer result was published since the last call.
func (p *PreviewPresenter) ProcessFrame() {
	if p == nil || p.buf == nil || p.view == nil || p.model == nil {
		return
	}
	select {
	case <-p.wake:
	default:
		return
	}
	if !p.model.Enabled() {
		return
	}
	img, seq := p.buf.Snapshot(p.scratch)
	if img == nil || !p.model.ShouldRedraw(seq) {
		return
	}
	p.scratch = img
	p.view.UpdatePreview(img)
	p.model.MarkShown(seq)

	if p.region == nil {
		return
	}
	r, ok := p.region()
	if !ok {
		p.model.SetRegion(image.Rectangle{})
		return
	}
	p.model.SetRegion(r)
	detail, _, err := images.ExtractRegion(img, r, detailPad)
	if err != nil {
		if p.logger != nil {
			p.logger.Debug("detail extract failed", "error", err)
		}
		return
	}
	p.view.UpdateDetail(images.Magnify(detail, detailMagnify))
}

// Reset forgets what is on screen so the next run redraws immediately.
func (p *PreviewPresenter) Reset() {
	if p == nil || p.model == nil {
		return
	}
	p.model.Reset()
}
