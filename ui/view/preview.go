package view

import (
	"image"

	"github.com/soocke/framerelay/ui/images"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

// PreviewPane shows the latest processed result and an optional magnified
// detail of the tracked region.
type PreviewPane interface {
	UpdatePreview(img image.Image)
	UpdateDetail(img image.Image)
	Reset()
}

type previewPane struct {
	previewLabel *LabelWidget
	detailLabel  *LabelWidget
	maxW, maxH   int
	// Photos are deleted before being replaced so Tk does not keep every
	// frame alive.
	previewPhoto *Img
	detailPhoto  *Img
}

const (
	maxPreviewW = 640
	maxPreviewH = 360
	maxDetailW  = 200
	maxDetailH  = 200
)

func placeholderPNG() []byte {
	return images.EncodePNG(image.NewRGBA(image.Rect(0, 0, 200, 120)))
}

// NewPreviewPane grids the preview across columns 0-3 of row and the
// detail at column 4.
func NewPreviewPane(row int) PreviewPane {
	pngBytes := placeholderPNG()
	prevPhoto := NewPhoto(Data(pngBytes))
	detPhoto := NewPhoto(Data(pngBytes))
	preview := Label(Image(prevPhoto), Borderwidth(1), Relief("sunken"))
	detail := Label(Image(detPhoto), Borderwidth(1), Relief("sunken"))
	Grid(preview, Row(row), Column(0), Columnspan(4), Sticky("nwe"), Padx("0.4m"), Pady("0.4m"))
	Grid(detail, Row(row), Column(4), Sticky("n"), Padx("0.4m"), Pady("0.4m"))
	return &previewPane{
		previewLabel: preview,
		detailLabel:  detail,
		maxW:         maxPreviewW,
		maxH:         maxPreviewH,
		previewPhoto: prevPhoto,
		detailPhoto:  detPhoto,
	}
}

func (v *previewPane) UpdatePreview(img image.Image) {
	if v.previewLabel == nil || img == nil {
		return
	}
	pngBytes := images.EncodePNG(images.ScaleToFit(img, v.maxW, v.maxH))
	if v.previewPhoto != nil {
		v.previewPhoto.Delete()
	}
	v.previewPhoto = NewPhoto(Data(pngBytes))
	v.previewLabel.Configure(Image(v.previewPhoto))
}

func (v *previewPane) UpdateDetail(img image.Image) {
	if v.detailLabel == nil || img == nil {
		return
	}
	pngBytes := images.EncodePNG(images.ScaleToFit(img, maxDetailW, maxDetailH))
	if v.detailPhoto != nil {
		v.detailPhoto.Delete()
	}
	v.detailPhoto = NewPhoto(Data(pngBytes))
	v.detailLabel.Configure(Image(v.detailPhoto))
}

func (v *previewPane) Reset() {
	pngBytes := placeholderPNG()
	if v.previewLabel != nil {
		if v.previewPhoto != nil {
			v.previewPhoto.Delete()
		}
		v.previewPhoto = NewPhoto(Data(pngBytes))
		v.previewLabel.Configure(Image(v.previewPhoto))
	}
	if v.detailLabel != nil {
		if v.detailPhoto != nil {
			v.detailPhoto.Delete()
		}
		v.detailPhoto = NewPhoto(Data(pngBytes))
		v.detailLabel.Configure(Image(v.detailPhoto))
	}
}
