//go:build gocv

package process

import (
	"fmt"
	"image"
	"log/slog"

	"gocv.io/x/gocv"

	"github.com/soocke/framerelay/config"
	"github.com/soocke/framerelay/domain/relay"
)

func init() {
	Register("canny", func(*config.Config, *slog.Logger) (Operation, error) {
		return &Canny{Low: 50, High: 150}, nil
	})
}

// Canny runs OpenCV's Canny edge detector on the gray plane.
type Canny struct {
	Low, High float32
}

func (c *Canny) Name() string { return "canny" }

func (c *Canny) Process(f *relay.Frame, out *image.RGBA) error {
	if err := checkFrame(f, out); err != nil {
		return err
	}
	src, err := gocv.ImageGrayToMatGray(f.Gray)
	if err != nil {
		return fmt.Errorf("process: canny input: %w", err)
	}
	defer src.Close()
	edges := gocv.NewMat()
	defer edges.Close()
	if err := gocv.Canny(src, &edges, c.Low, c.High); err != nil {
		return fmt.Errorf("process: canny: %w", err)
	}
	img, err := edges.ToImage()
	if err != nil {
		return fmt.Errorf("process: canny output: %w", err)
	}
	g, ok := img.(*image.Gray)
	if !ok {
		return fmt.Errorf("process: canny output type %T", img)
	}
	writeGray(out, g)
	return nil
}
