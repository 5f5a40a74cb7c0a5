//go:build !gocv
// +build !gocv

package vision

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/paulmach/orb"

	"ortho-mapper/internal/domain/entity"
	"ortho-mapper/internal/domain/port"
)

// Renderer draws overlays without OpenCV. Class counts are not drawn.
type Renderer struct {
	Radius    int
	Thickness int
	Quality   int
	MaxSide   int // larger images are downscaled first; 0 keeps the size
}

// NewRenderer creates a renderer with default styling.
func NewRenderer() *Renderer {
	return &Renderer{Radius: 5, Thickness: 2, Quality: 90, MaxSide: 2048}
}

// Annotate draws bbox centers and centerline segments on the tile image.
func (r *Renderer) Annotate(ctx context.Context, imagePath string, overlay entity.TileOverlay) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := imaging.Open(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read image %s: %w", imagePath, err)
	}

	scale := 1.0
	b := src.Bounds()
	if r.MaxSide > 0 && (b.Dx() > r.MaxSide || b.Dy() > r.MaxSide) {
		src = imaging.Fit(src, r.MaxSide, r.MaxSide, imaging.Lanczos)
		scale = float64(src.Bounds().Dx()) / float64(b.Dx())
	}
	img := imaging.Clone(src)

	red := color.NRGBA{R: 255, A: 255}
	yellow := color.NRGBA{R: 255, G: 255, A: 255}

	for _, s := range overlay.Segments {
		drawLine(img, scalePoint(s.A, scale), scalePoint(s.B, scale), r.Thickness, yellow)
	}
	for _, c := range overlay.Centers {
		p := scalePoint(c, scale)
		fillCircle(img, int(math.Round(p[0])), int(math.Round(p[1])), r.Radius, red)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(r.Quality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func scalePoint(p orb.Point, s float64) orb.Point {
	return orb.Point{p[0] * s, p[1] * s}
}

func fillCircle(img *image.NRGBA, cx, cy, radius int, c color.NRGBA) {
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= radius*radius {
				setPixel(img, cx+dx, cy+dy, c)
			}
		}
	}
}

// drawLine steps along the segment one pixel at a time with a square brush.
func drawLine(img *image.NRGBA, a, b orb.Point, thickness int, c color.NRGBA) {
	half := thickness / 2
	steps := int(math.Ceil(math.Max(math.Abs(b[0]-a[0]), math.Abs(b[1]-a[1]))))
	if steps == 0 {
		steps = 1
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		x := int(math.Round(a[0] + (b[0]-a[0])*t))
		y := int(math.Round(a[1] + (b[1]-a[1])*t))
		for dy := -half; dy <= half; dy++ {
			for dx := -half; dx <= half; dx++ {
				setPixel(img, x+dx, y+dy, c)
			}
		}
	}
}

func setPixel(img *image.NRGBA, x, y int, c color.NRGBA) {
	if image.Pt(x, y).In(img.Bounds()) {
		img.SetNRGBA(x, y, c)
	}
}

var _ port.TileRenderer = (*Renderer)(nil)
