//go:build gocv
// +build gocv

package vision

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"gocv.io/x/gocv"

	"ortho-mapper/internal/domain/entity"
	"ortho-mapper/internal/domain/port"
)

type Renderer struct {
	Radius    int
	Thickness int
	Quality   int
}

// NewRenderer creates an OpenCV renderer.
func NewRenderer() *Renderer {
	return &Renderer{Radius: 5, Thickness: 2, Quality: 90}
}

// Annotate draws bbox centers, centerline segments and per-class counts.
func (r *Renderer) Annotate(ctx context.Context, imagePath string, overlay entity.TileOverlay) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mat := gocv.IMRead(imagePath, gocv.IMReadColor)
	if mat.Empty() {
		return nil, fmt.Errorf("failed to read image %s", imagePath)
	}
	defer mat.Close()

	red := color.RGBA{R: 255, A: 255}
	yellow := color.RGBA{R: 255, G: 255, A: 255}
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}

	for _, s := range overlay.Segments {
		gocv.Line(&mat, toImagePoint(s.A), toImagePoint(s.B), yellow, r.Thickness)
	}
	for _, c := range overlay.Centers {
		gocv.Circle(&mat, toImagePoint(c), r.Radius, red, -1)
	}

	classes := make([]string, 0, len(overlay.ClassCounts))
	for class := range overlay.ClassCounts {
		classes = append(classes, class)
	}
	sort.Strings(classes)
	for i, class := range classes {
		text := fmt.Sprintf("%s: %d", class, overlay.ClassCounts[class])
		gocv.PutText(&mat, text, image.Pt(10, 25+22*i), gocv.FontHersheySimplex, 0.6, white, 2)
	}

	img, err := mat.ToImage()
	if err != nil {
		return nil, err
	}
	if img == nil {
		return nil, errors.New("empty image")
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: r.Quality}); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

var _ port.TileRenderer = (*Renderer)(nil)

func toImagePoint(p orb.Point) image.Point {
	return image.Pt(int(math.Round(p[0])), int(math.Round(p[1])))
}
