// Package diagnostic renders the residual cost surface as a PNG so an
// operator can visually sanity-check a solve: where the minima sit, how
// sharp they are, and whether the seed grid covered the right region.
package diagnostic

import (
	"fmt"
	"image/color"
	"math"

	"github.com/fogleman/gg"

	"github.com/benholden/tdoasolve/internal/tdoa"
)

// SliceOptions configures a single constant-Z slice of the residual surface.
type SliceOptions struct {
	Anchors        []tdoa.Anchor
	Speed          float64
	Z              float64 // plane height, metres
	MinX, MaxX     float64
	MinY, MaxY     float64
	Resolution     int // pixels per side; the slice is square
	Exposure       float64
	MarkEstimates  []tdoa.Vec3
	MarkAnchorsIn3 bool
}

// RenderResidualSlice samples Residual(x, y, Z) over the requested bounding
// box, tone-maps each sample through exposure/value into a blue-to-red heat
// gradient (low cost to high cost), and writes the result to path as a PNG.
// Exposure controls how quickly the gradient saturates toward the basin
// color as cost approaches zero; a value below 1.0 is replaced with the
// default of 1.0. Anchor positions are drawn as white crosses; with
// MarkAnchorsIn3 set, only anchors whose Z falls within one grid cell of the
// slice are drawn. Points in MarkEstimates are drawn as green rings.
func RenderResidualSlice(opts SliceOptions, path string) error {
	if opts.Resolution <= 0 {
		opts.Resolution = 512
	}
	if opts.MaxX <= opts.MinX || opts.MaxY <= opts.MinY {
		return fmt.Errorf("diagnostic: empty bounding box")
	}
	if len(opts.Anchors) == 0 {
		return fmt.Errorf("diagnostic: no anchors to render")
	}
	exposure := opts.Exposure
	if exposure < 1.0 {
		exposure = 1.0
	}

	n := opts.Resolution
	dc := gg.NewContext(n, n)

	for row := 0; row < n; row++ {
		y := opts.MinY + (opts.MaxY-opts.MinY)*float64(row)/float64(n-1)
		for col := 0; col < n; col++ {
			x := opts.MinX + (opts.MaxX-opts.MinX)*float64(col)/float64(n-1)
			c := tdoa.Residual(tdoa.Vec3{X: x, Y: y, Z: opts.Z}, opts.Anchors, opts.Speed)
			dc.SetColor(heatColor(1 - exposureTone(exposure, c)))
			dc.SetPixel(col, n-1-row)
		}
	}

	cellX := (opts.MaxX - opts.MinX) / float64(n-1)
	cellY := (opts.MaxY - opts.MinY) / float64(n-1)
	cellZ := math.Max(cellX, cellY)

	dc.SetLineWidth(2)
	for _, a := range opts.Anchors {
		if opts.MarkAnchorsIn3 && math.Abs(a.Position.Z-opts.Z) > cellZ {
			continue
		}
		px, py := toPixel(a.Position.X, a.Position.Y, opts, n)
		drawCross(dc, px, py, 6, color.White)
	}

	for _, e := range opts.MarkEstimates {
		px, py := toPixel(e.X, e.Y, opts, n)
		dc.SetColor(color.RGBA{R: 0, G: 220, B: 0, A: 255})
		dc.DrawCircle(px, py, 8)
		dc.Stroke()
	}

	return dc.SavePNG(path)
}

// exposureTone maps a residual cost to [0, 1] via exposure/value: a cost at
// or below zero saturates to 1 (the basin of a perfect fit), and the
// response falls off as cost grows past exposure. This keeps a narrow
// basin visually distinct from a cost surface whose background can span
// many orders of magnitude.
func exposureTone(exposure, value float64) float64 {
	if value <= 0 {
		return 1
	}
	t := exposure / value
	if t > 1 {
		t = 1
	}
	if t < 0 {
		t = 0
	}
	return t
}

func toPixel(x, y float64, opts SliceOptions, n int) (float64, float64) {
	col := (x - opts.MinX) / (opts.MaxX - opts.MinX) * float64(n-1)
	row := (y - opts.MinY) / (opts.MaxY - opts.MinY) * float64(n-1)
	return col, float64(n-1) - row
}

func drawCross(dc *gg.Context, x, y, size float64, c color.Color) {
	dc.SetColor(c)
	dc.DrawLine(x-size, y, x+size, y)
	dc.Stroke()
	dc.DrawLine(x, y-size, x, y+size)
	dc.Stroke()
}

// heatColor maps t in [0, 1] (low cost to high cost) to a blue-white-red
// gradient, so the basin of a minimum reads as a cool patch against a hot
// background.
func heatColor(t float64) color.Color {
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	switch {
	case t < 0.5:
		u := t / 0.5
		return color.RGBA{
			R: uint8(u * 255),
			G: uint8(u * 255),
			B: 255,
			A: 255,
		}
	default:
		u := (t - 0.5) / 0.5
		return color.RGBA{
			R: 255,
			G: uint8((1 - u) * 255),
			B: uint8((1 - u) * 255),
			A: 255,
		}
	}
}
