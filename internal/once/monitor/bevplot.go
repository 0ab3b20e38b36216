// Package monitor renders debugging views of dataset frames and evaluation
// output. Rendering is delegated to gonum/plot and go-echarts; nothing here
// touches detection semantics.
package monitor

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/once3d/internal/once"
)

// BEVPlotter renders bird's-eye-view scatter plots of box centres, one PNG
// per frame, under a fixed output directory.
type BEVPlotter struct {
	outputDir string
	limit     [6]float64
}

// NewBEVPlotter creates a plotter writing under outputDir; the limit range
// fixes the plot axes so frames are comparable.
func NewBEVPlotter(outputDir string, limit [6]float64) (*BEVPlotter, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("create plot dir: %w", err)
	}
	return &BEVPlotter{outputDir: outputDir, limit: limit}, nil
}

// PlotFrame renders the box centres of one frame and returns the PNG path.
// Boxes are expected in the standard lidar convention; X is plotted forward
// (up the page) and Y left.
func (bp *BEVPlotter) PlotFrame(frameID string, boxes []once.Box) (string, error) {
	p := plot.New()
	p.Title.Text = "frame " + frameID
	p.X.Label.Text = "y (m, left)"
	p.Y.Label.Text = "x (m, forward)"
	p.X.Min, p.X.Max = bp.limit[1], bp.limit[4]
	p.Y.Min, p.Y.Max = bp.limit[0], bp.limit[3]
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(boxes))
	for i, b := range boxes {
		pts[i].X = b.Y
		pts[i].Y = b.X
	}
	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return "", fmt.Errorf("build scatter: %w", err)
	}
	scatter.GlyphStyle.Radius = vg.Points(2.5)
	scatter.GlyphStyle.Color = color.RGBA{R: 200, B: 60, A: 255}
	p.Add(scatter)

	path := filepath.Join(bp.outputDir, frameID+"_bev.png")
	if err := p.Save(6*vg.Inch, 6*vg.Inch, path); err != nil {
		return "", fmt.Errorf("save plot: %w", err)
	}
	return path, nil
}
