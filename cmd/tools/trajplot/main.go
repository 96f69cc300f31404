// trajplot renders a trajectory library as PNG images, one per block,
// with every category's paths overlaid. Useful for eyeballing a
// synthesized library before running participants with it.
package main

import (
	"flag"
	"fmt"
	"image/color"
	"log"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/percept-data/pursuit/internal/trajectory"
)

func main() {
	input := flag.String("i", "config/trajectories.json", "trajectory library path")
	outDir := flag.String("o", "plots", "output directory for PNG files")
	flag.Parse()

	lib, err := trajectory.LoadLibrary(*input)
	if err != nil {
		log.Fatalf("Failed to load library: %v", err)
	}
	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatalf("Failed to create output dir: %v", err)
	}

	for _, block := range lib.Blocks() {
		file := filepath.Join(*outDir, fmt.Sprintf("trajectories_%s.png", block))
		if err := plotBlock(lib, block, file); err != nil {
			log.Fatalf("Failed to plot block %s: %v", block, err)
		}
		log.Printf("wrote %s", file)
	}
}

func plotBlock(lib *trajectory.Library, block, file string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Block %s trajectories", block)
	p.X.Label.Text = "x (px)"
	p.Y.Label.Text = "y (px)"

	categories := lib.Categories(block)
	colors := palette(len(categories))
	for ci, cat := range categories {
		for i := 0; i < lib.Count(block, cat); i++ {
			traj := lib.Trajectory(block, cat, i)
			pts := make(plotter.XYs, 0, traj.NumPoints())
			for _, pt := range traj.Points() {
				pts = append(pts, plotter.XY{X: pt.X, Y: pt.Y})
			}
			if len(pts) == 0 {
				continue
			}
			line, err := plotter.NewLine(pts)
			if err != nil {
				return err
			}
			line.Color = colors[ci]
			line.Width = vg.Points(1)
			p.Add(line)
			if i == 0 {
				p.Legend.Add(cat, line)
			}
		}
	}

	p.Legend.Top = true
	return p.Save(10*vg.Inch, 6*vg.Inch, file)
}

// palette returns n visually distinct line colors.
func palette(n int) []color.Color {
	base := []color.Color{
		color.RGBA{R: 31, G: 119, B: 180, A: 255},
		color.RGBA{R: 255, G: 127, B: 14, A: 255},
		color.RGBA{R: 44, G: 160, B: 44, A: 255},
		color.RGBA{R: 214, G: 39, B: 40, A: 255},
		color.RGBA{R: 148, G: 103, B: 189, A: 255},
		color.RGBA{R: 140, G: 86, B: 75, A: 255},
	}
	colors := make([]color.Color, n)
	for i := range colors {
		colors[i] = base[i%len(base)]
	}
	return colors
}
