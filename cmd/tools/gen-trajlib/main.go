// gen-trajlib synthesizes a trajectory library JSON file so an
// experiment can run without recorded paths. Categories are condition
// codes; each gets a set of smooth random polylines.
package main

import (
	"flag"
	"log"
	"math/rand"
	"strings"

	"github.com/percept-data/pursuit/internal/trajectory"
)

func main() {
	output := flag.String("o", "config/trajectories.json", "output library path")
	blocks := flag.String("blocks", "block1,block2", "comma-separated block names")
	categories := flag.String("categories", "111111,111211,121112,121213,131113,131212",
		"comma-separated condition codes")
	perCategory := flag.Int("per-category", 4, "trajectories per category")
	numPoints := flag.Int("points", 12, "points per trajectory")
	width := flag.Float64("width", 1280, "drawing area width in pixels")
	height := flag.Float64("height", 720, "drawing area height in pixels")
	seed := flag.Int64("seed", 1, "rng seed")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))
	synth := trajectory.NewSynthesizer(rng)
	synth.Width = *width
	synth.Height = *height

	blockNames := strings.Split(*blocks, ",")
	categoryCodes := strings.Split(*categories, ",")

	lib := trajectory.NewLibrary(nil)
	synth.FillLibrary(lib, blockNames, categoryCodes, *perCategory, *numPoints)

	if err := lib.Save(*output); err != nil {
		log.Fatalf("Failed to save library: %v", err)
	}
	log.Printf("wrote %d blocks x %d categories x %d paths to %s",
		len(blockNames), len(categoryCodes), *perCategory, *output)
}
