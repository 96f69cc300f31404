package trajectory

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/percept-data/pursuit/internal/geom"
	"github.com/percept-data/pursuit/internal/monitoring"
)

// Library is a hierarchical store of recorded trajectories:
// block name -> category code -> list of polylines. Lookups for
// missing blocks, categories, or indices return an empty trajectory
// rather than failing, because library contents are external data.
type Library struct {
	blocks map[string]map[string][][]geom.Point
}

// NewLibrary builds a Library from an in-memory mapping. The mapping
// is used directly; callers hand over ownership.
func NewLibrary(blocks map[string]map[string][][]geom.Point) *Library {
	if blocks == nil {
		blocks = map[string]map[string][][]geom.Point{}
	}
	return &Library{blocks: blocks}
}

// LoadLibrary reads a trajectory library from a JSON file shaped as
// {"block": {"category": [[{"x":..,"y":..}, ...], ...]}}.
func LoadLibrary(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read trajectory library: %w", err)
	}
	var blocks map[string]map[string][][]geom.Point
	if err := json.Unmarshal(data, &blocks); err != nil {
		return nil, fmt.Errorf("parse trajectory library %s: %w", path, err)
	}
	return NewLibrary(blocks), nil
}

// Save writes the library back out as JSON.
func (l *Library) Save(path string) error {
	data, err := json.MarshalIndent(l.blocks, "", "  ")
	if err != nil {
		return fmt.Errorf("encode trajectory library: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write trajectory library: %w", err)
	}
	return nil
}

// Blocks returns the block names in sorted order.
func (l *Library) Blocks() []string {
	names := make([]string, 0, len(l.blocks))
	for name := range l.blocks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Categories returns the category codes of a block in sorted order.
func (l *Library) Categories(block string) []string {
	cats := l.blocks[block]
	names := make([]string, 0, len(cats))
	for name := range cats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of stored trajectories for a category.
func (l *Library) Count(block, category string) int {
	return len(l.blocks[block][category])
}

// Trajectory returns the index'th trajectory of a category. Missing
// blocks, categories, or out-of-range indices yield an empty
// trajectory and a diagnostic log line.
func (l *Library) Trajectory(block, category string, index int) *Trajectory {
	cats, ok := l.blocks[block]
	if !ok {
		monitoring.Logf("trajectory library: unknown block %q", block)
		return New(nil)
	}
	lists, ok := cats[category]
	if !ok {
		monitoring.Logf("trajectory library: unknown category %q in block %q", category, block)
		return New(nil)
	}
	if index < 0 || index >= len(lists) {
		monitoring.Logf("trajectory library: index %d out of range for %s/%s (%d stored)",
			index, block, category, len(lists))
		return New(nil)
	}
	return New(lists[index])
}

// Add appends a polyline to a category, creating the block and
// category as needed. Used by the library generator.
func (l *Library) Add(block, category string, points []geom.Point) {
	cats, ok := l.blocks[block]
	if !ok {
		cats = map[string][][]geom.Point{}
		l.blocks[block] = cats
	}
	cats[category] = append(cats[category], points)
}
