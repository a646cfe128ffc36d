// Package layout turns layer assignments into concrete coordinates: vertex
// placement on a layer/level grid, gap compaction, a crossing-reduction
// ordering pass, and edge path routing.
package layout

import (
	"sort"
)

// Config holds the geometry of the placement grid. All values are pixels.
type Config struct {
	BlockWidth    float64 `json:"block_width" toml:"block_width"`
	BlockHeight   float64 `json:"block_height" toml:"block_height"`
	HorizontalGap float64 `json:"horizontal_gap" toml:"horizontal_gap"`
	VerticalGap   float64 `json:"vertical_gap" toml:"vertical_gap"`
}

// DefaultConfig returns the standard block geometry.
func DefaultConfig() Config {
	return Config{
		BlockWidth:    160,
		BlockHeight:   80,
		HorizontalGap: 80,
		VerticalGap:   50,
	}
}

// normalize replaces non-positive dimensions with defaults so a partially
// filled config never produces overlapping or negative coordinates.
func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.BlockWidth <= 0 {
		c.BlockWidth = def.BlockWidth
	}
	if c.BlockHeight <= 0 {
		c.BlockHeight = def.BlockHeight
	}
	if c.HorizontalGap <= 0 {
		c.HorizontalGap = def.HorizontalGap
	}
	if c.VerticalGap <= 0 {
		c.VerticalGap = def.VerticalGap
	}
	return c
}

// Position is one vertex's placement. Layer selects the column, Level the
// row within the column; X and Y are the top-left corner of the block.
type Position struct {
	VertexID string  `json:"vertex_id" bson:"vertex_id"`
	Layer    int     `json:"layer" bson:"layer"`
	Level    int     `json:"level" bson:"level"`
	X        float64 `json:"x" bson:"x"`
	Y        float64 `json:"y" bson:"y"`
}

// PlaceLayer places the given vertices in one layer, assigning levels in
// slice order. x = layer * (block width + horizontal gap),
// y = level * (block height + vertical gap).
func PlaceLayer(layer int, vertexIDs []string, cfg Config) []Position {
	cfg = cfg.normalize()
	x := float64(layer) * (cfg.BlockWidth + cfg.HorizontalGap)

	positions := make([]Position, 0, len(vertexIDs))
	for level, id := range vertexIDs {
		positions = append(positions, Position{
			VertexID: id,
			Layer:    layer,
			Level:    level,
			X:        x,
			Y:        float64(level) * (cfg.BlockHeight + cfg.VerticalGap),
		})
	}
	return positions
}

// PlaceAll places every vertex in the layer map. Vertices within a layer
// are ordered lexicographically by id, which makes placement a pure
// function of the layer map: the same assignments always yield the same
// coordinates regardless of map iteration or batch order.
func PlaceAll(layers map[string]int, cfg Config) []Position {
	byLayer := make(map[int][]string)
	for id, layer := range layers {
		byLayer[layer] = append(byLayer[layer], id)
	}

	layerNums := make([]int, 0, len(byLayer))
	for layer := range byLayer {
		layerNums = append(layerNums, layer)
	}
	sort.Ints(layerNums)

	positions := make([]Position, 0, len(layers))
	for _, layer := range layerNums {
		ids := byLayer[layer]
		sort.Strings(ids)
		positions = append(positions, PlaceLayer(layer, ids, cfg)...)
	}
	return positions
}

// Dimensions returns the bounding box (width, height) of the placed layout.
func Dimensions(positions []Position, cfg Config) (float64, float64) {
	cfg = cfg.normalize()
	var maxX, maxY float64
	for _, p := range positions {
		if x := p.X + cfg.BlockWidth; x > maxX {
			maxX = x
		}
		if y := p.Y + cfg.BlockHeight; y > maxY {
			maxY = y
		}
	}
	return maxX, maxY
}
