package data

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// VolumeEntry is one box of a collision shape. A nil Offset means the box
// is grounded: it sits on the entity position, raised by half its height.
type VolumeEntry struct {
	Size   [3]float64  `yaml:"size"`
	Offset *[3]float64 `yaml:"offset"`
}

// ShapeEntry is a named compound collision shape.
type ShapeEntry struct {
	Name    string        `yaml:"name"`
	Volumes []VolumeEntry `yaml:"volumes"`
}

// MoveSpecEntry tunes how one entity type turns input into acceleration.
type MoveSpecEntry struct {
	UnitMaxAccel bool    `yaml:"unit_max_accel"`
	Speed        float64 `yaml:"speed"`
	Drag         float64 `yaml:"drag"`
}

type shapeFile struct {
	Shapes    []ShapeEntry             `yaml:"shapes"`
	MoveSpecs map[string]MoveSpecEntry `yaml:"move_specs"`
}

// ShapeTable is the catalog of collision shapes and movement tuning,
// keyed by entity type name.
type ShapeTable struct {
	shapes map[string]*ShapeEntry
	moves  map[string]MoveSpecEntry
}

// LoadShapeTable loads shapes.yaml.
func LoadShapeTable(path string) (*ShapeTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read shape table: %w", err)
	}
	var f shapeFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse shape table: %w", err)
	}
	t := &ShapeTable{
		shapes: make(map[string]*ShapeEntry, len(f.Shapes)),
		moves:  f.MoveSpecs,
	}
	if t.moves == nil {
		t.moves = make(map[string]MoveSpecEntry)
	}
	for i := range f.Shapes {
		s := &f.Shapes[i]
		if s.Name == "" {
			return nil, fmt.Errorf("shape table: entry %d has no name", i)
		}
		if _, dup := t.shapes[s.Name]; dup {
			return nil, fmt.Errorf("shape table: duplicate shape %q", s.Name)
		}
		for j, v := range s.Volumes {
			if v.Size[0] <= 0 || v.Size[1] <= 0 || v.Size[2] <= 0 {
				return nil, fmt.Errorf("shape table: %s volume %d has non-positive size", s.Name, j)
			}
		}
		t.shapes[s.Name] = s
	}
	return t, nil
}

// DefaultShapeTable builds the shapes used when no shape file is
// configured. Wall and stairs shapes follow the tile grid; the space shape
// covers one room of roomTilesX by roomTilesY tiles.
func DefaultShapeTable(tileSide, tileDepth float64, roomTilesX, roomTilesY int) *ShapeTable {
	box := func(name string, x, y, z float64) *ShapeEntry {
		return &ShapeEntry{Name: name, Volumes: []VolumeEntry{{Size: [3]float64{x, y, z}}}}
	}
	t := &ShapeTable{
		shapes: map[string]*ShapeEntry{},
		moves: map[string]MoveSpecEntry{
			"hero":     {UnitMaxAccel: true, Speed: 50, Drag: 8},
			"familiar": {UnitMaxAccel: true, Speed: 50, Drag: 8},
			"sword":    {UnitMaxAccel: false, Speed: 0, Drag: 0},
		},
	}
	for _, s := range []*ShapeEntry{
		box("hero", 1.0, 0.5, 1.2),
		box("familiar", 1.0, 0.5, 0.5),
		box("monster", 1.0, 0.5, 0.5),
		box("sword", 1.0, 0.5, 0.1),
		box("wall", tileSide, tileSide, tileDepth),
		box("stairs", tileSide, 2*tileSide, 1.1*tileDepth),
		box("space", float64(roomTilesX)*tileSide, float64(roomTilesY)*tileSide, 0.9*tileDepth),
	} {
		t.shapes[s.Name] = s
	}
	return t
}

// Get returns the named shape, or nil.
func (t *ShapeTable) Get(name string) *ShapeEntry {
	return t.shapes[name]
}

// MoveSpec returns the movement tuning for a type name.
func (t *ShapeTable) MoveSpec(typeName string) (MoveSpecEntry, bool) {
	m, ok := t.moves[typeName]
	return m, ok
}

// Names lists shape names in sorted order.
func (t *ShapeTable) Names() []string {
	out := make([]string, 0, len(t.shapes))
	for name := range t.shapes {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Count returns the total number of shapes loaded.
func (t *ShapeTable) Count() int {
	return len(t.shapes)
}
