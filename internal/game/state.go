// Package game owns the simulated world and runs one frame per tick: it
// places the camera, gathers a region around it, drives per-type
// behaviours and commits the region back to storage.
package game

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"github.com/tilesim/server/internal/collision"
	"github.com/tilesim/server/internal/config"
	"github.com/tilesim/server/internal/core/arena"
	"github.com/tilesim/server/internal/data"
	"github.com/tilesim/server/internal/entity"
	"github.com/tilesim/server/internal/sim"
	"github.com/tilesim/server/internal/world"
)

// floorFraction places the walkable floor of a layer below the layer
// centre. A stairway one layer tall then ends exactly on the floor of the
// layer above.
const floorFraction = 0.45

// updateMargin keeps the outer edge of the region collision-only, so
// updatable entities never move against obstacles that were not loaded.
const updateMargin = 1.0

// Observer receives gameplay notifications from the frame.
type Observer interface {
	sim.Observer
	MonsterDefeated(monster uint32)
}

type nopObserver struct{}

func (nopObserver) SwordHit(uint32, uint32, uint32)                        {}
func (nopObserver) EntityRelocated(uint32, world.Position, world.Position) {}
func (nopObserver) MonsterDefeated(uint32)                                 {}

// State is the whole simulated world. It is only touched from the game
// loop goroutine.
type State struct {
	perm *arena.Arena
	ctx  *sim.Context
	obs  Observer

	shapes map[string]*entity.CollisionVolumeGroup
	moves  map[entity.Type]sim.MoveSpec

	camera    world.Position
	cameraDim mgl64.Vec2
	apron     float64
	floorZ    float64

	hero uint32
	tick uint64
	log  *zap.Logger
}

// New builds an empty world sized by cfg. Every entity type the game
// places needs a shape in shapes.
func New(cfg config.SimulationConfig, shapes *data.ShapeTable, log *zap.Logger) (*State, error) {
	policy, err := sim.ParsePolicy(cfg.SpatialPolicy)
	if err != nil {
		return nil, err
	}
	perm := arena.New("permanent", cfg.ArenaBytes)
	s := &State{
		perm:   perm,
		obs:    nopObserver{},
		shapes: make(map[string]*entity.CollisionVolumeGroup),
		moves:  make(map[entity.Type]sim.MoveSpec),
		cameraDim: mgl64.Vec2{
			float64(cfg.CameraTilesX) * cfg.TileSideMeters,
			float64(cfg.CameraTilesY) * cfg.TileSideMeters,
		},
		apron:  cfg.RegionApron,
		floorZ: -floorFraction * cfg.TileDepthMeters,
		log:    log,
	}
	s.ctx = &sim.Context{
		World: world.New(world.Config{
			TileSideMeters:  cfg.TileSideMeters,
			TileDepthMeters: cfg.TileDepthMeters,
			ChunkTiles:      cfg.ChunkTiles,
			HashSize:        cfg.ChunkHashSize,
		}, perm, log.Named("world")),
		Storage:     entity.NewStorage(perm, cfg.MaxEntities),
		Rules:       collision.NewRules(perm, cfg.RuleBuckets),
		Frame:       arena.New("frame", cfg.FrameArenaBytes),
		Observer:    s.obs,
		Log:         log.Named("sim"),
		Policy:      policy,
		MaxEntities: cfg.RegionMaxEntities,
		HashSize:    cfg.RegionHashSize,
		MaxOverlaps: cfg.MaxOverlaps,
	}

	for _, name := range shapes.Names() {
		s.shapes[name] = buildGroup(perm, shapes.Get(name))
	}
	for t := entity.TypeHero; t <= entity.TypeSpace; t++ {
		if s.shapes[t.String()] == nil {
			return nil, fmt.Errorf("no collision shape for %s", t)
		}
		spec := sim.DefaultMoveSpec()
		if m, ok := shapes.MoveSpec(t.String()); ok {
			spec = sim.MoveSpec{UnitMaxAccel: m.UnitMaxAccel, Speed: m.Speed, Drag: m.Drag}
		}
		s.moves[t] = spec
	}
	return s, nil
}

func buildGroup(a *arena.Arena, shape *data.ShapeEntry) *entity.CollisionVolumeGroup {
	volumes := make([]entity.CollisionVolume, len(shape.Volumes))
	for i, v := range shape.Volumes {
		size := mgl64.Vec3(v.Size)
		offset := mgl64.Vec3{0, 0, 0.5 * size.Z()}
		if v.Offset != nil {
			offset = mgl64.Vec3(*v.Offset)
		}
		volumes[i] = entity.CollisionVolume{Size: size, OffsetPos: offset}
	}
	return entity.NewVolumeGroup(a, shape.Name, volumes...)
}

// SetObserver routes gameplay notifications to o.
func (s *State) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	s.obs = o
	s.ctx.Observer = o
}

// Shape returns the collision group registered under name, or nil.
func (s *State) Shape(name string) *entity.CollisionVolumeGroup {
	return s.shapes[name]
}

func (s *State) Context() *sim.Context    { return s.ctx }
func (s *State) Storage() *entity.Storage { return s.ctx.Storage }
func (s *State) World() *world.World      { return s.ctx.World }
func (s *State) Arena() *arena.Arena      { return s.perm }
func (s *State) Camera() world.Position   { return s.camera }
func (s *State) Hero() uint32             { return s.hero }
func (s *State) Tick() uint64             { return s.tick }
func (s *State) TileSide() float64        { return s.ctx.World.TileSide() }

// MoveSpec returns the movement tuning used for entities of type t.
func (s *State) MoveSpec(t entity.Type) sim.MoveSpec { return s.moves[t] }

// ResumeTick continues tick numbering from a restored snapshot.
func (s *State) ResumeTick(tick uint64) { s.tick = tick }

// Load rebuilds storage and the chunk index from entities listed in
// storage-index order, starting at 1. The world must be empty.
func (s *State) Load(entities []entity.Entity) error {
	if s.ctx.Storage.Count() != 0 {
		return fmt.Errorf("load into non-empty storage (%d entities)", s.ctx.Storage.Count())
	}
	for i := range entities {
		e := entities[i]
		want := uint32(i + 1)
		if e.StorageIndex != want {
			return fmt.Errorf("entity %d out of order, want storage index %d", e.StorageIndex, want)
		}
		e.Flags.Clear(entity.FlagSimming)
		e.Pos = mgl64.Vec3{}
		e.Updatable = false
		if s.ctx.Storage.Add(e) == 0 {
			return fmt.Errorf("storage full after %d entities", i)
		}
		if e.IsSpatial() {
			s.ctx.World.ChangeEntityChunkLocation(want, nil, e.WorldPos)
		}
		if e.Type == entity.TypeHero && s.hero == 0 {
			s.hero = want
		}
	}
	if s.hero != 0 {
		s.follow()
	}
	return nil
}
