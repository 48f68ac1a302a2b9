package sim

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tilesim/server/internal/collision"
	"github.com/tilesim/server/internal/core/arena"
	"github.com/tilesim/server/internal/entity"
	"github.com/tilesim/server/internal/world"
)

type recordingObserver struct {
	hits      [][3]uint32
	relocated []uint32
}

func (o *recordingObserver) SwordHit(sword, monster, hp uint32) {
	o.hits = append(o.hits, [3]uint32{sword, monster, hp})
}

func (o *recordingObserver) EntityRelocated(index uint32, _, _ world.Position) {
	o.relocated = append(o.relocated, index)
}

type fixture struct {
	ctx  *Context
	perm *arena.Arena
	obs  *recordingObserver

	heroBox    *entity.CollisionVolumeGroup
	wallBox    *entity.CollisionVolumeGroup
	swordBox   *entity.CollisionVolumeGroup
	monsterBox *entity.CollisionVolumeGroup
	stairsBox  *entity.CollisionVolumeGroup
	spaceBox   *entity.CollisionVolumeGroup
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	perm := arena.New("perm", 1<<22)
	log := zaptest.NewLogger(t)
	obs := &recordingObserver{}
	ctx := &Context{
		World: world.New(world.Config{
			TileSideMeters:  1.4,
			TileDepthMeters: 3.0,
			ChunkTiles:      16,
			HashSize:        64,
		}, perm, log),
		Storage:     entity.NewStorage(perm, 256),
		Rules:       collision.NewRules(perm, 64),
		Frame:       arena.New("frame", 1<<20),
		Observer:    obs,
		Log:         log,
		MaxEntities: 64,
		HashSize:    128,
		MaxOverlaps: 16,
	}
	return &fixture{
		ctx:        ctx,
		perm:       perm,
		obs:        obs,
		heroBox:    entity.NewBoxGroup(perm, "hero", mgl64.Vec3{1, 1, 1.2}),
		wallBox:    entity.NewBoxGroup(perm, "wall", mgl64.Vec3{1.4, 1.4, 3}),
		swordBox:   entity.NewBoxGroup(perm, "sword", mgl64.Vec3{0.5, 0.5, 0.5}),
		monsterBox: entity.NewBoxGroup(perm, "monster", mgl64.Vec3{1, 1, 1.2}),
		stairsBox:  entity.NewBoxGroup(perm, "stairs", mgl64.Vec3{1.4, 2.8, 3.3}),
		spaceBox:   entity.NewBoxGroup(perm, "space", mgl64.Vec3{4, 4, 3}),
	}
}

// add stores e at pos, relative to the world origin, and files it in the
// chunk index.
func (f *fixture) add(e entity.Entity, pos mgl64.Vec3) uint32 {
	e.WorldPos = f.ctx.World.MapIntoChunkSpace(world.Position{}, pos)
	idx := f.ctx.Storage.Add(e)
	if idx == 0 {
		panic("fixture storage full")
	}
	f.ctx.World.ChangeEntityChunkLocation(idx, nil, e.WorldPos)
	return idx
}

func (f *fixture) addNonSpatial(e entity.Entity) uint32 {
	e.Flags.Set(entity.FlagNonSpatial)
	e.WorldPos = world.NullPosition()
	return f.ctx.Storage.Add(e)
}

func (f *fixture) hero(pos mgl64.Vec3) uint32 {
	return f.add(entity.Entity{
		Type:      entity.TypeHero,
		Flags:     entity.FlagStopsOnCollide | entity.FlagMovable,
		Collision: f.heroBox,
	}, pos)
}

func (f *fixture) wall(pos mgl64.Vec3) uint32 {
	return f.add(entity.Entity{
		Type:      entity.TypeWall,
		Flags:     entity.FlagStopsOnCollide,
		Collision: f.wallBox,
	}, pos)
}

func (f *fixture) monster(pos mgl64.Vec3, hp uint32) uint32 {
	return f.add(entity.Entity{
		Type:        entity.TypeMonster,
		Flags:       entity.FlagStopsOnCollide | entity.FlagMovable,
		Collision:   f.monsterBox,
		HitPoints:   hp,
		HitPointMax: hp,
	}, pos)
}

func (f *fixture) stairs(pos mgl64.Vec3) uint32 {
	return f.add(entity.Entity{
		Type:           entity.TypeStairs,
		Flags:          entity.FlagStopsOnCollide,
		Collision:      f.stairsBox,
		WalkableDim:    mgl64.Vec2{1.4, 2.8},
		WalkableHeight: 3,
	}, pos)
}

func (f *fixture) space(pos mgl64.Vec3, flags entity.Flags) uint32 {
	return f.add(entity.Entity{
		Type:      entity.TypeSpace,
		Flags:     entity.FlagTraversable | flags,
		Collision: f.spaceBox,
	}, pos)
}

var wideBounds = Rect2{Min: mgl64.Vec2{-40, -40}, Max: mgl64.Vec2{40, 40}}

func (f *fixture) begin() *Region {
	return BeginSimulation(f.ctx, world.Position{}, wideBounds, wideBounds)
}

func (f *fixture) get(t *testing.T, r *Region, index uint32) *entity.Entity {
	t.Helper()
	e := r.Get(index)
	require.NotNil(t, e, "storage index %d not in region", index)
	return e
}
