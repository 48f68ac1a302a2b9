package game

import (
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"github.com/tilesim/server/internal/entity"
	"github.com/tilesim/server/internal/world"
)

const (
	heroHitPoints    = 3
	monsterHitPoints = 3
)

// TilePosition is the floor point at the centre of a tile.
func (s *State) TilePosition(tx, ty, tz int32) world.Position {
	return s.ctx.World.ChunkPositionFromTilePosition(tx, ty, tz, mgl64.Vec3{0, 0, s.floorZ})
}

// addEntity stores a new entity and files it in the chunk index. A null
// pos leaves it non-spatial. Returns 0 when storage is full.
func (s *State) addEntity(e entity.Entity, pos world.Position) uint32 {
	e.Collision = s.shapes[e.Type.String()]
	if pos.IsValid() {
		e.WorldPos = s.ctx.World.MapIntoChunkSpace(pos, mgl64.Vec3{})
	} else {
		e.Flags.Set(entity.FlagNonSpatial)
		e.WorldPos = world.NullPosition()
	}
	index := s.ctx.Storage.Add(e)
	if index == 0 {
		s.log.Warn("entity storage full",
			zap.Stringer("type", e.Type),
			zap.Int("capacity", s.ctx.Storage.Capacity()))
		return 0
	}
	if pos.IsValid() {
		s.ctx.World.ChangeEntityChunkLocation(index, nil, e.WorldPos)
	}
	return index
}

// AddSword adds a sword that waits, non-spatial, until it is swung.
func (s *State) AddSword() uint32 {
	return s.addEntity(entity.Entity{
		Type:  entity.TypeSword,
		Flags: entity.FlagMovable,
	}, world.NullPosition())
}

// AddHero adds a hero with its own sword. The first hero added is the one
// the camera follows.
func (s *State) AddHero(tx, ty, tz int32) uint32 {
	sword := s.AddSword()
	if sword == 0 {
		return 0
	}
	index := s.addEntity(entity.Entity{
		Type:        entity.TypeHero,
		Flags:       entity.FlagStopsOnCollide | entity.FlagMovable,
		HitPoints:   heroHitPoints,
		HitPointMax: heroHitPoints,
		Sword:       sword,
	}, s.TilePosition(tx, ty, tz))
	if index != 0 && s.hero == 0 {
		s.hero = index
		s.follow()
	}
	return index
}

func (s *State) AddWall(tx, ty, tz int32) uint32 {
	return s.addEntity(entity.Entity{
		Type:  entity.TypeWall,
		Flags: entity.FlagStopsOnCollide,
	}, s.TilePosition(tx, ty, tz))
}

func (s *State) AddMonster(tx, ty, tz int32) uint32 {
	return s.addEntity(entity.Entity{
		Type:        entity.TypeMonster,
		Flags:       entity.FlagStopsOnCollide | entity.FlagMovable,
		HitPoints:   monsterHitPoints,
		HitPointMax: monsterHitPoints,
	}, s.TilePosition(tx, ty, tz))
}

func (s *State) AddFamiliar(tx, ty, tz int32) uint32 {
	return s.addEntity(entity.Entity{
		Type:  entity.TypeFamiliar,
		Flags: entity.FlagMovable,
	}, s.TilePosition(tx, ty, tz))
}

// AddStairs adds a stairway whose bottom edge faces -Y. It climbs one full
// layer over its walkable length.
func (s *State) AddStairs(tx, ty, tz int32) uint32 {
	total := s.shapes[entity.TypeStairs.String()].Total
	return s.addEntity(entity.Entity{
		Type:           entity.TypeStairs,
		Flags:          entity.FlagStopsOnCollide,
		WalkableDim:    total.Size.Vec2(),
		WalkableHeight: s.ctx.World.TileDepth(),
	}, s.TilePosition(tx, ty, tz))
}

// AddSpace adds a traversable room volume centred on the tile.
func (s *State) AddSpace(tx, ty, tz int32) uint32 {
	return s.addEntity(entity.Entity{
		Type:  entity.TypeSpace,
		Flags: entity.FlagTraversable,
	}, s.TilePosition(tx, ty, tz))
}
