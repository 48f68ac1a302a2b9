package sim

import (
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"github.com/tilesim/server/internal/entity"
)

const (
	stairsEntryBand = 0.1
	stairsExitBand  = 0.9
)

// HandleCollision decides whether mover stops against obstacle and applies
// any gameplay side effects of the contact.
func HandleCollision(ctx *Context, mover, obstacle *entity.Entity) bool {
	stop := (mover.Flags.Has(entity.FlagStopsOnCollide) && obstacle.Flags.Has(entity.FlagStopsOnCollide)) ||
		obstacle.Flags.Has(entity.FlagTraversable)

	a, b := mover, obstacle
	if a.Type > b.Type {
		a, b = b, a
	}
	if a.Type == entity.TypeWall && b.Type == entity.TypeFamiliar {
		stop = true
	}

	if !ctx.Rules.ShouldCollide(mover.StorageIndex, obstacle.StorageIndex) {
		return stop
	}

	switch {
	case a.Type == entity.TypeMonster && b.Type == entity.TypeSword:
		monster, sword := a, b
		if monster.HitPoints > 0 {
			monster.HitPoints--
		}
		ctx.Rules.Add(sword.StorageIndex, monster.StorageIndex)
		ctx.Rules.Add(monster.StorageIndex, sword.StorageIndex)
		ctx.Log.Debug("sword hit",
			zap.Uint32("sword", sword.StorageIndex),
			zap.Uint32("monster", monster.StorageIndex),
			zap.Uint32("hit_points", monster.HitPoints))
		ctx.observer().SwordHit(sword.StorageIndex, monster.StorageIndex, monster.HitPoints)

	case a.Type == entity.TypeHero && b.Type == entity.TypeStairs:
		stop = !StairsPassable(a, b)
	}
	return stop
}

// StairsPassable reports whether hero may cross the stairs boundary at its
// current position: from the bottom edge while low, or the top edge while
// high.
func StairsPassable(hero, stairs *entity.Entity) bool {
	bary := Barycentric(stairs, hero.Pos)
	lower := hero.Pos.Z()-stairs.Pos.Z() < 0.5*stairs.WalkableHeight
	return (bary.Y() <= stairsEntryBand && lower) || (bary.Y() >= stairsExitBand && !lower)
}

// Barycentric maps p into the stairs' walkable rectangle.
func Barycentric(stairs *entity.Entity, p mgl64.Vec3) mgl64.Vec2 {
	rect := RectCenterDim(stairs.Pos.Vec2(), stairs.WalkableDim)
	return rect.Barycentric(p.Vec2())
}

// StairGround is the walkable height of the stairs under p.
func StairGround(stairs *entity.Entity, p mgl64.Vec3) float64 {
	bary := Barycentric(stairs, p)
	return stairs.Pos.Z() + clamp01(bary.Y())*stairs.WalkableHeight
}

// CanOverlap reports whether overlapping region has an effect on mover.
func CanOverlap(mover, region *entity.Entity) bool {
	if mover == region {
		return false
	}
	return region.Type == entity.TypeStairs || region.Flags.Has(entity.FlagOverlaps)
}

// HandleOverlap applies the effect of mover standing inside region.
func HandleOverlap(mover, region *entity.Entity, ground *float64) {
	if region.Type == entity.TypeStairs {
		*ground = StairGround(region, mover.Pos)
	}
}
