package game

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"github.com/tilesim/server/internal/entity"
	"github.com/tilesim/server/internal/sim"
	"github.com/tilesim/server/internal/world"
)

const (
	swordSpeed    = 5.0
	swordDistance = 5.0

	familiarSightSq = 10.0 * 10.0
	familiarKeepSq  = 3.0 * 3.0
	familiarAccel   = 0.5
)

// Input is one frame of hero control. Accel is the requested direction of
// travel; a non-zero Sword swings the hero's sword that way.
type Input struct {
	Accel mgl64.Vec2
	Sword mgl64.Vec2
}

// Controller supplies hero input, one poll per tick.
type Controller interface {
	Poll(tick uint64) Input
}

// FrameStats summarizes one frame.
type FrameStats struct {
	Tick      uint64
	Simulated int
	Updated   int
	Dropped   int
	Hits      int
	Relocated int
	Defeated  int
}

// Frame advances the world by dt.
func (s *State) Frame(dt time.Duration, in Input) FrameStats {
	s.tick++
	stats := FrameStats{Tick: s.tick}
	seconds := dt.Seconds()

	s.follow()
	camera := sim.RectCenterDim(mgl64.Vec2{}, s.cameraDim)
	bounds := camera.AddRadius(mgl64.Vec2{s.apron, s.apron})
	margin := math.Max(0, s.apron-updateMargin)
	updatable := camera.AddRadius(mgl64.Vec2{margin, margin})

	r := sim.BeginSimulation(s.ctx, s.camera, bounds, updatable)

	// Entities made spatial mid-frame are appended to the region and run
	// in this same loop.
	for i := 0; i < r.Len(); i++ {
		e := &r.Entities()[i]
		if !e.Updatable || !e.IsSpatial() {
			continue
		}
		stats.Updated++

		var res sim.MoveResult
		switch e.Type {
		case entity.TypeHero:
			if in.Sword != (mgl64.Vec2{}) {
				s.swing(r, e, in.Sword)
			}
			res = sim.MoveEntity(s.ctx, r, e, seconds, s.moves[e.Type], mgl64.Vec3{in.Accel.X(), in.Accel.Y(), 0})

		case entity.TypeSword:
			res = sim.MoveEntity(s.ctx, r, e, seconds, s.moves[e.Type], mgl64.Vec3{})
			if e.DistanceRemaining == 0 {
				s.ctx.Rules.ClearEntity(e.StorageIndex)
				sim.MakeEntityNonSpatial(s.ctx, e)
			}

		case entity.TypeFamiliar:
			res = sim.MoveEntity(s.ctx, r, e, seconds, s.moves[e.Type], s.familiarAccel(r, e))

		case entity.TypeMonster:
			if e.HitPoints == 0 {
				s.defeat(e)
				stats.Defeated++
			}
		}
		stats.Hits += len(res.Hits)
		if res.Relocated {
			stats.Relocated++
		}
	}

	stats.Simulated = r.Len()
	stats.Dropped = r.Dropped()
	sim.EndSimulation(s.ctx, r)
	return stats
}

// follow centres the camera on the hero, on the hero's layer.
func (s *State) follow() {
	hero := s.ctx.Storage.Get(s.hero)
	if hero == nil || !hero.IsSpatial() {
		return
	}
	s.camera = world.Position{
		ChunkX: hero.WorldPos.ChunkX,
		ChunkY: hero.WorldPos.ChunkY,
		ChunkZ: hero.WorldPos.ChunkZ,
		Offset: mgl64.Vec3{hero.WorldPos.Offset.X(), hero.WorldPos.Offset.Y(), 0},
	}
}

func (s *State) swing(r *sim.Region, hero *entity.Entity, dir mgl64.Vec2) {
	sword := r.Get(hero.Sword)
	if sword == nil || sword.IsSpatial() {
		return
	}
	d := mgl64.Vec3{dir.X(), dir.Y(), 0}.Normalize()
	hero.FaceDir = faceDirection(d)
	sword.DistanceRemaining = swordDistance
	s.ctx.Rules.Add(hero.StorageIndex, sword.StorageIndex)
	s.ctx.Rules.Add(sword.StorageIndex, hero.StorageIndex)
	sim.MakeEntitySpatial(s.ctx, r, sword, hero.Pos, d.Mul(swordSpeed))
	s.log.Debug("sword swung",
		zap.Uint32("hero", hero.StorageIndex),
		zap.Uint32("sword", sword.StorageIndex),
		zap.Uint32("face_dir", hero.FaceDir))
}

// faceDirection quantizes d to 0 east, 1 north, 2 west, 3 south.
func faceDirection(d mgl64.Vec3) uint32 {
	if math.Abs(d.X()) >= math.Abs(d.Y()) {
		if d.X() >= 0 {
			return 0
		}
		return 2
	}
	if d.Y() >= 0 {
		return 1
	}
	return 3
}

// familiarAccel steers toward the closest hero in sight while it is more
// than a few meters away.
func (s *State) familiarAccel(r *sim.Region, fam *entity.Entity) mgl64.Vec3 {
	var closest *entity.Entity
	closestSq := familiarSightSq
	ents := r.Entities()
	for i := range ents {
		other := &ents[i]
		if other.Type != entity.TypeHero || !other.IsSpatial() {
			continue
		}
		if d := other.Pos.Sub(fam.Pos).LenSqr(); d < closestSq {
			closest, closestSq = other, d
		}
	}
	if closest == nil || closestSq <= familiarKeepSq {
		return mgl64.Vec3{}
	}
	toward := closest.Pos.Sub(fam.Pos).Mul(familiarAccel / math.Sqrt(closestSq))
	toward[2] = 0
	return toward
}

func (s *State) defeat(monster *entity.Entity) {
	s.ctx.Rules.ClearEntity(monster.StorageIndex)
	sim.MakeEntityNonSpatial(s.ctx, monster)
	s.log.Debug("monster defeated", zap.Uint32("monster", monster.StorageIndex))
	s.obs.MonsterDefeated(monster.StorageIndex)
}
