package sim

import (
	"math"
	"slices"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"github.com/tilesim/server/internal/entity"
	"github.com/tilesim/server/internal/world"
)

const (
	maxMoveIterations = 4
	timeEpsilon       = 0.001
	distanceEpsilon   = 0.001
)

// MoveSpec shapes how requested acceleration turns into motion.
type MoveSpec struct {
	// UnitMaxAccel clamps the requested acceleration to unit length
	// before scaling by Speed.
	UnitMaxAccel bool
	Speed        float64
	Drag         float64
}

func DefaultMoveSpec() MoveSpec {
	return MoveSpec{UnitMaxAccel: false, Speed: 1, Drag: 0}
}

// Hit is one obstacle handled during a move.
type Hit struct {
	Other   uint32
	Normal  mgl64.Vec3
	Stopped bool
}

// MoveResult reports what happened during one MoveEntity call.
type MoveResult struct {
	Hits []Hit
	// Exits lists traversable volumes the mover was inside and whose
	// boundary its path crossed. They never limit the move.
	Exits    []uint32
	Overlaps []uint32
	// OverlapsDropped counts overlaps past the configured capacity.
	OverlapsDropped int
	Distance        float64
	Relocated       bool
}

type wall struct {
	x, relX, relY  float64
	deltaX, deltaY float64
	minY, maxY     float64
	normal         mgl64.Vec3
}

func minkowskiWalls(minC, maxC, rel, delta mgl64.Vec3) [4]wall {
	return [4]wall{
		{minC.X(), rel.X(), rel.Y(), delta.X(), delta.Y(), minC.Y(), maxC.Y(), mgl64.Vec3{-1, 0, 0}},
		{maxC.X(), rel.X(), rel.Y(), delta.X(), delta.Y(), minC.Y(), maxC.Y(), mgl64.Vec3{1, 0, 0}},
		{minC.Y(), rel.Y(), rel.X(), delta.Y(), delta.X(), minC.X(), maxC.X(), mgl64.Vec3{0, -1, 0}},
		{maxC.Y(), rel.Y(), rel.X(), delta.Y(), delta.X(), minC.X(), maxC.X(), mgl64.Vec3{0, 1, 0}},
	}
}

// hitTime returns the time at which the path rel + t*delta crosses w, if
// it does so within the wall's extent at t >= 0.
func (w wall) hitTime() (float64, bool) {
	if w.deltaX == 0 {
		return 0, false
	}
	t := (w.x - w.relX) / w.deltaX
	if t < 0 {
		return 0, false
	}
	y := w.relY + t*w.deltaY
	if y < w.minY || y > w.maxY {
		return 0, false
	}
	return t, true
}

type volumePair struct {
	minC, maxC, rel mgl64.Vec3
}

// eachVolumePair calls fn for every mover/obstacle volume pair whose Z
// ranges overlap, with the Minkowski box centred on the obstacle volume.
func eachVolumePair(mover, other *entity.Entity, fn func(p volumePair)) {
	if mover.Collision == nil || other.Collision == nil {
		return
	}
	for _, mv := range mover.Collision.Volumes {
		for _, ov := range other.Collision.Volumes {
			half := mv.Size.Add(ov.Size).Mul(0.5)
			rel := mover.Pos.Add(mv.OffsetPos).Sub(other.Pos.Add(ov.OffsetPos))
			if rel.Z() < -half.Z() || rel.Z() >= half.Z() {
				continue
			}
			fn(volumePair{minC: half.Mul(-1), maxC: half, rel: rel})
		}
	}
}

func insideXY(p volumePair) bool {
	return p.rel.X() > p.minC.X() && p.rel.X() < p.maxC.X() &&
		p.rel.Y() > p.minC.Y() && p.rel.Y() < p.maxC.Y()
}

// MoveEntity integrates e over dt under the requested acceleration and
// resolves collisions against every other spatial entity in the region.
// e must be a spatial entity of r.
func MoveEntity(ctx *Context, r *Region, e *entity.Entity, dt float64, spec MoveSpec, accel mgl64.Vec3) MoveResult {
	r.checkOpen()
	if !e.IsSpatial() {
		panic("sim: moving a non-spatial entity")
	}
	var res MoveResult

	if spec.UnitMaxAccel {
		if l := accel.LenSqr(); l > 1 {
			accel = accel.Mul(1 / math.Sqrt(l))
		}
	}
	accel = accel.Mul(spec.Speed)
	accel = accel.Sub(e.Vel.Mul(spec.Drag))

	delta := accel.Mul(0.5 * dt * dt).Add(e.Vel.Mul(dt))
	e.Vel = accel.Mul(dt).Add(e.Vel)

	limited := e.DistanceRemaining > 0
	if limited {
		if l := delta.Len(); l > e.DistanceRemaining {
			delta = delta.Mul(e.DistanceRemaining / l)
		}
	}

	travel := func(d float64) {
		res.Distance += d
		if limited {
			e.DistanceRemaining -= d
			if e.DistanceRemaining < distanceEpsilon {
				e.DistanceRemaining = 0
			}
		}
	}

	var passed []*entity.Entity
	for iter := 0; iter < maxMoveIterations; iter++ {
		deltaLen := delta.Len()
		if deltaLen == 0 {
			break
		}
		desired := e.Pos.Add(delta)

		tMin := 1.0
		var hitMin *entity.Entity
		var normalMin mgl64.Vec3

		ents := r.entities
		for i := range ents {
			other := &ents[i]
			if other == e || !other.IsSpatial() || slices.Contains(passed, other) {
				continue
			}
			traversable := other.Flags.Has(entity.FlagTraversable)
			exited := false
			eachVolumePair(e, other, func(p volumePair) {
				walls := minkowskiWalls(p.minC, p.maxC, p.rel, delta)
				if traversable {
					// Only the way out of a traversable volume we are
					// already inside counts, and it never blocks.
					if !insideXY(p) {
						return
					}
					for _, w := range walls {
						if t, ok := w.hitTime(); ok && t <= 1 {
							exited = true
						}
					}
					return
				}
				for _, w := range walls {
					t, ok := w.hitTime()
					if !ok || t >= tMin {
						continue
					}
					tMin = math.Max(0, t-timeEpsilon)
					normalMin = w.normal
					hitMin = other
				}
			})
			if exited {
				res.Exits = appendUnique(res.Exits, other.StorageIndex)
			}
		}

		tMove := tMin
		e.Pos = e.Pos.Add(delta.Mul(tMove))
		travel(tMove * deltaLen)

		if hitMin == nil {
			break
		}

		remaining := desired.Sub(e.Pos)
		stop := HandleCollision(ctx, e, hitMin)
		res.Hits = append(res.Hits, Hit{Other: hitMin.StorageIndex, Normal: normalMin, Stopped: stop})
		if stop {
			delta = remaining.Sub(normalMin.Mul(remaining.Dot(normalMin)))
			e.Vel = e.Vel.Sub(normalMin.Mul(e.Vel.Dot(normalMin)))
		} else {
			// The rest of the move is swept again without the entity we
			// just passed through.
			passed = append(passed, hitMin)
			delta = remaining
		}
		if limited && e.DistanceRemaining == 0 {
			break
		}
	}

	overlapPass(ctx, r, e, &res)
	relocate(ctx, r, e, &res)
	return res
}

func overlapPass(ctx *Context, r *Region, e *entity.Entity, res *MoveResult) {
	ground := e.Pos.Z()
	count := 0
	ents := r.entities
	for i := range ents {
		other := &ents[i]
		if other == e || !other.IsSpatial() || !CanOverlap(e, other) || !entitiesOverlap(e, other) {
			continue
		}
		if count == ctx.MaxOverlaps {
			res.OverlapsDropped++
			continue
		}
		count++
		res.Overlaps = append(res.Overlaps, other.StorageIndex)
		HandleOverlap(e, other, &ground)
	}
	if ground != e.Pos.Z() {
		e.Pos[2] = ground
		e.Vel[2] = 0
		e.Flags.Set(entity.FlagZSupported)
	}
}

func entitiesOverlap(a, b *entity.Entity) bool {
	if a.Collision == nil || b.Collision == nil {
		return false
	}
	for _, av := range a.Collision.Volumes {
		for _, bv := range b.Collision.Volumes {
			half := av.Size.Add(bv.Size).Mul(0.5)
			rel := a.Pos.Add(av.OffsetPos).Sub(b.Pos.Add(bv.OffsetPos))
			if math.Abs(rel.X()) <= half.X() && math.Abs(rel.Y()) <= half.Y() && math.Abs(rel.Z()) <= half.Z() {
				return true
			}
		}
	}
	return false
}

func relocate(ctx *Context, r *Region, e *entity.Entity, res *MoveResult) {
	from := e.WorldPos
	to := ctx.World.MapIntoChunkSpace(r.origin, e.Pos)
	canonical, found := ctx.World.ChangeEntityChunkLocation(e.StorageIndex, &from, to)
	e.WorldPos = canonical
	if !found || !world.AreInSameChunk(from, canonical) {
		res.Relocated = true
		ctx.Log.Debug("entity relocated",
			zap.Uint32("storage_index", e.StorageIndex),
			zap.Int32("chunk_x", canonical.ChunkX),
			zap.Int32("chunk_y", canonical.ChunkY),
			zap.Int32("chunk_z", canonical.ChunkZ))
		ctx.observer().EntityRelocated(e.StorageIndex, from, canonical)
	}
}

func appendUnique(s []uint32, v uint32) []uint32 {
	for _, x := range s {
		if x == v {
			return s
		}
	}
	return append(s, v)
}
