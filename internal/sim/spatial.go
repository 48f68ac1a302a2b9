package sim

import (
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"github.com/tilesim/server/internal/entity"
	"github.com/tilesim/server/internal/world"
)

// MakeEntitySpatial places a non-spatial entity at pos (region-relative)
// and files it in the world index. Under PolicyImmediate the entity
// simulates this frame; under PolicyDeferred it sits out until the next
// BeginSimulation. It returns the region copy of the entity, or nil if it
// was not in the region and could not be added there.
func MakeEntitySpatial(ctx *Context, r *Region, e *entity.Entity, pos, vel mgl64.Vec3) *entity.Entity {
	r.checkOpen()
	if e.IsSpatial() {
		panic("sim: entity is already spatial")
	}
	wp := ctx.World.MapIntoChunkSpace(r.origin, pos)
	canonical, _ := ctx.World.ChangeEntityChunkLocation(e.StorageIndex, nil, wp)

	e.WorldPos = canonical
	e.Pos = pos
	e.Vel = vel
	e.Flags.Clear(entity.FlagNonSpatial)

	live := r.Get(e.StorageIndex)
	if live == nil {
		if ctx.Policy == PolicyDeferred {
			rest := *e
			rest.Pos = mgl64.Vec3{}
			rest.Updatable = false
			rest.Flags.Clear(entity.FlagSimming)
			ctx.Storage.Put(e.StorageIndex, rest)
			return nil
		}
		live = r.add(e, pos)
		if live == nil {
			ctx.Log.Warn("region full, spatial entity not simulated",
				zap.Uint32("storage_index", e.StorageIndex))
			return nil
		}
	} else if live != e {
		*live = *e
	}
	live.Updatable = ctx.Policy == PolicyImmediate
	return live
}

// MakeEntityNonSpatial detaches a spatial entity from the world index.
func MakeEntityNonSpatial(ctx *Context, e *entity.Entity) {
	if !e.IsSpatial() {
		panic("sim: entity is already non-spatial")
	}
	from := e.WorldPos
	ctx.World.ChangeEntityChunkLocation(e.StorageIndex, &from, world.NullPosition())
	e.WorldPos = world.NullPosition()
	e.Flags.Set(entity.FlagNonSpatial)
	e.Pos = mgl64.Vec3{}
	e.Vel = mgl64.Vec3{}
}
