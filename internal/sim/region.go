package sim

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"github.com/tilesim/server/internal/core/arena"
	"github.com/tilesim/server/internal/entity"
	"github.com/tilesim/server/internal/world"
)

type hashSlot struct {
	index uint32 // storage index, 0 = empty
	slot  int32  // position in Region.entities
}

// Region is the dense, frame-scoped working set around an origin. Entity
// positions are relative to the origin. Every pointer handed out by a
// region is invalid after EndSimulation.
type Region struct {
	ctx       *Context
	origin    world.Position
	bounds    Rect2
	updatable Rect2

	entities []entity.Entity // fixed capacity, never reallocated
	hash     []hashSlot

	temp    arena.TempMemory
	dropped int
	closed  bool
}

// BeginSimulation gathers every entity whose position, relative to origin,
// falls inside bounds on the origin's Z layer. Entities inside updatable
// are flagged for behaviour updates; the rest only act as obstacles.
func BeginSimulation(ctx *Context, origin world.Position, bounds, updatable Rect2) *Region {
	if ctx.HashSize <= 0 || ctx.HashSize&(ctx.HashSize-1) != 0 || ctx.HashSize < ctx.MaxEntities {
		panic(fmt.Sprintf("sim: region hash size %d invalid for %d entities", ctx.HashSize, ctx.MaxEntities))
	}
	temp := ctx.Frame.BeginTemp()
	r := arena.PushStruct[Region](ctx.Frame)
	*r = Region{
		ctx:       ctx,
		origin:    origin,
		bounds:    bounds,
		updatable: updatable,
		entities:  arena.PushArray[entity.Entity](ctx.Frame, ctx.MaxEntities)[:0],
		hash:      arena.PushArray[hashSlot](ctx.Frame, ctx.HashSize),
		temp:      temp,
	}

	w := ctx.World
	minChunk := w.MapIntoChunkSpace(origin, mgl64.Vec3{bounds.Min.X(), bounds.Min.Y(), 0})
	maxChunk := w.MapIntoChunkSpace(origin, mgl64.Vec3{bounds.Max.X(), bounds.Max.Y(), 0})
	for cy := minChunk.ChunkY; cy <= maxChunk.ChunkY; cy++ {
		for cx := minChunk.ChunkX; cx <= maxChunk.ChunkX; cx++ {
			w.EachInChunk(cx, cy, origin.ChunkZ, func(index uint32) {
				stored := ctx.Storage.Get(index)
				if stored == nil || !stored.IsSpatial() {
					ctx.Log.Warn("chunk lists a non-spatial or unknown entity",
						zap.Uint32("storage_index", index))
					return
				}
				rel := w.Subtract(stored.WorldPos, origin)
				if r.bounds.Contains(rel.Vec2()) {
					r.add(stored, rel)
				}
			})
		}
	}
	return r
}

// add copies a stored entity into the region, along with any entity it
// references. It returns the region copy, or nil if the region is full.
func (r *Region) add(stored *entity.Entity, rel mgl64.Vec3) *entity.Entity {
	if e := r.Get(stored.StorageIndex); e != nil {
		return e
	}
	if len(r.entities) == cap(r.entities) {
		r.dropped++
		return nil
	}
	h := r.findSlot(stored.StorageIndex)
	if h == nil {
		r.dropped++
		return nil
	}
	r.entities = append(r.entities, *stored)
	slot := int32(len(r.entities) - 1)
	*h = hashSlot{index: stored.StorageIndex, slot: slot}

	e := &r.entities[slot]
	e.Flags.Set(entity.FlagSimming)
	if e.IsSpatial() {
		e.Pos = rel
		e.Updatable = r.updatable.Contains(rel.Vec2())
	} else {
		e.Pos = mgl64.Vec3{}
		e.Updatable = false
	}

	if e.Sword != 0 {
		r.loadReference(e.Sword)
	}
	return e
}

func (r *Region) loadReference(index uint32) {
	if r.Get(index) != nil {
		return
	}
	stored := r.ctx.Storage.Get(index)
	if stored == nil {
		r.ctx.Log.Warn("dangling entity reference", zap.Uint32("storage_index", index))
		return
	}
	var rel mgl64.Vec3
	if stored.IsSpatial() {
		rel = r.ctx.World.Subtract(stored.WorldPos, r.origin)
	}
	r.add(stored, rel)
}

// findSlot returns the hash slot for index: the occupied one if present,
// otherwise the first empty slot on its probe sequence. nil means full.
func (r *Region) findSlot(index uint32) *hashSlot {
	mask := uint32(len(r.hash) - 1)
	for i := uint32(0); i < uint32(len(r.hash)); i++ {
		h := &r.hash[(index+i)&mask]
		if h.index == 0 || h.index == index {
			return h
		}
	}
	return nil
}

func (r *Region) checkOpen() {
	if r.closed {
		panic("sim: region used after EndSimulation")
	}
}

// Get returns the region copy of a storage index, or nil.
func (r *Region) Get(index uint32) *entity.Entity {
	r.checkOpen()
	if index == 0 {
		return nil
	}
	h := r.findSlot(index)
	if h == nil || h.index == 0 {
		return nil
	}
	return &r.entities[h.slot]
}

// Entities returns the dense working set in gather order.
func (r *Region) Entities() []entity.Entity {
	r.checkOpen()
	return r.entities
}

func (r *Region) Len() int {
	r.checkOpen()
	return len(r.entities)
}

func (r *Region) Origin() world.Position { return r.origin }
func (r *Region) Bounds() Rect2          { return r.bounds }

// Dropped counts entities that did not fit in the region this frame.
func (r *Region) Dropped() int { return r.dropped }

// EndSimulation commits every region entity back to storage and releases
// the region's frame memory.
func EndSimulation(ctx *Context, r *Region) {
	r.checkOpen()
	for i := range r.entities {
		e := r.entities[i]
		e.Flags.Clear(entity.FlagSimming)
		e.Pos = mgl64.Vec3{}
		e.Updatable = false
		ctx.Storage.Put(e.StorageIndex, e)
	}
	if r.dropped > 0 {
		ctx.Log.Debug("region dropped entities", zap.Int("dropped", r.dropped))
	}
	r.closed = true
	ctx.Frame.EndTemp(r.temp)
}
