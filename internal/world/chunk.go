package world

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"github.com/tilesim/server/internal/core/arena"
)

// blockCapacity is the number of storage indices held by one id block.
const blockCapacity = 16

const noIndex int32 = -1

// Config describes the chunk geometry.
type Config struct {
	TileSideMeters  float64
	TileDepthMeters float64
	ChunkTiles      int
	HashSize        int // power of two
}

// Chunk is one spatial bucket. Its entity ids live in a chain of blocks
// starting at first; next links chunks that share a hash bucket.
type Chunk struct {
	X, Y, Z int32
	first   int32
	next    int32
}

type idBlock struct {
	count   int32
	indices [blockCapacity]uint32
	next    int32
}

// World is the sparse chunk index. Chunks and id blocks live in backing
// slices charged to the world arena and are addressed by index; freed
// blocks go on an index-linked free list.
// Accessed only from the game loop goroutine, no locks.
type World struct {
	tileSide  float64
	tileDepth float64
	chunkDim  mgl64.Vec3

	hash      []int32
	chunks    []Chunk
	blocks    []idBlock
	freeBlock int32

	arena *arena.Arena
	log   *zap.Logger
}

func New(cfg Config, a *arena.Arena, log *zap.Logger) *World {
	if cfg.HashSize <= 0 || cfg.HashSize&(cfg.HashSize-1) != 0 {
		panic(fmt.Sprintf("world: chunk hash size %d is not a power of two", cfg.HashSize))
	}
	side := cfg.TileSideMeters * float64(cfg.ChunkTiles)
	w := &World{
		tileSide:  cfg.TileSideMeters,
		tileDepth: cfg.TileDepthMeters,
		chunkDim:  mgl64.Vec3{side, side, cfg.TileDepthMeters},
		hash:      arena.PushArray[int32](a, cfg.HashSize),
		freeBlock: noIndex,
		arena:     a,
		log:       log,
	}
	for i := range w.hash {
		w.hash[i] = noIndex
	}
	return w
}

func (w *World) ChunkDim() mgl64.Vec3 { return w.chunkDim }
func (w *World) TileSide() float64    { return w.tileSide }
func (w *World) TileDepth() float64   { return w.tileDepth }
func (w *World) ChunkCount() int      { return len(w.chunks) }

// BlockCount returns the number of id blocks ever allocated.
func (w *World) BlockCount() int { return len(w.blocks) }

func (w *World) slot(x, y, z int32) int {
	h := uint32(19*x + 7*y + 3*z)
	return int(h & uint32(len(w.hash)-1))
}

// GetChunk looks a chunk up without creating it. The returned pointer is
// valid until the next chunk allocation.
func (w *World) GetChunk(x, y, z int32) (*Chunk, bool) {
	for i := w.hash[w.slot(x, y, z)]; i != noIndex; i = w.chunks[i].next {
		c := &w.chunks[i]
		if c.X == x && c.Y == y && c.Z == z {
			return c, true
		}
	}
	return nil, false
}

func (w *World) getOrCreateChunk(x, y, z int32) int32 {
	if x <= -chunkSafeMargin || x >= chunkSafeMargin ||
		y <= -chunkSafeMargin || y >= chunkSafeMargin ||
		z <= -chunkSafeMargin || z >= chunkSafeMargin {
		panic(fmt.Sprintf("world: chunk (%d,%d,%d) outside safe margin", x, y, z))
	}
	s := w.slot(x, y, z)
	for i := w.hash[s]; i != noIndex; i = w.chunks[i].next {
		if c := &w.chunks[i]; c.X == x && c.Y == y && c.Z == z {
			return i
		}
	}
	first := w.allocBlock()
	i := arena.Grow(w.arena, &w.chunks)
	w.chunks[i] = Chunk{X: x, Y: y, Z: z, first: first, next: w.hash[s]}
	w.hash[s] = i
	w.log.Debug("chunk allocated", zap.Int32("x", x), zap.Int32("y", y), zap.Int32("z", z))
	return i
}

func (w *World) allocBlock() int32 {
	if i := w.freeBlock; i != noIndex {
		w.freeBlock = w.blocks[i].next
		w.blocks[i] = idBlock{next: noIndex}
		return i
	}
	i := arena.Grow(w.arena, &w.blocks)
	w.blocks[i].next = noIndex
	return i
}

// ChunkEntities lists the storage indices filed under a chunk, in block
// order then in-block order.
func (w *World) ChunkEntities(x, y, z int32) []uint32 {
	c, ok := w.GetChunk(x, y, z)
	if !ok {
		return nil
	}
	var out []uint32
	for b := c.first; b != noIndex; b = w.blocks[b].next {
		blk := &w.blocks[b]
		out = append(out, blk.indices[:blk.count]...)
	}
	return out
}

// EachInChunk calls fn for every storage index filed under the chunk.
func (w *World) EachInChunk(x, y, z int32, fn func(index uint32)) {
	c, ok := w.GetChunk(x, y, z)
	if !ok {
		return
	}
	for b := c.first; b != noIndex; b = w.blocks[b].next {
		blk := &w.blocks[b]
		for i := int32(0); i < blk.count; i++ {
			fn(blk.indices[i])
		}
	}
}

// CountOf returns how many times index is filed under the chunk.
func (w *World) CountOf(x, y, z int32, index uint32) int {
	n := 0
	w.EachInChunk(x, y, z, func(i uint32) {
		if i == index {
			n++
		}
	})
	return n
}

// MapIntoChunkSpace offsets base and folds the result back into canonical
// form: every axis offset ends within half a chunk of the chunk centre.
func (w *World) MapIntoChunkSpace(base Position, offset mgl64.Vec3) Position {
	r := base
	r.Offset = r.Offset.Add(offset)
	recanonicalizeCoord(w.chunkDim[0], &r.ChunkX, &r.Offset[0])
	recanonicalizeCoord(w.chunkDim[1], &r.ChunkY, &r.Offset[1])
	recanonicalizeCoord(w.chunkDim[2], &r.ChunkZ, &r.Offset[2])
	return r
}

// IsCanonical reports whether every offset lies within half a chunk.
func (w *World) IsCanonical(p Position) bool {
	return isCanonicalCoord(p.Offset[0], w.chunkDim[0]) &&
		isCanonicalCoord(p.Offset[1], w.chunkDim[1]) &&
		isCanonicalCoord(p.Offset[2], w.chunkDim[2])
}

// Subtract returns a - b in meters.
func (w *World) Subtract(a, b Position) mgl64.Vec3 {
	dChunk := mgl64.Vec3{
		float64(a.ChunkX - b.ChunkX),
		float64(a.ChunkY - b.ChunkY),
		float64(a.ChunkZ - b.ChunkZ),
	}
	return hadamard(w.chunkDim, dChunk).Add(a.Offset.Sub(b.Offset))
}

// ChunkPositionFromTilePosition converts absolute tile coordinates into a
// world position, plus an extra metric offset.
func (w *World) ChunkPositionFromTilePosition(tileX, tileY, tileZ int32, additional mgl64.Vec3) Position {
	tileDim := mgl64.Vec3{w.tileSide, w.tileSide, w.tileDepth}
	offset := hadamard(tileDim, mgl64.Vec3{float64(tileX), float64(tileY), float64(tileZ)})
	return w.MapIntoChunkSpace(Position{}, additional.Add(offset))
}

// ChangeEntityChunkLocation moves a storage index between chunks. old may be
// nil (or the null position) for an entity not currently filed; a null
// newPos only detaches. The returned position is the canonical form of
// newPos. found is false when old named a chunk that did not hold index.
func (w *World) ChangeEntityChunkLocation(index uint32, old *Position, newPos Position) (canonical Position, found bool) {
	if index == 0 {
		panic("world: change chunk location of null storage index")
	}
	if old != nil && !old.IsValid() {
		old = nil
	}
	if newPos.IsValid() {
		newPos = w.MapIntoChunkSpace(newPos, mgl64.Vec3{})
	}

	if old != nil && newPos.IsValid() && AreInSameChunk(*old, newPos) {
		return newPos, true
	}

	found = true
	if old != nil {
		found = w.removeFromChunk(index, *old)
		if !found {
			w.log.Warn("entity missing from its chunk",
				zap.Uint32("storage_index", index),
				zap.Int32("x", old.ChunkX), zap.Int32("y", old.ChunkY), zap.Int32("z", old.ChunkZ))
		}
	}
	if newPos.IsValid() {
		w.insertIntoChunk(index, newPos)
	}
	return newPos, found
}

func (w *World) removeFromChunk(index uint32, p Position) bool {
	c, ok := w.GetChunk(p.ChunkX, p.ChunkY, p.ChunkZ)
	if !ok {
		return false
	}
	first := &w.blocks[c.first]
	for b := c.first; b != noIndex; b = w.blocks[b].next {
		blk := &w.blocks[b]
		for i := int32(0); i < blk.count; i++ {
			if blk.indices[i] != index {
				continue
			}
			first.count--
			blk.indices[i] = first.indices[first.count]
			if first.count == 0 && first.next != noIndex {
				freed := first.next
				*first = w.blocks[freed]
				w.blocks[freed] = idBlock{next: w.freeBlock}
				w.freeBlock = freed
			}
			return true
		}
	}
	return false
}

func (w *World) insertIntoChunk(index uint32, p Position) {
	ci := w.getOrCreateChunk(p.ChunkX, p.ChunkY, p.ChunkZ)
	head := w.chunks[ci].first
	if w.blocks[head].count == blockCapacity {
		spill := w.allocBlock()
		w.blocks[spill] = w.blocks[head]
		w.blocks[head] = idBlock{next: spill}
	}
	blk := &w.blocks[head]
	blk.indices[blk.count] = index
	blk.count++
}
