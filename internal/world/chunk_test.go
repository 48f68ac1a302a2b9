package world

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tilesim/server/internal/core/arena"
)

func newTestWorld(t *testing.T) *World {
	t.Helper()
	a := arena.New("world", 1<<20)
	return New(Config{
		TileSideMeters:  1.4,
		TileDepthMeters: 3.0,
		ChunkTiles:      16,
		HashSize:        64,
	}, a, zap.NewNop())
}

func TestNewRejectsNonPowerOfTwoHash(t *testing.T) {
	a := arena.New("world", 1<<16)
	assert.Panics(t, func() {
		New(Config{TileSideMeters: 1, TileDepthMeters: 1, ChunkTiles: 1, HashSize: 100}, a, zap.NewNop())
	})
}

func TestNullPosition(t *testing.T) {
	assert.False(t, NullPosition().IsValid())
	assert.True(t, Position{}.IsValid())
}

func TestMapIntoChunkSpaceCanonicalizes(t *testing.T) {
	w := newTestWorld(t)
	dim := w.ChunkDim()
	require.InDelta(t, 22.4, dim.X(), 1e-9)

	cases := []mgl64.Vec3{
		{0, 0, 0},
		{11.3, -11.3, 1.6},
		{100, -250.7, -7},
		{dim.X() * 0.5, dim.Y() * -0.5, 0},
		{-1e4, 3e4, 44},
	}
	for _, off := range cases {
		p := w.MapIntoChunkSpace(Position{}, off)
		assert.True(t, w.IsCanonical(p), "offset %v -> %+v", off, p)
		assert.LessOrEqual(t, math.Abs(p.Offset.X()), 0.5*dim.X()+canonicalEpsilon)
		assert.LessOrEqual(t, math.Abs(p.Offset.Y()), 0.5*dim.Y()+canonicalEpsilon)
		// Round trip back to the same metric delta.
		back := w.Subtract(p, Position{})
		assert.True(t, back.ApproxEqualThreshold(off, 1e-6), "%v != %v", back, off)
	}
}

func TestMapIntoChunkSpaceShiftsChunks(t *testing.T) {
	w := newTestWorld(t)
	p := w.MapIntoChunkSpace(Position{ChunkX: 2, ChunkY: -1}, mgl64.Vec3{23, -12, 0})
	assert.Equal(t, int32(3), p.ChunkX)
	assert.Equal(t, int32(-2), p.ChunkY)
	assert.InDelta(t, 0.6, p.Offset.X(), 1e-9)
	assert.InDelta(t, 10.4, p.Offset.Y(), 1e-9)
}

func TestSubtract(t *testing.T) {
	w := newTestWorld(t)
	a := Position{ChunkX: 1, ChunkY: 0, ChunkZ: 1, Offset: mgl64.Vec3{1, 2, 0.5}}
	b := Position{ChunkX: 0, ChunkY: 1, ChunkZ: 0, Offset: mgl64.Vec3{-1, 0, 0}}
	d := w.Subtract(a, b)
	assert.InDelta(t, 22.4+2, d.X(), 1e-9)
	assert.InDelta(t, -22.4+2, d.Y(), 1e-9)
	assert.InDelta(t, 3.5, d.Z(), 1e-9)
}

func TestChunkPositionFromTilePosition(t *testing.T) {
	w := newTestWorld(t)
	p := w.ChunkPositionFromTilePosition(17, 3, 1, mgl64.Vec3{})
	rel := w.Subtract(p, Position{})
	assert.InDelta(t, 17*1.4, rel.X(), 1e-9)
	assert.InDelta(t, 3*1.4, rel.Y(), 1e-9)
	assert.InDelta(t, 3.0, rel.Z(), 1e-9)
	assert.Equal(t, int32(1), p.ChunkX)
	assert.Equal(t, int32(1), p.ChunkZ)
}

func TestGetChunkIsLazy(t *testing.T) {
	w := newTestWorld(t)
	_, ok := w.GetChunk(0, 0, 0)
	assert.False(t, ok)

	w.ChangeEntityChunkLocation(1, nil, Position{})
	c, ok := w.GetChunk(0, 0, 0)
	require.True(t, ok)
	assert.Equal(t, int32(0), c.X)
	assert.Equal(t, 1, w.ChunkCount())
}

func TestHashCollisionsChain(t *testing.T) {
	w := newTestWorld(t)
	// 64 buckets: (x, 0, 0) and (x+64, 0, 0) hash to the same slot only if
	// 19*64 is a multiple of 64, which it is.
	w.ChangeEntityChunkLocation(1, nil, Position{ChunkX: 1})
	w.ChangeEntityChunkLocation(2, nil, Position{ChunkX: 65})
	assert.Equal(t, []uint32{1}, w.ChunkEntities(1, 0, 0))
	assert.Equal(t, []uint32{2}, w.ChunkEntities(65, 0, 0))
}

func TestChangeLocationRelocatesExactlyOnce(t *testing.T) {
	w := newTestWorld(t)
	from := Position{ChunkX: 0, ChunkY: 0}
	_, found := w.ChangeEntityChunkLocation(7, nil, from)
	require.True(t, found)

	to := w.MapIntoChunkSpace(from, mgl64.Vec3{12, 0, 0})
	require.Equal(t, int32(1), to.ChunkX)
	canonical, found := w.ChangeEntityChunkLocation(7, &from, to)
	assert.True(t, found)
	assert.Equal(t, to, canonical)
	assert.Equal(t, 1, w.CountOf(1, 0, 0, 7))
	assert.Equal(t, 0, w.CountOf(0, 0, 0, 7))
}

func TestChangeLocationSameChunkIsNoop(t *testing.T) {
	w := newTestWorld(t)
	p := Position{Offset: mgl64.Vec3{1, 1, 0}}
	w.ChangeEntityChunkLocation(3, nil, p)
	q := Position{Offset: mgl64.Vec3{2, -1, 0}}
	w.ChangeEntityChunkLocation(3, &p, q)
	assert.Equal(t, []uint32{3}, w.ChunkEntities(0, 0, 0))
}

func TestChangeLocationToNullDetaches(t *testing.T) {
	w := newTestWorld(t)
	p := Position{}
	w.ChangeEntityChunkLocation(3, nil, p)
	canonical, found := w.ChangeEntityChunkLocation(3, &p, NullPosition())
	assert.True(t, found)
	assert.False(t, canonical.IsValid())
	assert.Empty(t, w.ChunkEntities(0, 0, 0))
}

func TestChangeLocationMissingIdIsReported(t *testing.T) {
	w := newTestWorld(t)
	p := Position{}
	w.ChangeEntityChunkLocation(1, nil, p)
	_, found := w.ChangeEntityChunkLocation(99, &p, Position{ChunkX: 4})
	assert.False(t, found)
	assert.Equal(t, []uint32{99}, w.ChunkEntities(4, 0, 0))
}

func TestBlocksSpillAndCompact(t *testing.T) {
	w := newTestWorld(t)
	p := Position{}
	for i := uint32(1); i <= 40; i++ {
		w.ChangeEntityChunkLocation(i, nil, p)
	}
	ids := w.ChunkEntities(0, 0, 0)
	assert.Len(t, ids, 40)
	assert.ElementsMatch(t, seq(1, 40), ids)
	blocksBefore := w.BlockCount()
	assert.Equal(t, 3, blocksBefore)

	// Remove everything but the last entity; blocks are recycled.
	for i := uint32(1); i < 40; i++ {
		_, found := w.ChangeEntityChunkLocation(i, &p, NullPosition())
		require.True(t, found, "id %d", i)
	}
	assert.Equal(t, []uint32{40}, w.ChunkEntities(0, 0, 0))

	// Refilling reuses freed blocks instead of growing.
	for i := uint32(41); i <= 70; i++ {
		w.ChangeEntityChunkLocation(i, nil, p)
	}
	assert.Equal(t, blocksBefore, w.BlockCount())
	assert.Len(t, w.ChunkEntities(0, 0, 0), 31)
}

func TestSafeMarginPanics(t *testing.T) {
	w := newTestWorld(t)
	assert.Panics(t, func() {
		w.ChangeEntityChunkLocation(1, nil, Position{ChunkX: chunkSafeMargin})
	})
	assert.Panics(t, func() {
		w.ChangeEntityChunkLocation(0, nil, Position{})
	})
}

func seq(from, to uint32) []uint32 {
	var out []uint32
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}
