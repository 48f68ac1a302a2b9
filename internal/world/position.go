package world

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ChunkUninitialized marks an unset chunk coordinate. A position whose
// ChunkX carries it is the null position: "not placed in the world".
const ChunkUninitialized = math.MaxInt32

// chunkSafeMargin keeps chunk coordinates far enough from the int32 limits
// that neighbour arithmetic never wraps.
const chunkSafeMargin = math.MaxInt32 / 64

// canonicalEpsilon is the slack allowed past half a chunk after rounding.
const canonicalEpsilon = 0.01

// Position is a chunk coordinate plus a metric offset from the chunk centre.
type Position struct {
	ChunkX int32
	ChunkY int32
	ChunkZ int32
	Offset mgl64.Vec3
}

// NullPosition returns the position used by entities detached from the
// chunk index.
func NullPosition() Position {
	return Position{
		ChunkX: ChunkUninitialized,
		ChunkY: ChunkUninitialized,
		ChunkZ: ChunkUninitialized,
	}
}

func (p Position) IsValid() bool { return p.ChunkX != ChunkUninitialized }

// AreInSameChunk reports whether both positions are in the same chunk.
func AreInSameChunk(a, b Position) bool {
	return a.ChunkX == b.ChunkX && a.ChunkY == b.ChunkY && a.ChunkZ == b.ChunkZ
}

func hadamard(a, b mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

func isCanonicalCoord(rel, dim float64) bool {
	half := 0.5*dim + canonicalEpsilon
	return rel >= -half && rel <= half
}

func recanonicalizeCoord(dim float64, chunk *int32, rel *float64) {
	d := int32(math.Round(*rel / dim))
	*chunk += d
	*rel -= float64(d) * dim
}
