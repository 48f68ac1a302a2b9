package persist

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tilesim/server/internal/core/arena"
	"github.com/tilesim/server/internal/entity"
	"github.com/tilesim/server/internal/world"
)

func shapesFor(a *arena.Arena) func(string) *entity.CollisionVolumeGroup {
	groups := map[string]*entity.CollisionVolumeGroup{
		"hero":  entity.NewBoxGroup(a, "hero", mgl64.Vec3{1, 0.5, 1.2}),
		"sword": entity.NewBoxGroup(a, "sword", mgl64.Vec3{1, 0.5, 0.1}),
	}
	return func(name string) *entity.CollisionVolumeGroup { return groups[name] }
}

func TestCaptureAndRestorePreservesDigest(t *testing.T) {
	a := arena.New("test", 1<<20)
	shape := shapesFor(a)
	w := world.New(world.Config{TileSideMeters: 1.4, TileDepthMeters: 3, ChunkTiles: 16, HashSize: 16}, a, zaptest.NewLogger(t))
	src := entity.NewStorage(a, 8)

	sword := src.Add(entity.Entity{
		Type:      entity.TypeSword,
		Flags:     entity.FlagMovable | entity.FlagNonSpatial,
		WorldPos:  world.NullPosition(),
		Collision: shape("sword"),
	})
	heroPos := w.MapIntoChunkSpace(world.Position{}, mgl64.Vec3{30.25, -4.5, -1.35})
	src.Add(entity.Entity{
		Type:              entity.TypeHero,
		Flags:             entity.FlagStopsOnCollide | entity.FlagMovable | entity.FlagZSupported,
		WorldPos:          heroPos,
		Vel:               mgl64.Vec3{1.5, -0.25, 0},
		Collision:         shape("hero"),
		HitPoints:         2,
		HitPointMax:       3,
		Sword:             sword,
		FaceDir:           3,
		DistanceRemaining: 0.75,
	})

	rows, err := CaptureRows(src)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Nil(t, rows[0].ChunkX, "non-spatial rows carry no chunk")
	require.NotNil(t, rows[1].ChunkX)
	assert.Equal(t, heroPos.ChunkX, *rows[1].ChunkX)
	assert.Equal(t, "hero", rows[1].Collision)

	dst := entity.NewStorage(a, 8)
	for _, row := range rows {
		e, err := row.Restore(shape)
		require.NoError(t, err)
		assert.Equal(t, uint32(row.StorageIndex), dst.Add(e))
	}
	assert.Equal(t, src.Digest(), dst.Digest())
	assert.Same(t, shape("hero"), dst.Get(2).Collision)
}

func TestRowDropsSimmingFlag(t *testing.T) {
	row, err := RowFromEntity(&entity.Entity{
		StorageIndex: 4,
		Flags:        entity.FlagMovable | entity.FlagSimming,
		WorldPos:     world.Position{},
	})
	require.NoError(t, err)
	assert.Equal(t, int32(entity.FlagMovable), row.Flags)
}

func TestRestoreRejectsBadRows(t *testing.T) {
	shape := shapesFor(arena.New("test", 1<<16))
	good, err := RowFromEntity(&entity.Entity{StorageIndex: 1, Type: entity.TypeHero, WorldPos: world.Position{}})
	require.NoError(t, err)

	unknown := good
	unknown.Collision = "dragon"
	_, err = unknown.Restore(shape)
	assert.ErrorContains(t, err, "dragon")

	garbled := good
	garbled.Payload = []byte{0xc1}
	_, err = garbled.Restore(shape)
	assert.Error(t, err)

	placeless := good
	placeless.ChunkX, placeless.ChunkY, placeless.ChunkZ = nil, nil, nil
	_, err = placeless.Restore(shape)
	assert.ErrorContains(t, err, "without a chunk")
}
