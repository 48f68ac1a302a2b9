package entity

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilesim/server/internal/core/arena"
)

func TestAddAssignsMonotonicIndices(t *testing.T) {
	s := NewStorage(arena.New("perm", 1<<20), 4)
	for want := uint32(1); want <= 4; want++ {
		got := s.Add(Entity{Type: TypeWall})
		assert.Equal(t, want, got)
		assert.Equal(t, want, s.Get(got).StorageIndex)
	}
	assert.Equal(t, 4, s.Count())
	assert.Equal(t, 4, s.Capacity())
}

func TestAddReturnsNullWhenFull(t *testing.T) {
	s := NewStorage(arena.New("perm", 1<<20), 2)
	require.NotZero(t, s.Add(Entity{}))
	require.NotZero(t, s.Add(Entity{}))
	assert.Zero(t, s.Add(Entity{}))
	assert.Zero(t, s.Add(Entity{}))
	assert.Equal(t, 2, s.Count())
}

func TestGetRejectsNullAndOutOfRange(t *testing.T) {
	s := NewStorage(arena.New("perm", 1<<20), 8)
	s.Add(Entity{})
	assert.Nil(t, s.Get(0))
	assert.Nil(t, s.Get(2))
	assert.Nil(t, s.Get(9))
	assert.NotNil(t, s.Get(1))
}

func TestPutKeepsIndex(t *testing.T) {
	s := NewStorage(arena.New("perm", 1<<20), 8)
	i := s.Add(Entity{Type: TypeMonster, HitPoints: 3})
	s.Put(i, Entity{Type: TypeMonster, HitPoints: 1, StorageIndex: 42})
	assert.Equal(t, i, s.Get(i).StorageIndex)
	assert.Equal(t, uint32(1), s.Get(i).HitPoints)
	assert.Panics(t, func() { s.Put(5, Entity{}) })
}

func TestDigestTracksContent(t *testing.T) {
	a := arena.New("perm", 1<<20)
	group := NewBoxGroup(a, "wall", mgl64.Vec3{1.4, 1.4, 3})

	build := func() *Storage {
		s := NewStorage(a, 8)
		s.Add(Entity{Type: TypeWall, Collision: group})
		s.Add(Entity{Type: TypeMonster, HitPoints: 3, Vel: mgl64.Vec3{1, 0, 0}})
		return s
	}
	s1, s2 := build(), build()
	assert.Equal(t, s1.Digest(), s2.Digest())

	s2.Get(2).HitPoints = 2
	assert.NotEqual(t, s1.Digest(), s2.Digest())
}

func TestEachVisitsInOrder(t *testing.T) {
	s := NewStorage(arena.New("perm", 1<<20), 8)
	for i := 0; i < 3; i++ {
		s.Add(Entity{})
	}
	var seen []uint32
	s.Each(func(index uint32, e *Entity) {
		assert.Equal(t, index, e.StorageIndex)
		seen = append(seen, index)
	})
	assert.Equal(t, []uint32{1, 2, 3}, seen)
}

func TestBoxGroupIsGrounded(t *testing.T) {
	g := NewBoxGroup(arena.New("perm", 1<<16), "hero", mgl64.Vec3{1, 0.5, 1.2})
	require.Len(t, g.Volumes, 1)
	assert.InDelta(t, 0.6, g.Total.OffsetPos.Z(), 1e-9)
	assert.True(t, g.Total.Size.ApproxEqual(mgl64.Vec3{1, 0.5, 1.2}))
}

func TestVolumeGroupTotalBoundsAll(t *testing.T) {
	g := NewVolumeGroup(arena.New("perm", 1<<16), "pair",
		CollisionVolume{Size: mgl64.Vec3{1, 1, 1}, OffsetPos: mgl64.Vec3{-1, 0, 0.5}},
		CollisionVolume{Size: mgl64.Vec3{1, 1, 2}, OffsetPos: mgl64.Vec3{1, 0, 1}},
	)
	assert.True(t, g.Total.Size.ApproxEqual(mgl64.Vec3{3, 1, 2}))
	assert.True(t, g.Total.OffsetPos.ApproxEqual(mgl64.Vec3{0, 0, 1}))

	empty := NewVolumeGroup(arena.New("perm", 1<<16), "none")
	assert.Empty(t, empty.Volumes)
}

func TestFlagsAndTypes(t *testing.T) {
	var f Flags
	f.Set(FlagMovable | FlagStopsOnCollide)
	assert.True(t, f.Has(FlagMovable))
	assert.False(t, f.Has(FlagMovable|FlagNonSpatial))
	f.Clear(FlagMovable)
	assert.False(t, f.Has(FlagMovable))

	typ, ok := ParseType("stairs")
	assert.True(t, ok)
	assert.Equal(t, TypeStairs, typ)
	assert.Equal(t, "sword", TypeSword.String())
	_, ok = ParseType("dragon")
	assert.False(t, ok)
}
