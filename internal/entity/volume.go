package entity

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/tilesim/server/internal/core/arena"
)

// CollisionVolume is an axis-aligned box centred at OffsetPos from the
// entity position.
type CollisionVolume struct {
	Size      mgl64.Vec3
	OffsetPos mgl64.Vec3
}

// CollisionVolumeGroup is an immutable compound shape shared by reference
// between every entity of a kind. Total bounds all Volumes.
type CollisionVolumeGroup struct {
	Name    string
	Total   CollisionVolume
	Volumes []CollisionVolume
}

// NewVolumeGroup allocates a group from the permanent arena. With no
// volumes the group has a zero-sized Total and nothing to collide with.
func NewVolumeGroup(a *arena.Arena, name string, volumes ...CollisionVolume) *CollisionVolumeGroup {
	g := arena.PushStruct[CollisionVolumeGroup](a)
	g.Name = name
	if len(volumes) == 0 {
		return g
	}
	g.Volumes = arena.PushArray[CollisionVolume](a, len(volumes))
	copy(g.Volumes, volumes)
	g.Total = boundingVolume(volumes)
	return g
}

// NewBoxGroup builds a single grounded box: the entity position is the
// bottom centre, so the box sits half its height above it.
func NewBoxGroup(a *arena.Arena, name string, dim mgl64.Vec3) *CollisionVolumeGroup {
	return NewVolumeGroup(a, name, CollisionVolume{
		Size:      dim,
		OffsetPos: mgl64.Vec3{0, 0, 0.5 * dim.Z()},
	})
}

func boundingVolume(volumes []CollisionVolume) CollisionVolume {
	lo := mgl64.Vec3{math.Inf(1), math.Inf(1), math.Inf(1)}
	hi := mgl64.Vec3{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for _, v := range volumes {
		half := v.Size.Mul(0.5)
		vlo := v.OffsetPos.Sub(half)
		vhi := v.OffsetPos.Add(half)
		for i := 0; i < 3; i++ {
			lo[i] = math.Min(lo[i], vlo[i])
			hi[i] = math.Max(hi[i], vhi[i])
		}
	}
	return CollisionVolume{
		Size:      hi.Sub(lo),
		OffsetPos: lo.Add(hi).Mul(0.5),
	}
}
