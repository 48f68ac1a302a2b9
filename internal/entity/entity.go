package entity

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/tilesim/server/internal/world"
)

// Type selects an entity's behaviour and collision policy.
type Type uint8

const (
	TypeNull Type = iota
	TypeHero
	TypeWall
	TypeFamiliar
	TypeMonster
	TypeSword
	TypeStairs
	TypeSpace
)

var typeNames = [...]string{
	TypeNull:     "null",
	TypeHero:     "hero",
	TypeWall:     "wall",
	TypeFamiliar: "familiar",
	TypeMonster:  "monster",
	TypeSword:    "sword",
	TypeStairs:   "stairs",
	TypeSpace:    "space",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "unknown"
}

// ParseType maps a lowercase name back to its Type.
func ParseType(name string) (Type, bool) {
	for i, n := range typeNames {
		if n == name {
			return Type(i), true
		}
	}
	return TypeNull, false
}

// Flags is the entity flag bitset.
type Flags uint32

const (
	FlagStopsOnCollide Flags = 1 << iota
	FlagTraversable
	FlagMovable
	FlagNonSpatial
	FlagOverlaps
	FlagZSupported

	// FlagSimming is set only while the entity sits in a live region.
	FlagSimming Flags = 1 << 30
)

func (f Flags) Has(mask Flags) bool { return f&mask == mask }
func (f *Flags) Set(mask Flags)     { *f |= mask }
func (f *Flags) Clear(mask Flags)   { *f &^= mask }

// Entity is both the persistent record kept in Storage and the working copy
// inside a simulation region. Pos is region-local and zero at rest.
type Entity struct {
	StorageIndex uint32
	Type         Type
	Flags        Flags

	Pos      mgl64.Vec3
	Vel      mgl64.Vec3
	WorldPos world.Position

	Collision *CollisionVolumeGroup

	HitPoints   uint32
	HitPointMax uint32

	// Sword is the storage index of the entity's weapon, 0 for none.
	Sword   uint32
	FaceDir uint32

	// DistanceRemaining bounds travel; 0 means unlimited.
	DistanceRemaining float64

	WalkableDim    mgl64.Vec2
	WalkableHeight float64

	// Updatable is set by BeginSimulation for entities inside the inner
	// bounds; the apron outside them is collision-only.
	Updatable bool
}

func (e *Entity) IsSpatial() bool { return !e.Flags.Has(FlagNonSpatial) }
