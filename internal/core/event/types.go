package event

import (
	"github.com/google/uuid"

	"github.com/tilesim/server/internal/world"
)

// SwordHit is raised when a sword first strikes a monster during a swing.
type SwordHit struct {
	Tick      uint64
	Sword     uint32
	Monster   uint32
	HitPoints uint32 // after the hit
}

// MonsterDefeated is raised when a monster at zero hit points leaves the
// world.
type MonsterDefeated struct {
	Tick    uint64
	Monster uint32
}

// EntityRelocated is raised when a move carries an entity into another
// chunk.
type EntityRelocated struct {
	Tick  uint64
	Index uint32
	From  world.Position
	To    world.Position
}

// SnapshotSaved is raised by the persistence writer after a snapshot
// commits.
type SnapshotSaved struct {
	Run      uuid.UUID
	Tick     uint64
	Entities int
}
