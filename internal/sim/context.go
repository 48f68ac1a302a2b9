// Package sim runs one simulation step over a bounded region of the world:
// it copies nearby entities out of storage, moves them with swept-AABB
// collision, and writes them back.
package sim

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/tilesim/server/internal/collision"
	"github.com/tilesim/server/internal/core/arena"
	"github.com/tilesim/server/internal/entity"
	"github.com/tilesim/server/internal/world"
)

// Policy decides when an entity made spatial mid-frame starts simulating.
type Policy uint8

const (
	// PolicyImmediate inserts the entity into the live region as updatable.
	PolicyImmediate Policy = iota
	// PolicyDeferred files it in the world index only; the next
	// BeginSimulation picks it up.
	PolicyDeferred
)

func (p Policy) String() string {
	if p == PolicyDeferred {
		return "deferred"
	}
	return "immediate"
}

// ParsePolicy maps a config value to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "immediate":
		return PolicyImmediate, nil
	case "deferred":
		return PolicyDeferred, nil
	}
	return PolicyImmediate, fmt.Errorf("unknown spatial policy %q", s)
}

// Observer receives gameplay side effects raised inside the resolver.
// Implementations must not touch the region or storage.
type Observer interface {
	SwordHit(sword, monster uint32, hitPoints uint32)
	EntityRelocated(index uint32, from, to world.Position)
}

type nopObserver struct{}

func (nopObserver) SwordHit(uint32, uint32, uint32)                        {}
func (nopObserver) EntityRelocated(uint32, world.Position, world.Position) {}

// Context bundles the process-scoped state every simulation entry point
// works on. It is passed explicitly; there are no package globals.
type Context struct {
	World    *world.World
	Storage  *entity.Storage
	Rules    *collision.Rules
	Frame    *arena.Arena
	Observer Observer
	Log      *zap.Logger

	Policy Policy

	// MaxEntities and HashSize bound one region. HashSize is a power of
	// two no smaller than MaxEntities.
	MaxEntities int
	HashSize    int

	// MaxOverlaps bounds the overlap pass of a single move.
	MaxOverlaps int
}

func (c *Context) observer() Observer {
	if c.Observer == nil {
		return nopObserver{}
	}
	return c.Observer
}
