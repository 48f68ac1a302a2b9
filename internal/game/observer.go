package game

import (
	"github.com/tilesim/server/internal/core/event"
	"github.com/tilesim/server/internal/world"
)

// BusObserver forwards gameplay notifications to the event bus, stamped
// with the tick they happened in.
type BusObserver struct {
	bus   *event.Bus
	clock func() uint64
}

func NewBusObserver(bus *event.Bus, clock func() uint64) *BusObserver {
	return &BusObserver{bus: bus, clock: clock}
}

func (o *BusObserver) SwordHit(sword, monster, hitPoints uint32) {
	event.Emit(o.bus, event.SwordHit{
		Tick:      o.clock(),
		Sword:     sword,
		Monster:   monster,
		HitPoints: hitPoints,
	})
}

func (o *BusObserver) EntityRelocated(index uint32, from, to world.Position) {
	event.Emit(o.bus, event.EntityRelocated{
		Tick:  o.clock(),
		Index: index,
		From:  from,
		To:    to,
	})
}

func (o *BusObserver) MonsterDefeated(monster uint32) {
	event.Emit(o.bus, event.MonsterDefeated{Tick: o.clock(), Monster: monster})
}
