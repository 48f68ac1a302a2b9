package system

import (
	"time"

	"go.uber.org/zap"

	"github.com/tilesim/server/internal/core/event"
	coresys "github.com/tilesim/server/internal/core/system"
	"github.com/tilesim/server/internal/game"
)

// Totals accumulates what the simulation reported since startup.
type Totals struct {
	Frames    uint64
	SwordHits uint64
	Defeated  uint64
	Relocated uint64
	Dropped   uint64
	Snapshots uint64
	MaxRegion int
}

// StatsSystem tallies frame stats and bus events and logs a summary every
// interval ticks. Phase 3 (PostUpdate).
type StatsSystem struct {
	state     *game.State
	sim       *SimulationSystem
	log       *zap.Logger
	totals    Totals
	tickCount int
	interval  int
}

func NewStatsSystem(state *game.State, sim *SimulationSystem, bus *event.Bus, log *zap.Logger, intervalTicks int) *StatsSystem {
	s := &StatsSystem{state: state, sim: sim, log: log, interval: intervalTicks}
	event.Subscribe(bus, func(event.SwordHit) { s.totals.SwordHits++ })
	event.Subscribe(bus, func(event.MonsterDefeated) { s.totals.Defeated++ })
	event.Subscribe(bus, func(event.EntityRelocated) { s.totals.Relocated++ })
	event.Subscribe(bus, func(event.SnapshotSaved) { s.totals.Snapshots++ })
	return s
}

func (s *StatsSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *StatsSystem) Update(_ time.Duration) {
	last := s.sim.Last()
	s.totals.Frames++
	s.totals.Dropped += uint64(last.Dropped)
	if last.Simulated > s.totals.MaxRegion {
		s.totals.MaxRegion = last.Simulated
	}

	s.tickCount++
	if s.tickCount < s.interval {
		return
	}
	s.tickCount = 0
	cam := s.state.Camera()
	s.log.Debug("simulation stats",
		zap.Uint64("tick", last.Tick),
		zap.Int("entities", s.state.Storage().Count()),
		zap.Int("chunks", s.state.World().ChunkCount()),
		zap.Int("region", last.Simulated),
		zap.Int("updated", last.Updated),
		zap.Int("max_region", s.totals.MaxRegion),
		zap.Uint64("sword_hits", s.totals.SwordHits),
		zap.Uint64("defeated", s.totals.Defeated),
		zap.Uint64("relocated", s.totals.Relocated),
		zap.Uint64("dropped", s.totals.Dropped),
		zap.Int("arena_used", s.state.Arena().Used()),
		zap.Int32("camera_z", cam.ChunkZ))
}

// Totals returns the running totals.
func (s *StatsSystem) Totals() Totals { return s.totals }
