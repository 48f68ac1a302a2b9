package system

import (
	"time"

	coresys "github.com/tilesim/server/internal/core/system"
	"github.com/tilesim/server/internal/game"
)

// SimulationSystem advances the world by one frame. Phase 2 (Update).
type SimulationSystem struct {
	state *game.State
	input *InputSystem
	last  game.FrameStats
}

func NewSimulationSystem(state *game.State, input *InputSystem) *SimulationSystem {
	return &SimulationSystem{state: state, input: input}
}

func (s *SimulationSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *SimulationSystem) Update(dt time.Duration) {
	s.last = s.state.Frame(dt, s.input.Latest())
}

// Last returns the stats of the most recent frame.
func (s *SimulationSystem) Last() game.FrameStats { return s.last }
