package system

import (
	"time"

	coresys "github.com/tilesim/server/internal/core/system"
	"github.com/tilesim/server/internal/game"
)

// InputSystem polls the hero controller once per tick. Phase 0 (Input).
type InputSystem struct {
	controller game.Controller
	state      *game.State
	latest     game.Input
}

func NewInputSystem(controller game.Controller, state *game.State) *InputSystem {
	return &InputSystem{controller: controller, state: state}
}

func (s *InputSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *InputSystem) Update(_ time.Duration) {
	s.latest = s.controller.Poll(s.state.Tick() + 1)
}

// Latest returns the input polled this tick.
func (s *InputSystem) Latest() game.Input { return s.latest }
