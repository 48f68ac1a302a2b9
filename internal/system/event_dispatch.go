package system

import (
	"time"

	"go.uber.org/zap"

	"github.com/tilesim/server/internal/core/event"
	coresys "github.com/tilesim/server/internal/core/system"
)

// EventDispatchSystem delivers last tick's events at the start of this
// one. Phase 1 (PreUpdate).
type EventDispatchSystem struct {
	bus *event.Bus
	log *zap.Logger
}

func NewEventDispatchSystem(bus *event.Bus, log *zap.Logger) *EventDispatchSystem {
	return &EventDispatchSystem{bus: bus, log: log}
}

func (s *EventDispatchSystem) Phase() coresys.Phase { return coresys.PhasePreUpdate }

func (s *EventDispatchSystem) Update(_ time.Duration) {
	s.bus.SwapBuffers()
	if n := s.bus.DispatchAll(); n > 0 {
		s.log.Debug("events dispatched", zap.Int("count", n))
	}
}
