package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput      Phase = iota // 0: poll the controller
	PhasePreUpdate               // 1: process last tick's events
	PhaseUpdate                  // 2: simulate one frame
	PhasePostUpdate              // 3: stats
	PhasePersist                 // 4: snapshot capture
	PhaseCleanup                 // 5: end-of-tick bookkeeping

	phaseCount
)

var phaseNames = [...]string{"input", "pre_update", "update", "post_update", "persist", "cleanup"}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "unknown"
}

// System is the interface every tick system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
