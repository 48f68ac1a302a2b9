package system

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type probe struct {
	name  string
	phase Phase
	log   *[]string
}

func (p probe) Phase() Phase           { return p.phase }
func (p probe) Update(_ time.Duration) { *p.log = append(*p.log, p.name) }

func TestRunnerOrdersByPhaseThenRegistration(t *testing.T) {
	var log []string
	r := NewRunner()
	r.Register(probe{"persist", PhasePersist, &log})
	r.Register(probe{"sim", PhaseUpdate, &log})
	r.Register(probe{"input", PhaseInput, &log})
	r.Register(probe{"stats", PhaseUpdate, &log})
	assert.Equal(t, 4, r.Len())

	r.Tick(time.Millisecond)
	assert.Equal(t, []string{"input", "sim", "stats", "persist"}, log)

	log = log[:0]
	r.TickPhase(PhaseUpdate, time.Millisecond)
	assert.Equal(t, []string{"sim", "stats"}, log)
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "update", PhaseUpdate.String())
	assert.Equal(t, "unknown", Phase(42).String())
}

func TestRegisterRejectsUnknownPhase(t *testing.T) {
	var log []string
	r := NewRunner()
	assert.Panics(t, func() { r.Register(probe{"bad", Phase(9), &log}) })
	assert.Zero(t, r.Len())
}
