package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventsVisibleNextTick(t *testing.T) {
	b := NewBus()
	var got []SwordHit
	Subscribe(b, func(e SwordHit) { got = append(got, e) })

	Emit(b, SwordHit{Sword: 2, Monster: 3, HitPoints: 1})
	assert.Equal(t, 1, b.Pending())
	assert.Zero(t, b.DispatchAll())
	assert.Empty(t, got)

	b.SwapBuffers()
	assert.Zero(t, b.Pending())
	assert.Equal(t, 1, b.DispatchAll())
	require.Len(t, got, 1)
	assert.Equal(t, uint32(3), got[0].Monster)

	b.SwapBuffers()
	assert.Zero(t, b.DispatchAll())
	assert.Len(t, got, 1)
}

func TestDispatchOrderFollowsRegistration(t *testing.T) {
	b := NewBus()
	var order []string
	Subscribe(b, func(MonsterDefeated) { order = append(order, "defeated") })
	Subscribe(b, func(SwordHit) { order = append(order, "hit") })
	Subscribe(b, func(EntityRelocated) { order = append(order, "relocated") })

	for i := 0; i < 10; i++ {
		Emit(b, EntityRelocated{Index: 1})
		Emit(b, SwordHit{})
		Emit(b, MonsterDefeated{})
		b.SwapBuffers()
		order = order[:0]
		b.DispatchAll()
		assert.Equal(t, []string{"defeated", "hit", "relocated"}, order)
	}
}

func TestEmitWithoutSubscribers(t *testing.T) {
	b := NewBus()
	Emit(b, SnapshotSaved{Tick: 5})
	b.SwapBuffers()
	assert.Equal(t, 1, b.DispatchAll())
}
