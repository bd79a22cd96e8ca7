package stream

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/alexanderramin/budgetcore/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestGenerations_LatestWins(t *testing.T) {
	g := NewGenerations()
	key := FetchKey(domain.EntitySubAccount)

	first := g.Begin(key)
	second := g.Begin(key)

	assert.False(t, g.Current(key, first))
	assert.True(t, g.Current(key, second))

	g.Cancel(key)
	assert.False(t, g.Current(key, second))
}

func TestGenerations_KeysAreIndependent(t *testing.T) {
	g := NewGenerations()

	a := g.Begin(EntityKey("delete", 1))
	b := g.Begin(EntityKey("delete", 2))
	g.Begin(EntityKey("update", 1))

	assert.True(t, g.Current(EntityKey("delete", 1), a))
	assert.True(t, g.Current(EntityKey("delete", 2), b))
	assert.Equal(t, "delete:-4", EntityKey("delete", -4))
	assert.Equal(t, "fetch:group", FetchKey(domain.EntityGroup))
}

func TestDebouncer_RunsLastTriggerOnce(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	var calls atomic.Int32
	var last atomic.Value

	for _, q := range []string{"c", "ca", "cam"} {
		q := q
		d.Trigger(func() {
			calls.Add(1)
			last.Store(q)
		})
	}

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "cam", last.Load())
}

func TestDebouncer_Stop(t *testing.T) {
	d := NewDebouncer(10 * time.Millisecond)
	var calls atomic.Int32

	d.Trigger(func() { calls.Add(1) })
	d.Stop()

	time.Sleep(40 * time.Millisecond)
	assert.Zero(t, calls.Load())
}
