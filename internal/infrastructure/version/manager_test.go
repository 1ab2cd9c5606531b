package version

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avkuznetsov/callwatch/internal/core/monitoring"
)

// fixedClock lets tests force same-millisecond collisions and overflow.
type fixedClock struct {
	mu   sync.Mutex
	millis uint64
}

func (c *fixedClock) NowMillis() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.millis
}

func (c *fixedClock) set(m uint64) {
	c.mu.Lock()
	c.millis = m
	c.mu.Unlock()
}

func TestNextIsStrictlyMonotonic(t *testing.T) {
	m := New()
	prev := m.Next()
	for i := 0; i < 10_000; i++ {
		next := m.Next()
		require.True(t, prev.Less(next), "version must strictly increase")
		prev = next
	}
}

func TestNextUnderConcurrencyStaysMonotonicPerSequence(t *testing.T) {
	m := New()
	const goroutines = 32
	const perGoroutine = 500

	var mu sync.Mutex
	seen := make(map[string]struct{})
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			prev := monitoring.Zero
			for i := 0; i < perGoroutine; i++ {
				v := m.Next()
				require.True(t, prev.Less(v), "versions seen by one goroutine must strictly increase")
				prev = v
				key := v.UUID.String()
				mu.Lock()
				_, dup := seen[key]
				seen[key] = struct{}{}
				mu.Unlock()
				require.False(t, dup, "uuid must be unique per version")
			}
		}()
	}
	wg.Wait()
	require.Len(t, seen, goroutines*perGoroutine)
}

func TestCounterResetsOnTimestampAdvance(t *testing.T) {
	clock := &fixedClock{millis: 100}
	m := NewWithClock(clock)

	v1 := m.Next()
	v2 := m.Next()
	require.Equal(t, v1.TimestampMs, v2.TimestampMs)
	require.Equal(t, v1.Counter+1, v2.Counter)

	clock.set(101)
	v3 := m.Next()
	require.Equal(t, uint64(101), v3.TimestampMs)
	require.Zero(t, v3.Counter)
	require.True(t, v2.Less(v3))
}

func TestCounterSaturationForcesTimestampForward(t *testing.T) {
	clock := &fixedClock{millis: 5}
	m := NewWithClock(clock)
	m.counter = ^uint32(0) // force immediate saturation on next call
	m.lastTimestamp = 5

	v := m.Next()
	require.Equal(t, uint64(6), v.TimestampMs)
	require.Zero(t, v.Counter)
}
