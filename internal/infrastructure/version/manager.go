// Package version produces strictly monotonic MonitoringVersion tokens.
//
// A Manager is the sole source of MonitoringVersion values for a process; every
// mutation to the monitoring control plane (internal/business/controller) asks
// the Manager for a fresh version before committing, so that any two versions
// observed in program order satisfy v1 < v2 regardless of which goroutine
// requested them.
package version

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avkuznetsov/callwatch/internal/core/monitoring"
)

// Clock abstracts the monotonic millisecond source so tests can control time
// without sleeping. Production code uses systemClock.
type Clock interface {
	NowMillis() uint64
}

type systemClock struct{}

func (systemClock) NowMillis() uint64 {
	return uint64(time.Now().UnixMilli())
}

// Manager generates MonitoringVersion values under a mutex.
//
// Algorithm (spec.md §4.1): read the clock; if it has advanced past the last
// observed timestamp, adopt it and reset the counter; otherwise increment the
// counter. On counter overflow, force the timestamp forward by one so ordering
// is preserved even under a stalled or coarse clock.
type Manager struct {
	mu            sync.Mutex
	clock         Clock
	lastTimestamp uint64
	counter       uint32
}

// New returns a Manager using the wall clock.
func New() *Manager {
	return &Manager{clock: systemClock{}}
}

// NewWithClock returns a Manager driven by a caller-supplied Clock, for tests
// that need to force counter saturation or same-millisecond collisions.
func NewWithClock(clock Clock) *Manager {
	return &Manager{clock: clock}
}

// Next returns the next MonitoringVersion. Safe for concurrent use; for any
// two calls A happens-before B in real time, Next() called by A returns a
// value strictly less than the value returned by B.
func (m *Manager) Next() monitoring.MonitoringVersion {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.NowMillis()
	switch {
	case now > m.lastTimestamp:
		m.lastTimestamp = now
		m.counter = 0
	case m.counter == ^uint32(0):
		// Counter saturated within the same millisecond: force the clock
		// forward so strict monotonicity holds without waiting on the clock.
		m.lastTimestamp++
		m.counter = 0
	default:
		m.counter++
	}

	return monitoring.MonitoringVersion{
		TimestampMs: m.lastTimestamp,
		Counter:     m.counter,
		UUID:        uuid.New(),
	}
}
