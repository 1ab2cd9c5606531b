// Package pool implements the Method Call Info Pool (spec.md §4.3): a
// reference-counted free-list of monitoring.MethodCallInfo records, shared
// process-wide so that high call-volume instrumentation does not allocate a
// new record per call.
package pool

import (
	"sync"
	"sync/atomic"

	"github.com/avkuznetsov/callwatch/internal/core/monitoring"
	"github.com/avkuznetsov/callwatch/internal/metrics"
)

const idAlphabet = "abcdefghijklmnopqrstuvwxyz"

// Pool rents and reclaims monitoring.MethodCallInfo records. Safe for
// concurrent use from any number of goroutines.
type Pool struct {
	mu   sync.Mutex
	free []*monitoring.MethodCallInfo

	idCounter uint64
	live      int64
	highWater int64

	metrics *metrics.Registry
}

// Option configures a Pool at construction time.
type Option func(*Pool)

// WithMetrics attaches a metrics.Registry so rentals, returns, and live
// record count are observed.
func WithMetrics(m *metrics.Registry) Option {
	return func(p *Pool) { p.metrics = m }
}

// New returns an empty Pool.
func New(opts ...Option) *Pool {
	p := &Pool{}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Rent returns a fresh MethodCallInfo, or the shared null record when
// trackingEnabled is false (spec.md §4.3: "When monitoring is disabled
// (snapshot at call time) the pool returns its null record"). The caller
// supplies trackingEnabled as a snapshot taken before calling Rent; the pool
// itself has no opinion about controller state.
func (p *Pool) Rent(
	trackingEnabled bool,
	classType, methodDescriptor string,
	genericArgs, parameterTypes []string,
	parameters *monitoring.Params,
	isExternal bool,
) *monitoring.MethodCallInfo {
	if !trackingEnabled {
		return monitoring.NullRecord()
	}

	r := p.take()
	r.ID = p.nextID()
	r.ClassType = classType
	r.MethodDescriptor = methodDescriptor
	r.GenericArgs = genericArgs
	r.ParameterTypes = parameterTypes
	r.IsExtension = isExternal
	if parameters != nil {
		parameters.Each(func(k, v string) { r.Parameters.Set(k, v) })
	}

	live := atomic.AddInt64(&p.live, 1)
	for {
		hw := atomic.LoadInt64(&p.highWater)
		if live <= hw || atomic.CompareAndSwapInt64(&p.highWater, hw, live) {
			break
		}
	}
	if p.metrics != nil {
		p.metrics.PoolRentalsTotal.Inc()
		p.metrics.PoolLiveRecords.Set(float64(live))
	}
	return r
}

// take pops a record off the free-list, allocating a fresh one if empty, and
// marks it rented with its single implicit reference.
func (p *Pool) take() *monitoring.MethodCallInfo {
	p.mu.Lock()
	n := len(p.free)
	if n == 0 {
		p.mu.Unlock()
		r := &monitoring.MethodCallInfo{Parameters: monitoring.NewParams(), AttributeApplied: make(map[string]struct{})}
		r.SetPool(p)
		return r
	}
	r := p.free[n-1]
	p.free[n-1] = nil
	p.free = p.free[:n-1]
	p.mu.Unlock()
	r.SetPool(p)
	return r
}

// Release returns r to the free-list once its reference count has dropped to
// zero (called by monitoring.MethodCallInfo's Use releaser or ReleaseInitial,
// never directly).
// Implements the pooler interface monitoring.MethodCallInfo expects back.
func (p *Pool) Release(r *monitoring.MethodCallInfo) {
	r.Reset()
	live := atomic.AddInt64(&p.live, -1)
	p.mu.Lock()
	p.free = append(p.free, r)
	p.mu.Unlock()
	if p.metrics != nil {
		p.metrics.PoolReturnsTotal.Inc()
		p.metrics.PoolLiveRecords.Set(float64(live))
	}
}

// Return hands a freshly-rented record's single implicit reference back to
// the pool; it is the "initial" reference every rental starts with. The
// record goes back on the free-list once every Use() releaser obtained
// during the call's lifetime has also run. Null records are ignored.
func (p *Pool) Return(r *monitoring.MethodCallInfo) {
	if r == nil || r.IsNull {
		return
	}
	r.ReleaseInitial()
}

// Live returns the current count of outstanding (rented, not yet returned)
// records.
func (p *Pool) Live() int64 { return atomic.LoadInt64(&p.live) }

// HighWaterMark returns the largest Live() value ever observed, used by the
// P1 testable property (spec.md §8).
func (p *Pool) HighWaterMark() int64 { return atomic.LoadInt64(&p.highWater) }

// nextID generates the next base-26 id string from the pool's process-wide
// counter (spec.md §3: "id (base-26 string generated from a process-wide
// counter)").
func (p *Pool) nextID() string {
	n := atomic.AddUint64(&p.idCounter, 1) - 1
	if n == 0 {
		return string(idAlphabet[0])
	}
	var buf []byte
	for n > 0 {
		buf = append(buf, idAlphabet[n%26])
		n /= 26
	}
	// reverse in place
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf)
}
