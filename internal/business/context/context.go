// Package callctx implements the Method Call Context (spec.md §4.6): the
// scoped handle returned at method entry that guarantees matched
// Start/End(/Exception) emission. Named callctx rather than context to avoid
// shadowing the standard library package every call site also imports.
package callctx

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avkuznetsov/callwatch/internal/business/callstack"
	"github.com/avkuznetsov/callwatch/internal/core/monitoring"
	"github.com/avkuznetsov/callwatch/internal/metrics"
)

// Context is the interface both the real, tracked handle and the shared null
// handle satisfy (spec.md GLOSSARY "Null context / null record"). Every
// operation on the null handle is a no-op.
type Context interface {
	// SetParameter mutates the record's parameter map; last write wins for a
	// repeated key. No-op when tracking is inactive.
	SetParameter(name, value string)
	// Log emits a LogEntry event if tracking is active.
	Log(category string, data map[string]string)
	// Exception emits an Exception event carrying err's message and a stack
	// trace, without ending the scope. Safe to call more than once, though
	// spec.md §4.6 only ever needs it called once before End.
	Exception(err error)
	// End stops the timer, records elapsed time, emits End, drains attached
	// cleanups in reverse-registration order, and returns the record to its
	// pool. Idempotent: a second call is a no-op.
	End()
	// Recover is meant to be deferred directly (defer ctx.Recover()). It
	// turns a panic into Exception+End and re-panics — the library never
	// swallows exceptions from instrumented code (spec.md §7) — or, absent a
	// panic, just calls End.
	Recover()
	// AddCleanup registers fn to run during End, in reverse-registration
	// order, with every error after the first suppressed and logged (spec.md
	// §4.6 "attached disposables").
	AddCleanup(fn func() error)
}

// nullContext is the shared, allocation-free singleton used whenever
// tracking was not active at entry time (spec.md §4.3, §4.6).
type nullContext struct{}

func (nullContext) SetParameter(string, string)   {}
func (nullContext) Log(string, map[string]string) {}
func (nullContext) Exception(error)               {}
func (nullContext) End()                          {}
func (nullContext) Recover() {
	if r := recover(); r != nil {
		panic(r)
	}
}
func (nullContext) AddCleanup(func() error) {}

// Null is the shared null Context.
var Null Context = nullContext{}

// liveContext is the tracked implementation, constructed only by the facade
// (internal/business/facade) once it has already rented and pushed record.
type liveContext struct {
	engine  *callstack.Engine
	record  *monitoring.MethodCallInfo
	flow    monitoring.FlowID
	admit   callstack.AdmissionFunc
	filters []monitoring.ComponentType
	logger  *slog.Logger
	metrics *metrics.Registry

	closed atomic.Bool

	cleanupsMu sync.Mutex
	cleanups   []func() error
}

// New returns a tracked Context over record, already pushed onto flow's
// stack, and immediately emits Start (spec.md §4.6 "Responsibilities on
// construction: start a wall-clock timer; if tracking is active for this
// version, emit Start" — tracking is active by construction here, since the
// facade only calls New after deciding to build a real context rather than
// returning callctx.Null).
func New(
	engine *callstack.Engine,
	record *monitoring.MethodCallInfo,
	flow monitoring.FlowID,
	admit callstack.AdmissionFunc,
	declaredFilters []monitoring.ComponentType,
	logger *slog.Logger,
	metricsReg *metrics.Registry,
) Context {
	if logger == nil {
		logger = slog.Default()
	}
	c := &liveContext{
		engine:  engine,
		record:  record,
		flow:    flow,
		admit:   admit,
		filters: declaredFilters,
		logger:  logger,
		metrics: metricsReg,
	}
	c.engine.Publish(monitoring.Event{Kind: monitoring.EventStart, Record: c.record}, c.filters, c.admit)
	return c
}

func (c *liveContext) SetParameter(name, value string) {
	c.record.Parameters.Set(name, value)
}

func (c *liveContext) Log(category string, data map[string]string) {
	c.engine.Publish(monitoring.Event{
		Kind:     monitoring.EventLogEntry,
		Record:   c.record,
		Category: category,
		Data:     data,
	}, c.filters, c.admit)
}

func (c *liveContext) Exception(err error) {
	if err == nil {
		return
	}
	c.engine.Publish(monitoring.Event{
		Kind:       monitoring.EventException,
		Record:     c.record,
		Message:    err.Error(),
		StackTrace: string(debug.Stack()),
	}, c.filters, c.admit)
}

func (c *liveContext) AddCleanup(fn func() error) {
	if fn == nil {
		return
	}
	c.cleanupsMu.Lock()
	c.cleanups = append(c.cleanups, fn)
	c.cleanupsMu.Unlock()
}

// End implements spec.md §4.6's ordinary exit path. It is idempotent so a
// Recover() deferred alongside an explicit End() call (or a double End() from
// careless instrumented code) never double-emits or double-releases the
// record.
func (c *liveContext) End() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.record.Elapsed = time.Since(c.record.StartTime)
	if c.metrics != nil {
		c.metrics.ObserveCallDuration(c.record.Elapsed)
	}

	emitEmpty := c.engine.Pop(c.record, c.flow)
	c.engine.Publish(monitoring.Event{Kind: monitoring.EventEnd, Record: c.record}, c.filters, c.admit)
	if emitEmpty {
		c.engine.Publish(monitoring.Event{Kind: monitoring.EventEmpty}, nil, nil)
	}

	c.drainCleanups()
	c.record.ReleaseInitial()
}

// drainCleanups runs attached disposables in reverse-registration order,
// surfacing the first error while still running the rest — suppressed and
// logged (spec.md §4.6). Reporter/output failures must never propagate to
// instrumented code (spec.md §7), so drainCleanups only logs; it never
// returns an error or panics.
func (c *liveContext) drainCleanups() {
	c.cleanupsMu.Lock()
	cleanups := c.cleanups
	c.cleanups = nil
	c.cleanupsMu.Unlock()

	var first error
	for i := len(cleanups) - 1; i >= 0; i-- {
		if err := runCleanup(cleanups[i]); err != nil {
			if first == nil {
				first = err
			} else {
				c.logger.Error("suppressed cleanup error", "error", err, "record_id", c.record.ID)
			}
		}
	}
	if first != nil {
		c.logger.Error("cleanup error during End", "error", first, "record_id", c.record.ID)
	}
}

// runCleanup calls fn, converting a panic into an error so one misbehaving
// reporter cleanup cannot prevent the rest of drainCleanups from running
// (spec.md §7 "reporter/output errors... never propagated to instrumented
// code").
func runCleanup(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cleanup panicked: %v", r)
		}
	}()
	return fn()
}

// Recover turns a panic propagating out of the instrumented scope into
// Exception+End, per spec.md §4.6/§7: exceptions from instrumented code are
// always propagated, never swallowed, so Recover always re-panics with the
// original value after emitting. Call as `defer ctx.Recover()` immediately
// after obtaining ctx.
func (c *liveContext) Recover() {
	if r := recover(); r != nil {
		c.Exception(fmt.Errorf("%v", r))
		c.End()
		panic(r)
	}
	c.End()
}
