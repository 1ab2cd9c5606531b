// Package controller implements the Monitoring Controller (spec.md §4.2): the
// single authoritative source of the global enable flag, per-component
// declared/effective state, the reporter<->filter relationship graph, and the
// monotonic MonitoringVersion every other subsystem reads to decide whether a
// tracking decision is still current.
package controller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"weak"

	"github.com/avkuznetsov/callwatch/internal/business/registry"
	"github.com/avkuznetsov/callwatch/internal/core/monitoring"
	"github.com/avkuznetsov/callwatch/internal/infrastructure/version"
	"github.com/avkuznetsov/callwatch/internal/metrics"
)

// StateChangedFunc is a Controller state-change notification callback
// (spec.md §4.2 add_state_changed_callback). It receives a snapshot of the
// post-mutation state, never a live handle back into the Controller: per
// spec.md §9's design note, Go's sync.RWMutex has no recursive read-after-
// write upgrade, so callbacks fire strictly after the writer lock has been
// released rather than while still holding it. Callbacks must not call back
// into the Controller; doing so is safe from a deadlock standpoint now (the
// lock is free) but is still a documented contract violation because it can
// observe a state newer than the snapshot it was handed.
type StateChangedFunc func(StateSnapshot)

// StateSnapshot is the immutable view of Controller state handed to
// StateChangedFunc callbacks and returned by Snapshot().
type StateSnapshot struct {
	Enabled bool
	Version monitoring.MonitoringVersion
}

// Controller is the Monitoring Controller. Construct with New; the zero
// value is not usable.
type Controller struct {
	mu sync.RWMutex

	enabled atomic.Bool // lock-free is_enabled() read, spec.md §4.2

	versionMgr *version.Manager
	current    monitoring.MonitoringVersion

	registry *registry.Registry

	declared  map[monitoring.ComponentKind]map[monitoring.ComponentType]bool
	effective map[monitoring.ComponentKind]map[monitoring.ComponentType]bool

	callbacks []StateChangedFunc

	scopesMu sync.Mutex
	scopes   []weak.Pointer[OperationScope]

	metrics *metrics.Registry
	logger  *slog.Logger
}

// Option configures a Controller at construction time.
type Option func(*Controller)

// WithMetrics attaches a metrics.Registry so every version bump is counted.
func WithMetrics(m *metrics.Registry) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithLogger attaches a structured logger, defaulting to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// New returns a disabled Controller with a fresh version manager.
func New(opts ...Option) *Controller {
	c := &Controller{
		versionMgr: version.New(),
		registry:   registry.New(),
		declared: map[monitoring.ComponentKind]map[monitoring.ComponentType]bool{
			monitoring.KindReporter: {},
			monitoring.KindFilter:   {},
			monitoring.KindOutput:   {},
		},
		effective: map[monitoring.ComponentKind]map[monitoring.ComponentType]bool{
			monitoring.KindReporter: {},
			monitoring.KindFilter:   {},
			monitoring.KindOutput:   {},
		},
		logger: slog.Default(),
	}
	c.current = c.versionMgr.Next()
	for _, o := range opts {
		o(c)
	}
	return c
}

// Registry exposes the underlying Component Registry for registration calls
// (AddReporterType etc. in the facade/builder layer).
func (c *Controller) Registry() *registry.Registry { return c.registry }

// IsEnabled is a lock-free read of the global enable flag (spec.md §4.2).
func (c *Controller) IsEnabled() bool {
	return c.enabled.Load()
}

// CurrentVersion returns the Controller's current version under the reader
// lock (spec.md §4.2).
func (c *Controller) CurrentVersion() monitoring.MonitoringVersion {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Snapshot returns the current (enabled, version) pair atomically.
func (c *Controller) Snapshot() StateSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return StateSnapshot{Enabled: c.enabled.Load(), Version: c.current}
}

// Enable turns global tracking on: restores every declared component state
// into its effective counterpart, bumps the version, and notifies callbacks
// (spec.md §4.2).
func (c *Controller) Enable() {
	c.mu.Lock()
	c.enabled.Store(true)
	c.current = c.versionMgr.Next()
	c.recomputeEffectiveLocked()
	snap := StateSnapshot{Enabled: true, Version: c.current}
	c.mu.Unlock()

	c.bumpMetric()
	c.pruneScopesLocked()
	c.notify(snap)
}

// Disable turns global tracking off: zeroes every effective component state
// (declared state is preserved so a later Enable restores it byte-for-byte,
// spec.md §8 R1) and bumps the version.
func (c *Controller) Disable() {
	c.mu.Lock()
	c.enabled.Store(false)
	c.current = c.versionMgr.Next()
	c.zeroEffectiveLocked()
	snap := StateSnapshot{Enabled: false, Version: c.current}
	c.mu.Unlock()

	c.bumpMetric()
	c.pruneScopesLocked()
	c.notify(snap)
}

func (c *Controller) recomputeEffectiveLocked() {
	for kind, byType := range c.declared {
		for t, declared := range byType {
			c.effective[kind][t] = declared && c.enabled.Load()
		}
	}
}

func (c *Controller) zeroEffectiveLocked() {
	for kind := range c.effective {
		for t := range c.effective[kind] {
			c.effective[kind][t] = false
		}
	}
}

// SetComponentState sets the declared state of a component and recomputes
// its effective state. spec.md §8's open question ("does same-value
// set_component_state bump the version?") is resolved here as: a no-op set
// (declared state unchanged) performs no version bump. See DESIGN.md.
func (c *Controller) SetComponentState(kind monitoring.ComponentKind, t monitoring.ComponentType, enabled bool) {
	c.mu.Lock()
	if c.declared[kind] == nil {
		c.declared[kind] = make(map[monitoring.ComponentType]bool)
	}
	if c.effective[kind] == nil {
		c.effective[kind] = make(map[monitoring.ComponentType]bool)
	}
	if current, ok := c.declared[kind][t]; ok && current == enabled {
		c.mu.Unlock()
		return
	}
	c.declared[kind][t] = enabled
	c.effective[kind][t] = enabled && c.enabled.Load()
	c.current = c.versionMgr.Next()
	snap := StateSnapshot{Enabled: c.enabled.Load(), Version: c.current}
	c.mu.Unlock()

	c.bumpMetric()
	c.notify(snap)
}

// GetComponentState returns effective ∧ global_enabled for (kind, t)
// (spec.md §4.2). The conjunction with the live global flag is deliberately
// re-evaluated here rather than trusted from the stored effective value
// alone, so a caller reading under the lock never observes a stale true
// between Disable()'s two field writes.
func (c *Controller) GetComponentState(kind monitoring.ComponentKind, t monitoring.ComponentType) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.effective[kind][t] && c.enabled.Load()
}

// SetFilterStateForReporterType declares whether filterType applies to every
// reporter of reporterType (spec.md §4.2).
func (c *Controller) SetFilterStateForReporterType(reporterType, filterType monitoring.ComponentType, enabled bool) {
	c.mu.Lock()
	c.registry.SetTypeRelationship(reporterType, filterType, enabled)
	c.current = c.versionMgr.Next()
	snap := StateSnapshot{Enabled: c.enabled.Load(), Version: c.current}
	c.mu.Unlock()

	c.bumpMetric()
	c.notify(snap)
}

// SetFilterStateForReporterInstance declares whether filterType applies to
// one specific reporter instance (spec.md §4.2 "instance-level variant").
func (c *Controller) SetFilterStateForReporterInstance(reporterID string, filterType monitoring.ComponentType, enabled bool) {
	c.mu.Lock()
	c.registry.SetInstanceRelationship(reporterID, filterType, enabled)
	c.current = c.versionMgr.Next()
	snap := StateSnapshot{Enabled: c.enabled.Load(), Version: c.current}
	c.mu.Unlock()

	c.bumpMetric()
	c.notify(snap)
}

// AddStateChangedCallback appends cb to the notification list. Callbacks run
// in registration order, after the writer lock that produced the triggering
// mutation has already been released (see StateChangedFunc doc).
func (c *Controller) AddStateChangedCallback(cb StateChangedFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callbacks = append(c.callbacks, cb)
}

func (c *Controller) notify(snap StateSnapshot) {
	c.mu.RLock()
	cbs := make([]StateChangedFunc, len(c.callbacks))
	copy(cbs, c.callbacks)
	c.mu.RUnlock()

	for _, cb := range cbs {
		cb(snap)
	}
}

func (c *Controller) bumpMetric() {
	if c.metrics != nil {
		c.metrics.VersionBumpsTotal.Inc()
	}
}

// BeginOperation starts a new operation scope (spec.md §4.2 begin_operation):
// it captures the current version, nests under any scope already present on
// ctx, and returns both the scope and a context carrying it for propagation
// to child calls — including across asynchronous continuations, since a
// context.Context (unlike a goroutine-local) travels with the logical flow
// (spec.md §9).
func (c *Controller) BeginOperation(ctx context.Context) (context.Context, *OperationScope) {
	parent, hasParent := scopeFromContext(ctx)
	scope := &OperationScope{
		controller: c,
		version:    c.CurrentVersion(),
		parent:     parent,
		isRoot:     !hasParent,
	}
	c.registerScope(scope)
	return withScope(ctx, scope), scope
}

func (c *Controller) registerScope(s *OperationScope) {
	c.scopesMu.Lock()
	defer c.scopesMu.Unlock()
	c.scopes = append(c.scopes, weak.Make(s))
}

// pruneScopesLocked drops weak references to operation scopes that have
// already been garbage collected (spec.md §4.2: "propagate the new version
// to all registered operation contexts via weak references (dead ones are
// pruned)"). An OperationScope's validity is computed on demand against the
// live CurrentVersion() rather than pushed into the scope, so pruning here is
// pure hygiene, not a correctness requirement.
func (c *Controller) pruneScopesLocked() {
	c.scopesMu.Lock()
	defer c.scopesMu.Unlock()
	live := c.scopes[:0]
	for _, w := range c.scopes {
		if w.Value() != nil {
			live = append(live, w)
		}
	}
	c.scopes = live
}

// commitRootOperation bumps the version as the commit signal fired when a
// root operation scope's Close() runs (spec.md §4.2: "dropping the root
// bumps the version as a commit signal").
func (c *Controller) commitRootOperation() {
	c.mu.Lock()
	c.current = c.versionMgr.Next()
	snap := StateSnapshot{Enabled: c.enabled.Load(), Version: c.current}
	c.mu.Unlock()

	c.bumpMetric()
	c.notify(snap)
}
