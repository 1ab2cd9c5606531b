// Package callstack implements the Call Stack Engine (spec.md §4.4): per-flow
// call stacks, the single process-wide tree root, parent linkage across
// flows, the observer fan-out, and gap detection.
package callstack

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
	"weak"

	"golang.org/x/time/rate"

	"github.com/avkuznetsov/callwatch/internal/business/pool"
	"github.com/avkuznetsov/callwatch/internal/core/monitoring"
	"github.com/avkuznetsov/callwatch/internal/infrastructure/descriptor"
	"github.com/avkuznetsov/callwatch/internal/metrics"
)

// MaxDepth is the maximum per-flow call stack depth (spec.md §3 invariant
// (d)); a push that would bring a flow's depth to MaxDepth is a fatal, thrown
// programming error (spec.md §7), so the deepest allowed stack is MaxDepth-1.
const MaxDepth = 1000

// rootLevel2 is the level of a direct child of the process-wide root, used by gap
// detection to decide which pushes belong to a workflow root's own children.
const rootLevel2 = monitoring.RootLevel + 1

// Engine owns the per-flow call stacks and the single global tree root
// described in spec.md §3's "CallStack state". Construct with New.
type Engine struct {
	mu sync.Mutex

	threadStacks map[monitoring.FlowID][]*monitoring.MethodCallInfo
	threadRoots  map[monitoring.FlowID]*monitoring.MethodCallInfo
	globalStack  []*monitoring.MethodCallInfo
	depth        map[monitoring.FlowID]int

	rootParent *monitoring.MethodCallInfo
	rootFlow   monitoring.FlowID
	wasEmpty   bool // becomes false once something has been pushed at least once

	lastChildEnd map[string]time.Time // root record id -> last level-2 child pop time, for gap detection

	observers   map[int64]monitoring.Observer
	observersMu sync.RWMutex
	nextObsID   int64

	descriptors *descriptor.Cache
	pool        *pool.Pool
	metrics     *metrics.Registry
	logger      *slog.Logger
}

// New returns an Engine fronting descriptors for method resolution and p for
// record rental. metrics and logger may be nil.
func New(descriptors *descriptor.Cache, p *pool.Pool, m *metrics.Registry, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		threadStacks: make(map[monitoring.FlowID][]*monitoring.MethodCallInfo),
		threadRoots:  make(map[monitoring.FlowID]*monitoring.MethodCallInfo),
		depth:        make(map[monitoring.FlowID]int),
		lastChildEnd: make(map[string]time.Time),
		observers:    make(map[int64]monitoring.Observer),
		rootFlow:     monitoring.NoFlow,
		wasEmpty:     true,
		descriptors:  descriptors,
		pool:         p,
		metrics:      m,
		logger:       logger,
	}
}

// Create resolves the method descriptor, merges config parameters over
// attribute-declared ones (config wins on a key collision), rents a record
// from the pool, and stamps the static shape fields (spec.md §4.4 create()).
// When trackingEnabled is false the pool's null record is returned and no
// resolution is attempted, matching the rent() contract's "snapshot at call
// time" null path (spec.md §4.3).
func (e *Engine) Create(
	trackingEnabled bool,
	classType, methodName string,
	cfg monitoring.MethodConfiguration,
	attributeParams *monitoring.Params,
) (*monitoring.MethodCallInfo, error) {
	if !trackingEnabled {
		return monitoring.NullRecord(), nil
	}

	methodDescriptor := cfg.ExternalMethod
	genericArgs := cfg.GenericArgs
	parameterTypes := cfg.ParameterTypes
	isStatic := cfg.IsStatic
	isExtension := cfg.IsExtension
	extendedType := ""

	if !cfg.IsExternal {
		d, err := e.descriptors.Resolve(classType, methodName, cfg.GenericArgs)
		if err != nil {
			return nil, err
		}
		methodDescriptor = d.MethodDescriptor
		if len(parameterTypes) == 0 {
			parameterTypes = d.ParameterTypes
		}
		isStatic = isStatic || d.IsStatic
		isExtension = isExtension || d.IsExtension
		extendedType = cfg.ExternalType
		if extendedType == "" {
			extendedType = d.ExtendedType
		}
	} else {
		classType = cfg.ExternalType
	}

	merged := monitoring.NewParams()
	if cfg.Parameters != nil {
		cfg.Parameters.Each(merged.Set)
	}
	if attributeParams != nil {
		attributeParams.Each(merged.SetIfAbsent)
	}

	record := e.pool.Rent(true, classType, methodDescriptor, genericArgs, parameterTypes, merged, isExtension)
	record.IsStatic = isStatic
	record.ExtendedType = extendedType
	if cfg.IsExternal {
		record.MethodDescriptor = cfg.ExternalMethod
	}
	for _, rt := range cfg.ReporterTypes {
		record.AssociatedReporters = append(record.AssociatedReporters, string(rt))
	}
	return record, nil
}

// Push links record into the call tree and onto its flow's stack (spec.md
// §4.4 push()). It fails with monitoring.ErrDepthExceeded once flow's per-flow
// depth counter would reach MaxDepth (spec.md §8: depth 999 succeeds, depth
// 1000 is the documented failure threshold).
func (e *Engine) Push(record *monitoring.MethodCallInfo, flow monitoring.FlowID) error {
	e.mu.Lock()

	d := e.depth[flow] + 1
	if d >= MaxDepth {
		e.mu.Unlock()
		return monitoring.ErrDepthExceeded
	}
	e.depth[flow] = d

	var gapEvent *monitoring.Event

	if e.rootParent == nil {
		e.rootParent = record
		record.Parent = weak.Pointer[monitoring.MethodCallInfo]{}
		record.Level = monitoring.RootLevel
		record.ParentFlowID = monitoring.NoFlow
		e.rootFlow = flow
	} else {
		stack := e.threadStacks[flow]
		var parent *monitoring.MethodCallInfo
		if len(stack) == 0 || flow != e.rootFlow {
			parent = e.rootParent
		} else {
			parent = stack[len(stack)-1]
		}
		record.Parent = weak.Make(parent)
		record.Level = parent.Level + 1
		record.ParentFlowID = parent.FlowID

		if record.Level == rootLevel2 && parent == e.rootParent {
			gapEvent = e.detectGapLocked(parent.ID, record)
		}
	}
	record.FlowID = flow

	stack := e.threadStacks[flow]
	if len(stack) == 0 {
		e.threadRoots[flow] = record
	}
	e.threadStacks[flow] = append(stack, record)
	e.globalStack = append(e.globalStack, record)
	e.wasEmpty = false

	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.StackDepth.Observe(float64(d))
	}
	if gapEvent != nil {
		e.fanout(*gapEvent)
	}
	return nil
}

// detectGapLocked returns a synthetic Gap event (spec.md GLOSSARY "Gap") when
// a new direct child of the workflow root is pushed after a prior direct
// child already popped, spanning the idle window between them. Called with mu
// held; the caller fans it out after releasing mu.
func (e *Engine) detectGapLocked(rootID string, incoming *monitoring.MethodCallInfo) *monitoring.Event {
	last, ok := e.lastChildEnd[rootID]
	if !ok {
		return nil
	}
	gapParams := monitoring.NewParams()
	gapParams.Set("WorkflowItemType", "Gap")
	return &monitoring.Event{
		Kind:      monitoring.EventGap,
		GapStart:  last,
		GapEnd:    incoming.StartTime,
		GapParams: gapParams,
	}
}

// Pop unlinks record from flow's stack (spec.md §4.4 pop()). A pop whose
// record does not match the top of flow's stack is logged and the engine
// self-heals by discarding that flow's stale stack entirely (spec.md §7, §9
// open question 3), rather than throwing: depth-exceeded is the only fatal
// invariant violation this package raises. Pop returns true exactly when this
// call drained the last remaining flow stack, which is the caller's signal to
// publish the Empty sentinel (spec.md §4.4: "exactly once per drain").
func (e *Engine) Pop(record *monitoring.MethodCallInfo, flow monitoring.FlowID) (emitEmpty bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if d := e.depth[flow] - 1; d > 0 {
		e.depth[flow] = d
	} else {
		delete(e.depth, flow)
	}

	stack := e.threadStacks[flow]
	switch {
	case len(stack) == 0:
		e.logger.Warn("pop with no stack for flow", "flow", flow, "record_id", record.ID)
	case stack[len(stack)-1] != record:
		e.logger.Warn("pop mismatch, discarding stale flow stack",
			"flow", flow, "record_id", record.ID, "top_id", stack[len(stack)-1].ID)
		delete(e.threadStacks, flow)
		delete(e.threadRoots, flow)
	default:
		stack = stack[:len(stack)-1]
		if len(stack) == 0 {
			delete(e.threadStacks, flow)
			delete(e.threadRoots, flow)
		} else {
			e.threadStacks[flow] = stack
		}
	}

	if n := len(e.globalStack); n > 0 && e.globalStack[n-1] == record {
		e.globalStack = e.globalStack[:n-1]
	}

	if record.Level == rootLevel2 && e.rootParent != nil {
		e.lastChildEnd[e.rootParent.ID] = record.StartTime.Add(record.Elapsed)
	}

	if e.rootParent == record {
		e.rootParent = nil
		delete(e.lastChildEnd, record.ID)
	}

	drained := len(e.threadStacks) == 0
	emitEmpty = drained && !e.wasEmpty
	e.wasEmpty = drained
	return emitEmpty
}

// Subscribe registers obs for every event this engine publishes and returns a
// releaser that removes it (spec.md §4.4 "subscription returns a scoped
// releaser that removes the observer from a concurrent set").
func (e *Engine) Subscribe(obs monitoring.Observer) (release func()) {
	e.observersMu.Lock()
	id := e.nextObsID
	e.nextObsID++
	e.observers[id] = obs
	e.observersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.observersMu.Lock()
			delete(e.observers, id)
			e.observersMu.Unlock()
		})
	}
}

// Channel returns a bounded channel of events backed by a Subscribe
// registration, for handing to a Reporter's StartReporting (spec.md §6). A
// full buffer drops the event rather than blocking the engine (spec.md §9
// "a slow reporter must apply backpressure to itself only and not block the
// engine... spec allows dropping events to a slow reporter and reporting the
// drop"); drop logging itself is rate-limited so a continuously-stuck
// reporter cannot flood the log.
func (e *Engine) Channel(reporterLabel string, bufferSize int) (<-chan monitoring.Event, func()) {
	ch := make(chan monitoring.Event, bufferSize)
	dropLogLimiter := rate.NewLimiter(rate.Every(time.Second), 1)

	release := e.Subscribe(monitoring.ObserverFunc(func(ev monitoring.Event) {
		select {
		case ch <- ev:
		default:
			if e.metrics != nil {
				e.metrics.EventsDroppedTotal.WithLabelValues(reporterLabel).Inc()
			}
			if dropLogLimiter.Allow() {
				e.logger.Warn("dropping event for slow reporter", "reporter", reporterLabel, "kind", ev.Kind)
			}
		}
	}))

	return ch, func() {
		release()
		close(ch)
	}
}

// Publish applies the admission rule (spec.md §4.4 log_status, GLOSSARY
// "Admission rule") to ev and, if admitted, fans it out to every subscribed
// observer. Events with no Record (Gap, Empty) always admit: the admission
// rule is defined over a call's declared reporters/filters, which neither
// carries. The tracking gate itself (global_enabled ∧ version match) is the
// caller's responsibility, frozen once at MethodCallContext construction per
// spec.md §9's open question resolution ("capture at Start, hold to End") —
// Publish is never asked to re-derive it.
func (e *Engine) Publish(ev monitoring.Event, declaredFilters []monitoring.ComponentType, admit func(monitoring.Event, []monitoring.ComponentType) bool) {
	if ev.Record != nil && admit != nil && !admit(ev, declaredFilters) {
		if e.metrics != nil {
			e.metrics.AdmissionDecisions.WithLabelValues("dropped").Inc()
		}
		return
	}
	if e.metrics != nil {
		result := "admitted"
		if ev.Record == nil {
			result = "untracked"
		}
		e.metrics.AdmissionDecisions.WithLabelValues(result).Inc()
		e.metrics.EventsEmittedTotal.WithLabelValues(ev.Kind.String()).Inc()
	}
	e.fanout(ev)
}

func (e *Engine) fanout(ev monitoring.Event) {
	e.observersMu.RLock()
	obs := make([]monitoring.Observer, 0, len(e.observers))
	for _, o := range e.observers {
		obs = append(obs, o)
	}
	e.observersMu.RUnlock()

	for _, o := range obs {
		e.deliver(o, ev)
	}
}

// deliver calls obs.OnNext, recovering a panic so one misbehaving observer
// cannot stop delivery to the rest of the fan-out (spec.md §4.4 "exceptions
// in one observer must not prevent delivery to others").
func (e *Engine) deliver(obs monitoring.Observer, ev monitoring.Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("observer panicked", "panic", fmt.Sprint(r), "kind", ev.Kind)
		}
	}()
	obs.OnNext(ev)
}

// RootFlow returns the flow owning the current process-wide root record, or
// monitoring.NoFlow if the tree is empty. Exposed for tests asserting S2.
func (e *Engine) RootFlow() monitoring.FlowID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rootFlow
}

// Root returns the current process-wide root record, or nil if the call tree
// is empty, for Reporter.Initialize's root_record argument (spec.md §4.7).
func (e *Engine) Root() *monitoring.MethodCallInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rootParent
}
