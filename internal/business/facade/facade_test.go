package facade

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avkuznetsov/callwatch/internal/core/monitoring"
	"github.com/avkuznetsov/callwatch/internal/infrastructure/descriptor"
)

type staticResolver struct{}

func (staticResolver) Resolve(classType, methodName string, genericArgs []string) (descriptor.Descriptor, error) {
	if methodName == "Missing" {
		return descriptor.Descriptor{}, errors.New("no such method")
	}
	return descriptor.Descriptor{MethodDescriptor: classType + "." + methodName}, nil
}

type recordingReporter struct {
	initialized bool
	started     bool
	stopped     bool
}

func (r *recordingReporter) Initialize(monitoring.MethodConfiguration, *monitoring.MethodCallInfo) error {
	r.initialized = true
	return nil
}

func (r *recordingReporter) StartReporting(events <-chan monitoring.Event) (func(), error) {
	r.started = true
	go func() {
		for range events {
		}
	}()
	return func() { r.stopped = true }, nil
}

func (r *recordingReporter) AddOutput(monitoring.Output) {}
func (r *recordingReporter) AddFilter(monitoring.Filter) {}

func newTestMonitor(t *testing.T) *Monitor {
	t.Helper()
	m, err := New(staticResolver{})
	require.NoError(t, err)
	return m
}

// Scenario 1 (spec.md §8): enabled single method, normal return, elapsed >= 0.
func TestEnabledSingleMethodEmitsStartEndEmpty(t *testing.T) {
	m := newTestMonitor(t)
	m.Enable()

	var kinds []monitoring.EventKind
	release := m.engine.Subscribe(monitoring.ObserverFunc(func(ev monitoring.Event) {
		kinds = append(kinds, ev.Kind)
	}))
	defer release()

	cm := m.ForClass("Orders")
	_, ctx := cm.Start(context.Background(), "Place", NewCallBuilder().Build())
	ctx.End()

	require.Equal(t, []monitoring.EventKind{
		monitoring.EventStart, monitoring.EventEnd, monitoring.EventEmpty,
	}, kinds)
}

// Scenario 2 (spec.md §8): disabled at entry produces the null context with
// zero observer emissions and no pool rental.
func TestDisabledAtEntryReturnsNullContext(t *testing.T) {
	m := newTestMonitor(t)

	var count int
	release := m.engine.Subscribe(monitoring.ObserverFunc(func(monitoring.Event) { count++ }))
	defer release()

	before := m.pool.Live()
	cm := m.ForClass("Orders")
	_, ctx := cm.Start(context.Background(), "Place", NewCallBuilder().Build())
	ctx.End() // must be a safe no-op on the null context

	require.Zero(t, count)
	require.Equal(t, before, m.pool.Live())
}

// Scenario 3 (spec.md §8): disabling mid-call still emits End because the
// call's captured tracking decision is frozen at Start.
func TestConfigurationChangedMidCallStillEmitsEnd(t *testing.T) {
	m := newTestMonitor(t)
	m.Enable()

	var kinds []monitoring.EventKind
	release := m.engine.Subscribe(monitoring.ObserverFunc(func(ev monitoring.Event) {
		kinds = append(kinds, ev.Kind)
	}))
	defer release()

	cm := m.ForClass("Orders")
	_, ctx := cm.Start(context.Background(), "Place", NewCallBuilder().Build())
	m.Disable()
	ctx.End()

	require.Contains(t, kinds, monitoring.EventEnd)
	require.Contains(t, kinds, monitoring.EventEmpty)

	_, next := cm.Start(context.Background(), "Place", NewCallBuilder().Build())
	require.NotPanics(t, next.End, "a subsequent call after disable must degrade cleanly to the null context")
}

// Scenario 5 (spec.md §8): exception propagates; [Start, Exception, End] in
// order and the record is returned to the pool.
func TestExceptionPropagatesAndRecordReturnsToPool(t *testing.T) {
	m := newTestMonitor(t)
	m.Enable()

	var kinds []monitoring.EventKind
	release := m.engine.Subscribe(monitoring.ObserverFunc(func(ev monitoring.Event) {
		kinds = append(kinds, ev.Kind)
	}))
	defer release()

	liveBefore := m.pool.Live()
	require.Panics(t, func() {
		cm := m.ForClass("Orders")
		_, ctx := cm.Start(context.Background(), "Place", NewCallBuilder().Build())
		defer ctx.Recover()
		panic("boom")
	})

	require.Equal(t, []monitoring.EventKind{
		monitoring.EventStart, monitoring.EventException, monitoring.EventEnd, monitoring.EventEmpty,
	}, kinds)
	require.Equal(t, liveBefore, m.pool.Live())
}

// Scenario 6 (spec.md §8): filter admission via a declared filter type.
func TestFilterAdmissionDropsCallsWithoutTheDeclaredParameter(t *testing.T) {
	m := newTestMonitor(t)
	m.Enable()
	m.Configure(func(b *ConfigurationBuilder) {
		b.AddFilter("workflow", monitoring.FilterFunc(func(r *monitoring.MethodCallInfo) bool {
			v, ok := r.Parameters.Get("WorkflowItemName")
			return ok && v != ""
		}))
	})
	m.Controller().SetComponentState(monitoring.KindFilter, "workflow", true)

	var starts int
	release := m.engine.Subscribe(monitoring.ObserverFunc(func(ev monitoring.Event) {
		if ev.Kind == monitoring.EventStart {
			starts++
		}
	}))
	defer release()

	cm := m.ForClass("Workflows")
	_, admitted := cm.Start(context.Background(), "A",
		NewCallBuilder().WithFilterTypes("workflow").WithParameter("WorkflowItemName", "Checkout").Build())
	admitted.End()

	_, dropped := cm.Start(context.Background(), "B", NewCallBuilder().WithFilterTypes("workflow").Build())
	dropped.End()

	require.Equal(t, 1, starts)
}

func TestDescriptorMissDegradesToNullContext(t *testing.T) {
	m := newTestMonitor(t)
	m.Enable()

	before := m.pool.Live()
	cm := m.ForClass("Orders")
	_, ctx := cm.Start(context.Background(), "Missing", NewCallBuilder().Build())
	ctx.End() // must be a safe no-op

	require.Equal(t, before, m.pool.Live(), "a descriptor miss must not rent a record")
}

func TestConfiguredReporterIsInitializedAndStarted(t *testing.T) {
	m := newTestMonitor(t)
	m.Enable()
	reporter := &recordingReporter{}
	m.Configure(func(b *ConfigurationBuilder) {
		b.AddReporterType("csv", reporter)
	})
	m.Controller().SetComponentState(monitoring.KindReporter, "csv", true)

	cm := m.ForClass("Orders")
	_, ctx := cm.Start(context.Background(), "Place", NewCallBuilder().WithReporterTypes("csv").Build())
	ctx.End()

	require.True(t, reporter.initialized)
	require.True(t, reporter.started)
	require.True(t, reporter.stopped)
}
