package callctx

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avkuznetsov/callwatch/internal/business/callstack"
	"github.com/avkuznetsov/callwatch/internal/business/pool"
	"github.com/avkuznetsov/callwatch/internal/core/monitoring"
	"github.com/avkuznetsov/callwatch/internal/infrastructure/descriptor"
)

type staticResolver struct{}

func (staticResolver) Resolve(classType, methodName string, genericArgs []string) (descriptor.Descriptor, error) {
	return descriptor.Descriptor{MethodDescriptor: classType + "." + methodName}, nil
}

func newTestRig(t *testing.T) (*callstack.Engine, *monitoring.MethodCallInfo, monitoring.FlowID) {
	t.Helper()
	cache, err := descriptor.New(staticResolver{}, 16)
	require.NoError(t, err)
	p := pool.New()
	engine := callstack.New(cache, p, nil, nil)

	record, err := engine.Create(true, "Svc", "Do", monitoring.NewMethodConfiguration(), nil)
	require.NoError(t, err)
	flow := monitoring.FlowID(1)
	require.NoError(t, engine.Push(record, flow))
	return engine, record, flow
}

func admitAll(monitoring.Event, []monitoring.ComponentType) bool { return true }

// Scenario 1 (spec.md §8): enabled single method, normal return.
func TestLiveContextEmitsStartEndEmpty(t *testing.T) {
	engine, record, flow := newTestRig(t)
	var kinds []monitoring.EventKind
	release := engine.Subscribe(monitoring.ObserverFunc(func(ev monitoring.Event) {
		kinds = append(kinds, ev.Kind)
	}))
	defer release()

	ctx := New(engine, record, flow, admitAll, nil, nil, nil)
	ctx.End()

	require.Equal(t, []monitoring.EventKind{
		monitoring.EventStart, monitoring.EventEnd, monitoring.EventEmpty,
	}, kinds)
}

// Scenario 5 (spec.md §8): exception propagates via panic/recover.
func TestRecoverEmitsExceptionThenEndAndRepanic(t *testing.T) {
	engine, record, flow := newTestRig(t)
	var kinds []monitoring.EventKind
	release := engine.Subscribe(monitoring.ObserverFunc(func(ev monitoring.Event) {
		kinds = append(kinds, ev.Kind)
	}))
	defer release()

	require.Panics(t, func() {
		ctx := New(engine, record, flow, admitAll, nil, nil, nil)
		defer ctx.Recover()
		panic("boom")
	})

	require.Equal(t, []monitoring.EventKind{
		monitoring.EventStart, monitoring.EventException, monitoring.EventEnd, monitoring.EventEmpty,
	}, kinds)
}

func TestEndIsIdempotent(t *testing.T) {
	engine, record, flow := newTestRig(t)
	var count int
	release := engine.Subscribe(monitoring.ObserverFunc(func(ev monitoring.Event) {
		if ev.Kind == monitoring.EventEnd {
			count++
		}
	}))
	defer release()

	ctx := New(engine, record, flow, admitAll, nil, nil, nil)
	ctx.End()
	ctx.End()
	require.Equal(t, 1, count)
}

func TestCleanupsRunInReverseOrderAndSuppressAllButFirstError(t *testing.T) {
	engine, record, flow := newTestRig(t)
	ctx := New(engine, record, flow, admitAll, nil, nil, nil)

	var order []int
	ctx.AddCleanup(func() error { order = append(order, 1); return errors.New("first") })
	ctx.AddCleanup(func() error { order = append(order, 2); return errors.New("second") })
	ctx.AddCleanup(func() error { order = append(order, 3); return nil })

	ctx.End()
	require.Equal(t, []int{3, 2, 1}, order)
}

func TestSetParameterNoOpOnNullContext(t *testing.T) {
	Null.SetParameter("x", "y") // must not panic
	Null.Log("cat", nil)
	Null.Exception(errors.New("ignored"))
	Null.End()
	Null.Recover()
}
