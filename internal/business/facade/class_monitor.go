package facade

import (
	"context"
	"fmt"
	"time"

	"github.com/avkuznetsov/callwatch/internal/business/callstack"
	callctx "github.com/avkuznetsov/callwatch/internal/business/context"
	"github.com/avkuznetsov/callwatch/internal/core/monitoring"
)

// ClassMonitor binds a class identity to the shared Monitor's Call Stack
// Engine (spec.md §4.7 "for_class(T) and for_current_class() return a
// ClassMonitor bound to a class identity and a shared Call Stack").
type ClassMonitor struct {
	monitor   *Monitor
	classType string
}

// Start builds a MethodCallContext for a synchronous call (spec.md §4.7
// "start(config)"). ctx carries the logical flow (spec.md §9); if ctx carries
// none yet, a fresh FlowID is minted and must be propagated by the caller for
// any further nested calls on the returned context.
func (c *ClassMonitor) Start(ctx context.Context, methodName string, cfg monitoring.MethodConfiguration) (context.Context, callctx.Context) {
	return c.start(ctx, methodName, cfg)
}

// AsyncStart is the asynchronous-entry variant (spec.md §4.7 "async_start").
// In callwatch both variants share one implementation: a context.Context
// already carries the logical flow across goroutine-resumed continuations
// (spec.md §9's "explicit continuation-carried context" design note), so
// there is no separate suspension-aware code path to maintain. The returned
// Context's End/Recover are equally safe to call from whichever goroutine
// eventually completes the call.
func (c *ClassMonitor) AsyncStart(ctx context.Context, methodName string, cfg monitoring.MethodConfiguration) (context.Context, callctx.Context) {
	return c.start(ctx, methodName, cfg)
}

func (c *ClassMonitor) start(ctx context.Context, methodName string, cfg monitoring.MethodConfiguration) (context.Context, callctx.Context) {
	ctx, flow := monitoring.FlowFromContext(ctx)

	trackingEnabled := c.monitor.controller.IsEnabled()
	record, err := c.monitor.engine.Create(trackingEnabled, c.classType, methodName, cfg, nil)
	if err != nil {
		// Instrumentation-degradation error (spec.md §7): descriptor
		// resolution failed, degrade silently to the null context.
		c.monitor.logger.Debug("method descriptor not found, degrading to null context",
			"class_type", c.classType, "method", methodName, "error", err)
		return ctx, callctx.Null
	}
	if record.IsNull {
		return ctx, callctx.Null
	}
	record.StartTime = time.Now()

	if pushErr := c.monitor.engine.Push(record, flow); pushErr != nil {
		// Depth-exceeded is the one fatal, thrown invariant violation
		// (spec.md §7): release the rental and panic rather than return a
		// context that was never linked into the call tree.
		record.ReleaseInitial()
		panic(fmt.Errorf("%s.%s: %w", c.classType, methodName, pushErr))
	}

	captured := c.monitor.controller.CurrentVersion()
	if !c.monitor.policy.ShouldTrack(captured, nil, nil, nil) {
		// Disabled between the trackingEnabled snapshot and here: extremely
		// narrow race, handled the same way as "disabled at entry".
		c.monitor.engine.Pop(record, flow)
		record.ReleaseInitial()
		return ctx, callctx.Null
	}

	cleanup := c.startReporters(cfg, record)
	admit := callstack.AdmissionRule(c.monitor.controller, c.monitor.filters)
	liveCtx := callctx.New(c.monitor.engine, record, flow, admit, cfg.FilterTypes, c.monitor.logger, c.monitor.metrics)
	if cleanup != nil {
		liveCtx.AddCleanup(cleanup)
	}
	return ctx, liveCtx
}

// startReporters initializes and starts every reporter type declared on cfg
// (spec.md §4.7: "initializes each declared reporter against the current
// configuration and record, adds them to the record's associated list,
// starts each reporter that is enabled at the captured version, collecting
// their end-of-scope cleanups"). Reporter failures are logged and swallowed
// (spec.md §7); they must never break instrumented code.
func (c *ClassMonitor) startReporters(cfg monitoring.MethodConfiguration, record *monitoring.MethodCallInfo) func() error {
	var cleanups []func() error
	root := c.monitor.engine.Root()

	for _, rt := range cfg.ReporterTypes {
		if !c.monitor.controller.GetComponentState(monitoring.KindReporter, rt) {
			continue
		}
		c.monitor.reportersMu.RLock()
		reporter := c.monitor.reporters[rt]
		c.monitor.reportersMu.RUnlock()
		if reporter == nil {
			continue
		}

		if err := reporter.Initialize(cfg, root); err != nil {
			c.monitor.logger.Error("reporter initialize failed, skipping", "reporter", rt, "error", err)
			continue
		}

		events, release := c.monitor.engine.Channel(string(rt), c.monitor.channelBuffer)
		reporterCleanup, err := reporter.StartReporting(events)
		if err != nil {
			c.monitor.logger.Error("reporter start_reporting failed", "reporter", rt, "error", err)
			release()
			continue
		}
		cleanups = append(cleanups, func() error {
			if reporterCleanup != nil {
				reporterCleanup()
			}
			release()
			return nil
		})
	}

	if len(cleanups) == 0 {
		return nil
	}
	return func() error {
		for i := len(cleanups) - 1; i >= 0; i-- {
			_ = cleanups[i]()
		}
		return nil
	}
}
