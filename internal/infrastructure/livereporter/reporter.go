package livereporter

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/avkuznetsov/callwatch/internal/core/monitoring"
)

// Reporter streams the Call Stack Engine's lifecycle events to connected
// websocket dashboards and fans them out to whatever Outputs the
// ConfigurationBuilder attached (spec.md §6 "Reporter contract"). It also
// accounts for idle time between a workflow's children by forwarding Gap
// events to its outputs, supplementing spec.md per SPEC_FULL.md §3.
type Reporter struct {
	hub    *hub
	logger *slog.Logger

	mu      sync.Mutex
	filters []monitoring.Filter
	outputs []monitoring.Output
	cancel  context.CancelFunc
}

// New returns a Reporter ready to register via
// facade.ConfigurationBuilder.AddReporterType.
func New(logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{hub: newHub(logger), logger: logger}
}

// Initialize satisfies monitoring.Reporter. The websocket reporter needs no
// per-call setup against root; it only needs the hub running, which
// StartReporting arranges.
func (r *Reporter) Initialize(monitoring.MethodConfiguration, *monitoring.MethodCallInfo) error {
	return nil
}

// StartReporting begins consuming events, running the hub's broadcast loop
// until the returned cleanup is called.
func (r *Reporter) StartReporting(events <-chan monitoring.Event) (func(), error) {
	ctx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	go r.hub.run(ctx)
	go r.consume(ctx, events)

	return func() {
		cancel()
	}, nil
}

func (r *Reporter) consume(ctx context.Context, events <-chan monitoring.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			r.handle(ev)
		}
	}
}

func (r *Reporter) handle(ev monitoring.Event) {
	r.mu.Lock()
	filters := append([]monitoring.Filter(nil), r.filters...)
	outputs := append([]monitoring.Output(nil), r.outputs...)
	r.mu.Unlock()

	if ev.Kind != monitoring.EventGap && ev.Kind != monitoring.EventEmpty {
		for _, f := range filters {
			if !f.ShouldInclude(ev.Record) {
				return
			}
		}
	}

	r.hub.publish(toWireEvent(ev))

	message := formatMessage(ev)
	for _, o := range outputs {
		if ev.Kind == monitoring.EventException {
			o.WriteError(fmt.Errorf("%s", ev.Message))
			continue
		}
		o.WriteItem(ev, message)
	}
}

// AddOutput registers an Output declared against this reporter by the
// Configuration Builder (spec.md §6 "add_output<T>()").
func (r *Reporter) AddOutput(o monitoring.Output) {
	r.mu.Lock()
	r.outputs = append(r.outputs, o)
	r.mu.Unlock()
}

// AddFilter registers a Filter declared against this reporter.
func (r *Reporter) AddFilter(f monitoring.Filter) {
	r.mu.Lock()
	r.filters = append(r.filters, f)
	r.mu.Unlock()
}

// ActiveConnections reports the number of connected websocket clients.
func (r *Reporter) ActiveConnections() int {
	return r.hub.activeConnections()
}

func toWireEvent(ev monitoring.Event) wireEvent {
	w := wireEvent{
		Kind:      ev.Kind.String(),
		Message:   ev.Message,
		Category:  ev.Category,
		Data:      ev.Data,
		GapStart:  ev.GapStart,
		GapEnd:    ev.GapEnd,
		Timestamp: nowOrGapStart(ev),
	}
	if ev.Record != nil {
		w.ClassType = ev.Record.ClassType
		w.Method = ev.Record.MethodDescriptor
		w.FlowID = strconv.FormatInt(int64(ev.Record.FlowID), 10)
		w.Level = ev.Record.Level
		w.ElapsedMS = float64(ev.Record.Elapsed.Microseconds()) / 1000.0
	}
	return w
}

func nowOrGapStart(ev monitoring.Event) time.Time {
	if ev.Kind == monitoring.EventGap {
		return ev.GapStart
	}
	if ev.Record != nil && !ev.Record.StartTime.IsZero() {
		return ev.Record.StartTime
	}
	return time.Now()
}

func formatMessage(ev monitoring.Event) string {
	switch ev.Kind {
	case monitoring.EventStart:
		return fmt.Sprintf("%s.%s started", safeClassType(ev.Record), safeMethod(ev.Record))
	case monitoring.EventEnd:
		return fmt.Sprintf("%s.%s ended after %s", safeClassType(ev.Record), safeMethod(ev.Record), elapsed(ev.Record))
	case monitoring.EventException:
		return fmt.Sprintf("%s.%s raised: %s", safeClassType(ev.Record), safeMethod(ev.Record), ev.Message)
	case monitoring.EventGap:
		return fmt.Sprintf("gap of %s detected", ev.GapEnd.Sub(ev.GapStart))
	case monitoring.EventLogEntry:
		return fmt.Sprintf("[%s] %s", ev.Category, ev.Message)
	default:
		return ev.Kind.String()
	}
}

func safeClassType(r *monitoring.MethodCallInfo) string {
	if r == nil {
		return "?"
	}
	return r.ClassType
}

func safeMethod(r *monitoring.MethodCallInfo) string {
	if r == nil {
		return "?"
	}
	return r.MethodDescriptor
}

func elapsed(r *monitoring.MethodCallInfo) string {
	if r == nil {
		return "?"
	}
	return r.Elapsed.String()
}
