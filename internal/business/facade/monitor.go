// Package facade implements the Class Monitor / Performance Monitor facade
// (spec.md §4.7): the entry points instrumented code actually calls, wiring
// together the Controller, Call Stack Engine, Pool, descriptor Cache, and
// Policy Evaluator built up by the lower packages.
package facade

import (
	"log/slog"
	"runtime"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/avkuznetsov/callwatch/internal/business/callstack"
	"github.com/avkuznetsov/callwatch/internal/business/controller"
	"github.com/avkuznetsov/callwatch/internal/business/policy"
	"github.com/avkuznetsov/callwatch/internal/business/pool"
	"github.com/avkuznetsov/callwatch/internal/core/monitoring"
	"github.com/avkuznetsov/callwatch/internal/infrastructure/descriptor"
	"github.com/avkuznetsov/callwatch/internal/metrics"
)

// defaultChannelBuffer is the default per-reporter event channel capacity
// (spec.md §9 "model as a bounded channel with one producer and N consumer
// tasks").
const defaultChannelBuffer = 256

const defaultDescriptorCacheSize = descriptor.DefaultSize

// Monitor is the process-wide facade (spec.md §6 "Facade (programmatic)").
// Construct one with New and share it across every instrumented package;
// ForClass/ForCurrentClass hand out lightweight ClassMonitor views over it.
type Monitor struct {
	controller  *controller.Controller
	engine      *callstack.Engine
	pool        *pool.Pool
	descriptors *descriptor.Cache
	policy      *policy.Evaluator
	filters     *callstack.FilterRegistry
	metrics     *metrics.Registry
	logger      *slog.Logger

	reportersMu sync.RWMutex
	reporters   map[monitoring.ComponentType]monitoring.Reporter

	channelBuffer int
}

// Option configures a Monitor at construction time.
type Option func(*monitorConfig)

type monitorConfig struct {
	resolver            descriptor.Resolver
	metricsRegisterer    prometheus.Registerer
	logger               *slog.Logger
	descriptorCacheSize  int
	channelBuffer        int
}

// WithMetrics registers Prometheus instrumentation against reg (pass
// prometheus.NewRegistry() in tests, prometheus.DefaultRegisterer in a
// long-lived process, consistent with internal/metrics.New's own contract).
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *monitorConfig) { c.metricsRegisterer = reg }
}

// WithLogger attaches a structured logger, defaulting to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *monitorConfig) { c.logger = l }
}

// WithDescriptorCacheSize overrides the descriptor.Cache's LRU size.
func WithDescriptorCacheSize(size int) Option {
	return func(c *monitorConfig) { c.descriptorCacheSize = size }
}

// WithChannelBuffer overrides the per-reporter event channel buffer size a
// reporter's StartReporting is handed (spec.md §9 backpressure design note).
func WithChannelBuffer(n int) Option {
	return func(c *monitorConfig) { c.channelBuffer = n }
}

// New returns a disabled Monitor fronting resolver for method descriptor
// resolution (spec.md §1's out-of-scope reflection/metadata collaborator).
func New(resolver descriptor.Resolver, opts ...Option) (*Monitor, error) {
	cfg := monitorConfig{
		descriptorCacheSize: defaultDescriptorCacheSize,
		channelBuffer:        defaultChannelBuffer,
		logger:               slog.Default(),
	}
	for _, o := range opts {
		o(&cfg)
	}

	var reg *metrics.Registry
	if cfg.metricsRegisterer != nil {
		reg = metrics.New(cfg.metricsRegisterer)
	}

	ctrl := controller.New(controller.WithLogger(cfg.logger), controller.WithMetrics(reg))
	p := pool.New(pool.WithMetrics(reg))
	descCache, err := descriptor.New(resolver, cfg.descriptorCacheSize)
	if err != nil {
		return nil, err
	}
	engine := callstack.New(descCache, p, reg, cfg.logger)

	return &Monitor{
		controller:    ctrl,
		engine:        engine,
		pool:          p,
		descriptors:   descCache,
		policy:        policy.New(ctrl),
		filters:       callstack.NewFilterRegistry(),
		metrics:       reg,
		logger:        cfg.logger,
		reporters:     make(map[monitoring.ComponentType]monitoring.Reporter),
		channelBuffer: cfg.channelBuffer,
	}, nil
}

// Enable turns global tracking on (spec.md §6 "enable()").
func (m *Monitor) Enable() { m.controller.Enable() }

// Disable turns global tracking off (spec.md §6 "disable()").
func (m *Monitor) Disable() { m.controller.Disable() }

// IsEnabled reports the global tracking flag.
func (m *Monitor) IsEnabled() bool { return m.controller.IsEnabled() }

// Controller exposes the underlying Monitoring Controller for callers that
// need direct component-state or operation-scope access (spec.md §4.2).
func (m *Monitor) Controller() *controller.Controller { return m.controller }

// Configure runs fn against a fresh ConfigurationBuilder bound to m (spec.md
// §6 "configure(builder → void)").
func (m *Monitor) Configure(fn func(*ConfigurationBuilder)) {
	fn(&ConfigurationBuilder{monitor: m})
}

// ForClass returns a ClassMonitor bound to classType (spec.md §4.7
// "for_class(T)").
func (m *Monitor) ForClass(classType string) *ClassMonitor {
	return &ClassMonitor{monitor: m, classType: classType}
}

// ForCurrentClass returns a ClassMonitor bound to the calling function's
// package-qualified name, Go's nearest analog to a source-language's
// "current class" when no explicit type is at hand (spec.md §4.7
// "for_current_class()"). skip counts frames above ForCurrentClass itself.
func (m *Monitor) ForCurrentClass() *ClassMonitor {
	return m.ForClass(callerClassName(1))
}

func callerClassName(skip int) string {
	pc, _, _, ok := runtime.Caller(skip + 1)
	if !ok {
		return "unknown"
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return "unknown"
	}
	name := fn.Name()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return name
}
