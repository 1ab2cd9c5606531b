package facade

import (
	"sync"

	"github.com/avkuznetsov/callwatch/internal/core/monitoring"
)

// ConfigurationBuilder is the global, declarative assembly builder passed to
// Monitor.Configure (spec.md §6, §4.7): it registers reporter/filter/output
// types against the Controller's Component Registry and records which
// types/packages are declared for tracking. It is not safe for concurrent use
// with itself (mirrors the Component Registry's own single-writer
// discipline, spec.md §4.2) — callers configure once at startup.
type ConfigurationBuilder struct {
	monitor *Monitor

	mu               sync.Mutex
	trackedTypes     []string
	trackedAssemblies []string
}

// AddReporterType registers a reporter component type and binds r as the
// shared Reporter instance used whenever a call declares this type (spec.md
// §6 "add_reporter_type<T>()").
func (b *ConfigurationBuilder) AddReporterType(t monitoring.ComponentType, r monitoring.Reporter) *ConfigurationBuilder {
	b.monitor.controller.Registry().Register(monitoring.KindReporter, t)
	b.monitor.reportersMu.Lock()
	b.monitor.reporters[t] = r
	b.monitor.reportersMu.Unlock()
	return b
}

// AddFilter registers a filter component type and its predicate (spec.md §6
// "add_filter<T>()").
func (b *ConfigurationBuilder) AddFilter(t monitoring.ComponentType, f monitoring.Filter) *ConfigurationBuilder {
	b.monitor.controller.Registry().Register(monitoring.KindFilter, t)
	b.monitor.filters.Register(t, f)
	return b
}

// AddOutput registers an output component type's existence in the Component
// Registry (spec.md §6 "add_output<T>()"). Outputs are attached to a
// specific Reporter instance directly via Reporter.AddOutput; this call only
// records that the type exists for enable/disable bookkeeping.
func (b *ConfigurationBuilder) AddOutput(t monitoring.ComponentType) *ConfigurationBuilder {
	b.monitor.controller.Registry().Register(monitoring.KindOutput, t)
	return b
}

// TrackType declares classType as instrumented (spec.md §6 "track_type(T)").
// Go has no runtime type/assembly scanner (spec.md §1's out-of-scope
// "reflection-based type/assembly scanning" external collaborator); this is
// bookkeeping a host's descriptor.Resolver or internal/config loader can
// consult to decide what to wrap, not an automatic instrumentation trigger.
func (b *ConfigurationBuilder) TrackType(classType string) *ConfigurationBuilder {
	b.mu.Lock()
	b.trackedTypes = append(b.trackedTypes, classType)
	b.mu.Unlock()
	return b
}

// TrackAssembly declares every type under pkgPath as instrumented (spec.md §6
// "track_assembly(asm)"), with the same bookkeeping-only caveat as TrackType.
func (b *ConfigurationBuilder) TrackAssembly(pkgPath string) *ConfigurationBuilder {
	b.mu.Lock()
	b.trackedAssemblies = append(b.trackedAssemblies, pkgPath)
	b.mu.Unlock()
	return b
}

// TrackedTypes returns every type declared via TrackType, for a host's
// startup wiring to enumerate.
func (b *ConfigurationBuilder) TrackedTypes() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.trackedTypes))
	copy(out, b.trackedTypes)
	return out
}

// TrackedAssemblies returns every package path declared via TrackAssembly.
func (b *ConfigurationBuilder) TrackedAssemblies() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.trackedAssemblies))
	copy(out, b.trackedAssemblies)
	return out
}

// CallBuilder assembles one call's monitoring.MethodConfiguration (spec.md
// §4.7: "build a MethodConfiguration via a fluent builder (reporters, filter
// declarations, parameters, generic args, parameter types)"). Unlike
// ConfigurationBuilder, a CallBuilder is cheap, call-scoped, and carries no
// reference back to the Monitor.
type CallBuilder struct {
	cfg monitoring.MethodConfiguration
}

// NewCallBuilder returns an empty CallBuilder.
func NewCallBuilder() *CallBuilder {
	return &CallBuilder{cfg: monitoring.NewMethodConfiguration()}
}

// WithReporterTypes declares which reporter types this call is associated
// with. Omitting this call leaves the admission rule's "all reporters
// interested" default in effect (spec.md §4.4).
func (b *CallBuilder) WithReporterTypes(types ...monitoring.ComponentType) *CallBuilder {
	b.cfg.ReporterTypes = append(b.cfg.ReporterTypes, types...)
	return b
}

// WithFilterTypes declares which filter types gate this call's events.
func (b *CallBuilder) WithFilterTypes(types ...monitoring.ComponentType) *CallBuilder {
	b.cfg.FilterTypes = append(b.cfg.FilterTypes, types...)
	return b
}

// WithParameter sets a config-declared parameter, which takes priority over
// any attribute-declared parameter with the same key (spec.md §4.4).
func (b *CallBuilder) WithParameter(key, value string) *CallBuilder {
	b.cfg.Parameters.Set(key, value)
	return b
}

// WithGenericArgs stamps the method's generic type arguments.
func (b *CallBuilder) WithGenericArgs(args ...string) *CallBuilder {
	b.cfg.GenericArgs = args
	return b
}

// WithParameterTypes stamps the method's static parameter type names,
// overriding whatever the descriptor resolver would otherwise report.
func (b *CallBuilder) WithParameterTypes(types ...string) *CallBuilder {
	b.cfg.ParameterTypes = types
	return b
}

// AsStatic marks the call as a static method invocation.
func (b *CallBuilder) AsStatic() *CallBuilder {
	b.cfg.IsStatic = true
	return b
}

// AsExtension marks the call as an extension method on extendedType.
func (b *CallBuilder) AsExtension(extendedType string) *CallBuilder {
	b.cfg.IsExtension = true
	b.cfg.ExternalType = extendedType
	return b
}

// AsExternal switches to the external-method variant (spec.md §4.7), which
// skips descriptor resolution entirely and stamps externalType/externalMethod
// directly onto the rented record.
func (b *CallBuilder) AsExternal(externalType, externalMethod string) *CallBuilder {
	b.cfg.IsExternal = true
	b.cfg.ExternalType = externalType
	b.cfg.ExternalMethod = externalMethod
	return b
}

// Build returns the assembled MethodConfiguration.
func (b *CallBuilder) Build() monitoring.MethodConfiguration {
	return b.cfg
}
