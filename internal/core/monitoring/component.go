package monitoring

// ComponentType identifies a registered reporter, filter, or output kind
// (spec.md §4 "dynamic type/component registry"). Source languages with
// reflection key this off the concrete type; callwatch keys it off a plain
// string identifier supplied at registration, per spec.md §9's "tagged enum
// of built-ins plus an extension point that stores a type identifier".
type ComponentType string

// ComponentKind distinguishes the three component tables the Controller and
// Component Registry maintain (spec.md §3 "Component state tables").
type ComponentKind int

const (
	KindReporter ComponentKind = iota
	KindFilter
	KindOutput
)

func (k ComponentKind) String() string {
	switch k {
	case KindReporter:
		return "reporter"
	case KindFilter:
		return "filter"
	case KindOutput:
		return "output"
	default:
		return "unknown"
	}
}

// Filter is a pure predicate over a record's current parameter map and
// method descriptor (spec.md §6 "Filter contract").
type Filter interface {
	ShouldInclude(record *MethodCallInfo) bool
}

// FilterFunc adapts a function to Filter.
type FilterFunc func(*MethodCallInfo) bool

func (f FilterFunc) ShouldInclude(r *MethodCallInfo) bool { return f(r) }

// Output receives typed writes from a Reporter (spec.md §6 "Reporter
// contract" / "Outputs receive typed writes").
type Output interface {
	// Initialize binds the output to its owning reporter and returns a
	// cleanup to run at end of scope.
	Initialize(reporter Reporter) (cleanup func(), err error)
	WriteItem(event Event, message string)
	WriteSummary(message string)
	WriteError(err error)
}

// Reporter consumes the lifecycle event stream and fans it out to its
// Outputs, filtered by its Filters (spec.md §6 "Reporter contract"). Concrete
// reporters (CSV/TXT/Rantt) are out of scope for the core per spec.md §1;
// callwatch ships one illustrative Output/Reporter pair
// (internal/infrastructure/livereporter) and lets hosts supply their own.
type Reporter interface {
	// Initialize prepares the reporter against the declared configuration and
	// the root record of the call tree it will observe.
	Initialize(cfg MethodConfiguration, root *MethodCallInfo) error

	// StartReporting begins consuming events. The returned cleanup must run
	// at end of scope; reporters that fail to start should return a non-nil
	// error, which the facade logs and swallows (spec.md §4.7).
	StartReporting(events <-chan Event) (cleanup func(), err error)

	// AddOutput and AddFilter register collaborators declared against this
	// reporter by the Configuration Builder.
	AddOutput(o Output)
	AddFilter(f Filter)
}
