package callstack

import (
	"sync"

	"github.com/avkuznetsov/callwatch/internal/business/controller"
	"github.com/avkuznetsov/callwatch/internal/core/monitoring"
)

// FilterRegistry holds the live monitoring.Filter implementations a
// ConfigurationBuilder has registered by component type, so the admission
// rule can call should_include on a record (spec.md §4.4, GLOSSARY "Admission
// rule"). Safe for concurrent registration and lookup.
type FilterRegistry struct {
	mu      sync.RWMutex
	filters map[monitoring.ComponentType]monitoring.Filter
}

// NewFilterRegistry returns an empty FilterRegistry.
func NewFilterRegistry() *FilterRegistry {
	return &FilterRegistry{filters: make(map[monitoring.ComponentType]monitoring.Filter)}
}

// Register associates f with t, overwriting any prior registration.
func (r *FilterRegistry) Register(t monitoring.ComponentType, f monitoring.Filter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filters[t] = f
}

func (r *FilterRegistry) get(t monitoring.ComponentType) monitoring.Filter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.filters[t]
}

// AdmissionFunc is the shape Engine.Publish expects: given an event and the
// filter types declared against the call that produced it, decide whether the
// event reaches observers.
type AdmissionFunc func(ev monitoring.Event, declaredFilters []monitoring.ComponentType) bool

// AdmissionRule builds the reporter-interested ∧ filter-allows admission rule
// (spec.md §4.4, GLOSSARY "Admission rule"): if no reporter types are
// declared on the call, every reporter is presumed interested; otherwise any
// one enabled declared reporter is enough. If no filter types are declared,
// the event admits by default; otherwise any one enabled declared filter
// whose ShouldInclude(record) is true admits it.
func AdmissionRule(ctrl *controller.Controller, filters *FilterRegistry) AdmissionFunc {
	return func(ev monitoring.Event, declaredFilters []monitoring.ComponentType) bool {
		record := ev.Record
		if record == nil {
			return true
		}

		interested := len(record.AssociatedReporters) == 0
		for _, rt := range record.AssociatedReporters {
			if ctrl.GetComponentState(monitoring.KindReporter, monitoring.ComponentType(rt)) {
				interested = true
				break
			}
		}
		if !interested {
			return false
		}

		if len(declaredFilters) == 0 {
			return true
		}
		for _, ft := range declaredFilters {
			if !ctrl.GetComponentState(monitoring.KindFilter, ft) {
				continue
			}
			if f := filters.get(ft); f != nil && f.ShouldInclude(record) {
				return true
			}
		}
		return false
	}
}
