// Package registry implements the Component Registry (spec.md §2): the data
// structure tracking which reporter/filter/output types exist and the
// reporter<->filter relationship graph. It is deliberately not thread-safe on
// its own — the Monitoring Controller (internal/business/controller) is the
// sole owner and guards every access with its single readers-writer lock, per
// spec.md §4.2's locking discipline. Keeping the registry a plain data
// structure (rather than duplicating locking here) avoids the recursive-lock
// hazards spec.md §5/§9 warn about.
package registry

import "github.com/avkuznetsov/callwatch/internal/core/monitoring"

type relationshipKey struct {
	reporterType monitoring.ComponentType
	filterType   monitoring.ComponentType
}

type instanceRelationshipKey struct {
	reporterID string
	filterType monitoring.ComponentType
}

// Registry tracks component existence and the reporter<->filter relationship
// graph described in spec.md §3 "Component state tables".
type Registry struct {
	known map[monitoring.ComponentKind]map[monitoring.ComponentType]struct{}

	typeRelationship     map[relationshipKey]bool
	instanceRelationship map[instanceRelationshipKey]bool
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		known: map[monitoring.ComponentKind]map[monitoring.ComponentType]struct{}{
			monitoring.KindReporter: {},
			monitoring.KindFilter:   {},
			monitoring.KindOutput:   {},
		},
		typeRelationship:     make(map[relationshipKey]bool),
		instanceRelationship: make(map[instanceRelationshipKey]bool),
	}
}

// Register records that a component of the given kind and type exists.
func (r *Registry) Register(kind monitoring.ComponentKind, t monitoring.ComponentType) {
	r.known[kind][t] = struct{}{}
}

// IsRegistered reports whether a component of the given kind and type was
// ever registered.
func (r *Registry) IsRegistered(kind monitoring.ComponentKind, t monitoring.ComponentType) bool {
	_, ok := r.known[kind][t]
	return ok
}

// Types returns every registered type for kind, used by the Controller to
// reset effective state in bulk on enable/disable.
func (r *Registry) Types(kind monitoring.ComponentKind) []monitoring.ComponentType {
	out := make([]monitoring.ComponentType, 0, len(r.known[kind]))
	for t := range r.known[kind] {
		out = append(out, t)
	}
	return out
}

// SetTypeRelationship records whether filterType applies to every reporter of
// reporterType (spec.md §3 "(reporter_type, filter_type) -> bool").
func (r *Registry) SetTypeRelationship(reporterType, filterType monitoring.ComponentType, enabled bool) {
	r.typeRelationship[relationshipKey{reporterType, filterType}] = enabled
}

// TypeRelationship returns the stored (reporter_type, filter_type)
// applicability, defaulting to false when never declared.
func (r *Registry) TypeRelationship(reporterType, filterType monitoring.ComponentType) bool {
	return r.typeRelationship[relationshipKey{reporterType, filterType}]
}

// SetInstanceRelationship records whether filterType applies to the specific
// reporter instance identified by reporterID (spec.md §3 "(reporter_id,
// filter_type) -> bool").
func (r *Registry) SetInstanceRelationship(reporterID string, filterType monitoring.ComponentType, enabled bool) {
	r.instanceRelationship[instanceRelationshipKey{reporterID, filterType}] = enabled
}

// InstanceRelationship returns the stored (reporter_id, filter_type)
// applicability, defaulting to false when never declared.
func (r *Registry) InstanceRelationship(reporterID string, filterType monitoring.ComponentType) bool {
	return r.instanceRelationship[instanceRelationshipKey{reporterID, filterType}]
}
