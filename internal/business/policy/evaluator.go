// Package policy implements the Policy Evaluator (spec.md §4.5): the single
// should_track decision function every other subsystem calls to find out
// whether a captured MonitoringVersion is still current enough to act on.
package policy

import (
	"github.com/avkuznetsov/callwatch/internal/business/controller"
	"github.com/avkuznetsov/callwatch/internal/core/monitoring"
)

// Evaluator wraps a Controller with the fixed-order should_track algorithm
// (spec.md §4.5). It holds no state of its own; every call reads the
// Controller's live state.
type Evaluator struct {
	controller *controller.Controller
}

// New returns an Evaluator reading from c.
func New(c *controller.Controller) *Evaluator {
	return &Evaluator{controller: c}
}

// ShouldTrack implements spec.md §4.5's fixed order exactly, so results are
// deterministic regardless of which optional arguments a caller supplies:
//
//  1. global_enabled ∧ captured == current is the fast-path gate.
//  2. If reporterType is non-nil, it must be enabled.
//  3. If filterType is non-nil and instanceIDs is non-empty, any one of those
//     instances must have filterType enabled via the instance relationship
//     table.
//  4. Else if filterType is non-nil and reporterType is non-nil, the
//     (reporterType, filterType) type relationship must permit it.
//  5. Else if filterType is non-nil, it must be enabled globally.
//
// Pass nil for reporterType/filterType and an empty instanceIDs to get the
// bare fast-path gate, which is what MethodCallContext construction uses to
// freeze its one tracked decision (spec.md §4.6, §9 open question: "capture
// at Start, hold to End" — this package is never consulted again for the
// same call after that one evaluation).
func (e *Evaluator) ShouldTrack(
	captured monitoring.MonitoringVersion,
	reporterType *monitoring.ComponentType,
	filterType *monitoring.ComponentType,
	instanceIDs []string,
) bool {
	if !e.controller.IsEnabled() {
		return false
	}
	if !captured.Equal(e.controller.CurrentVersion()) {
		return false
	}

	if reporterType != nil {
		if !e.controller.GetComponentState(monitoring.KindReporter, *reporterType) {
			return false
		}
	}

	if filterType == nil {
		return true
	}

	if len(instanceIDs) > 0 {
		for _, id := range instanceIDs {
			if e.controller.Registry().InstanceRelationship(id, *filterType) &&
				e.controller.GetComponentState(monitoring.KindFilter, *filterType) {
				return true
			}
		}
		return false
	}

	if reporterType != nil {
		return e.controller.Registry().TypeRelationship(*reporterType, *filterType)
	}

	return e.controller.GetComponentState(monitoring.KindFilter, *filterType)
}
