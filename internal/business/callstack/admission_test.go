package callstack

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avkuznetsov/callwatch/internal/business/controller"
	"github.com/avkuznetsov/callwatch/internal/core/monitoring"
)

// Scenario 6 (spec.md §8): a filter applied only via a call-declared filter
// type admits calls whose parameter satisfies ShouldInclude and drops ones
// that don't.
func TestAdmissionRuleFilterByDeclaredParameter(t *testing.T) {
	ctrl := controller.New()
	ctrl.Enable()
	ctrl.SetComponentState(monitoring.KindFilter, "workflow", true)

	filters := NewFilterRegistry()
	filters.Register("workflow", monitoring.FilterFunc(func(r *monitoring.MethodCallInfo) bool {
		v, ok := r.Parameters.Get("WorkflowItemName")
		return ok && v != ""
	}))

	admit := AdmissionRule(ctrl, filters)

	admitted := &monitoring.MethodCallInfo{Parameters: monitoring.NewParams()}
	admitted.Parameters.Set("WorkflowItemName", "Checkout")
	require.True(t, admit(monitoring.Event{Kind: monitoring.EventStart, Record: admitted}, []monitoring.ComponentType{"workflow"}))

	dropped := &monitoring.MethodCallInfo{Parameters: monitoring.NewParams()}
	require.False(t, admit(monitoring.Event{Kind: monitoring.EventStart, Record: dropped}, []monitoring.ComponentType{"workflow"}))
}

func TestAdmissionRuleDefaultsAdmitWhenNothingDeclared(t *testing.T) {
	ctrl := controller.New()
	ctrl.Enable()
	filters := NewFilterRegistry()
	admit := AdmissionRule(ctrl, filters)

	r := &monitoring.MethodCallInfo{Parameters: monitoring.NewParams()}
	require.True(t, admit(monitoring.Event{Kind: monitoring.EventStart, Record: r}, nil))
}

func TestAdmissionRuleRequiresAnEnabledDeclaredReporter(t *testing.T) {
	ctrl := controller.New()
	ctrl.Enable()
	filters := NewFilterRegistry()
	admit := AdmissionRule(ctrl, filters)

	r := &monitoring.MethodCallInfo{Parameters: monitoring.NewParams(), AssociatedReporters: []string{"csv"}}
	require.False(t, admit(monitoring.Event{Kind: monitoring.EventStart, Record: r}, nil), "csv reporter was never enabled")

	ctrl.SetComponentState(monitoring.KindReporter, "csv", true)
	require.True(t, admit(monitoring.Event{Kind: monitoring.EventStart, Record: r}, nil))
}
