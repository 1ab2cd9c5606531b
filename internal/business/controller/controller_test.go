package controller

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avkuznetsov/callwatch/internal/core/monitoring"
)

func TestNewControllerStartsDisabled(t *testing.T) {
	c := New()
	require.False(t, c.IsEnabled())
}

func TestEnableDisableTogglesEffectiveState(t *testing.T) {
	c := New()
	c.SetComponentState(monitoring.KindReporter, "csv", true)
	require.False(t, c.GetComponentState(monitoring.KindReporter, "csv"), "disabled controller means no effective state")

	c.Enable()
	require.True(t, c.GetComponentState(monitoring.KindReporter, "csv"))

	c.Disable()
	require.False(t, c.GetComponentState(monitoring.KindReporter, "csv"))
}

// R1: enable(); disable(); enable() returns to a byte-for-byte equal
// effective state as the first post-enable state, for a fixed configuration.
func TestEnableDisableEnableRoundTrip(t *testing.T) {
	c := New()
	c.SetComponentState(monitoring.KindReporter, "csv", true)
	c.SetComponentState(monitoring.KindFilter, "workflow", false)

	c.Enable()
	first := snapshotComponents(c)

	c.Disable()
	c.Enable()
	second := snapshotComponents(c)

	require.Equal(t, first, second)
}

func snapshotComponents(c *Controller) map[string]bool {
	return map[string]bool{
		"reporter:csv":      c.GetComponentState(monitoring.KindReporter, "csv"),
		"filter:workflow":   c.GetComponentState(monitoring.KindFilter, "workflow"),
	}
}

// R2 (chosen policy): setting a component to its current declared value is a
// no-op and does not bump the version.
func TestSetComponentStateSameValueDoesNotBumpVersion(t *testing.T) {
	c := New()
	c.SetComponentState(monitoring.KindReporter, "csv", true)
	v1 := c.CurrentVersion()

	c.SetComponentState(monitoring.KindReporter, "csv", true)
	v2 := c.CurrentVersion()

	require.True(t, v1.Equal(v2))
}

func TestSetComponentStateDifferentValueBumpsVersion(t *testing.T) {
	c := New()
	c.SetComponentState(monitoring.KindReporter, "csv", true)
	v1 := c.CurrentVersion()

	c.SetComponentState(monitoring.KindReporter, "csv", false)
	v2 := c.CurrentVersion()

	require.True(t, v1.Less(v2))
}

func TestEnableBumpsVersion(t *testing.T) {
	c := New()
	v1 := c.CurrentVersion()
	c.Enable()
	v2 := c.CurrentVersion()
	require.True(t, v1.Less(v2))
}

func TestStateChangedCallbacksFireInRegistrationOrderWithPostState(t *testing.T) {
	c := New()
	var mu sync.Mutex
	var order []bool

	c.AddStateChangedCallback(func(s StateSnapshot) {
		mu.Lock()
		order = append(order, s.Enabled)
		mu.Unlock()
	})
	c.AddStateChangedCallback(func(s StateSnapshot) {
		mu.Lock()
		order = append(order, s.Enabled)
		mu.Unlock()
	})

	c.Enable()
	require.Equal(t, []bool{true, true}, order)
}

func TestFilterRelationshipsBumpVersion(t *testing.T) {
	c := New()
	v1 := c.CurrentVersion()
	c.SetFilterStateForReporterType("csv", "workflow", true)
	v2 := c.CurrentVersion()
	require.True(t, v1.Less(v2))

	c.SetFilterStateForReporterInstance("csv#1", "workflow", false)
	v3 := c.CurrentVersion()
	require.True(t, v2.Less(v3))
}

func TestBeginOperationNestingAndRootCommit(t *testing.T) {
	c := New()
	c.Enable()

	ctx := context.Background()
	rootCtx, root := c.BeginOperation(ctx)
	require.True(t, root.IsRoot())

	childCtx, child := c.BeginOperation(rootCtx)
	require.False(t, child.IsRoot())
	_ = childCtx

	versionBeforeCommit := c.CurrentVersion()
	child.Close() // nested close: no version bump
	require.True(t, versionBeforeCommit.Equal(c.CurrentVersion()))

	root.Close() // root close: commits, bumps version
	require.True(t, versionBeforeCommit.Less(c.CurrentVersion()))
}

func TestOperationScopeValidityTracksVersionChanges(t *testing.T) {
	c := New()
	c.Enable()
	_, scope := c.BeginOperation(context.Background())
	require.True(t, scope.Valid())

	c.SetComponentState(monitoring.KindReporter, "csv", true)
	require.False(t, scope.Valid(), "a version bump after capture invalidates the scope")
}

func TestConcurrentEnableDisableNeverDeadlocks(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				c.Enable()
			} else {
				c.Disable()
			}
			_ = c.CurrentVersion()
		}(i)
	}
	wg.Wait()
}
