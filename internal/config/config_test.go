package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avkuznetsov/callwatch/internal/business/facade"
	"github.com/avkuznetsov/callwatch/internal/core/monitoring"
	"github.com/avkuznetsov/callwatch/internal/infrastructure/descriptor"
)

const validDoc = `
enabled: true
tracked_types:
  - class_type: Orders
    workflow_item_type: DataProcess
    workflow_item_granularity: Fine
    default_parameters:
      Region: us-east
tracked_assemblies:
  - github.com/example/orders
reporters:
  - type: csv
    enabled: true
filters:
  - type: workflow
    enabled: false
`

func TestParseValidDocument(t *testing.T) {
	f, err := Parse([]byte(validDoc))
	require.NoError(t, err)
	require.True(t, f.Enabled)
	require.Len(t, f.TrackedTypes, 1)
	require.Equal(t, "Orders", f.TrackedTypes[0].ClassType)
	require.Equal(t, []string{"github.com/example/orders"}, f.TrackedAssemblies)
	require.Len(t, f.Reporters, 1)
	require.Equal(t, "csv", f.Reporters[0].Type)
}

func TestParseRejectsMissingClassType(t *testing.T) {
	_, err := Parse([]byte(`tracked_types:
  - workflow_item_type: Gap
`))
	require.Error(t, err)
}

func TestParseRejectsUnknownWorkflowItemType(t *testing.T) {
	_, err := Parse([]byte(`tracked_types:
  - class_type: Orders
    workflow_item_type: NotAReal Value
`))
	require.Error(t, err)
}

func TestBuildParamsMergesDeclaredAndDefault(t *testing.T) {
	tt := TrackedType{
		ClassType:               "Orders",
		WorkflowItemType:        "DataProcess",
		WorkflowItemGranularity: "Fine",
		DefaultParameters:       map[string]string{"Region": "us-east"},
	}
	p := tt.BuildParams()

	v, ok := p.Get("WorkflowItemType")
	require.True(t, ok)
	require.Equal(t, "DataProcess", v)

	v, ok = p.Get("Region")
	require.True(t, ok)
	require.Equal(t, "us-east", v)
}

type staticResolver struct{}

func (staticResolver) Resolve(classType, methodName string, genericArgs []string) (descriptor.Descriptor, error) {
	return descriptor.Descriptor{MethodDescriptor: classType + "." + methodName}, nil
}

func TestApplyCommitsTrackedTypesAndComponentStates(t *testing.T) {
	m, err := facade.New(staticResolver{})
	require.NoError(t, err)
	m.Configure(func(b *facade.ConfigurationBuilder) {
		b.AddReporterType("csv", nil)
		b.AddFilter("workflow", monitoring.FilterFunc(func(*monitoring.MethodCallInfo) bool { return true }))
	})

	f, err := Parse([]byte(validDoc))
	require.NoError(t, err)

	var captured []string
	m.Configure(func(b *facade.ConfigurationBuilder) {
		f.Apply(b, m.Controller())
		captured = b.TrackedTypes()
	})
	// Apply leaves global enablement to the caller; effective component
	// state is only observable once the controller is enabled.
	require.True(t, f.Enabled)
	m.Enable()

	require.Equal(t, []string{"Orders"}, captured)
	require.True(t, m.Controller().GetComponentState(monitoring.KindReporter, "csv"))
	require.False(t, m.Controller().GetComponentState(monitoring.KindFilter, "workflow"))
}

func TestLoadReadsFromDisk(t *testing.T) {
	path := t.TempDir() + "/callwatch.yaml"
	require.NoError(t, os.WriteFile(path, []byte(validDoc), 0o644))

	f, err := Load(path)
	require.NoError(t, err)
	require.True(t, f.Enabled)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load("/no/such/path/callwatch.yaml")
	require.Error(t, err)
}
