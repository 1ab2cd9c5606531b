// Package config loads callwatch's declarative YAML configuration: which
// types/assemblies are tracked, their default parameters, and which reporter
// types start enabled (spec.md §6 Configuration Builder's "declarative
// assembly tracking", elaborated by SPEC_FULL.md §3). Mirrors the teacher's
// internal/config in spirit — a typed struct validated before it is ever
// committed to the Controller — but uses gopkg.in/yaml.v3 directly rather
// than viper, since this surface is pure static declaration with no env-var
// overlay or live-reload watch to justify viper's heavier machinery.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/avkuznetsov/callwatch/internal/business/controller"
	"github.com/avkuznetsov/callwatch/internal/business/facade"
	"github.com/avkuznetsov/callwatch/internal/core/monitoring"
)

// TrackedType declares one instrumented class and its default parameters
// (spec.md §6 "track_type(T)"; SPEC_FULL.md §3 "Declarative assembly/type
// tracking"). WorkflowItemType/WorkflowItemGranularity, when set, seed the
// well-known parameter keys spec.md §6 documents.
type TrackedType struct {
	ClassType               string            `yaml:"class_type" validate:"required"`
	DefaultParameters       map[string]string `yaml:"default_parameters"`
	WorkflowItemType        string            `yaml:"workflow_item_type" validate:"omitempty,oneof=Gap UserInteraction DataProcess DataIO Refresh Overview"`
	WorkflowItemGranularity string            `yaml:"workflow_item_granularity" validate:"omitempty,oneof=Fine Medium Coarse"`
}

// ReporterDeclaration declares a reporter type's initial enabled state.
type ReporterDeclaration struct {
	Type    string `yaml:"type" validate:"required"`
	Enabled bool   `yaml:"enabled"`
}

// FilterDeclaration declares a filter type's initial enabled state.
type FilterDeclaration struct {
	Type    string `yaml:"type" validate:"required"`
	Enabled bool   `yaml:"enabled"`
}

// File is the root of a callwatch YAML configuration document.
type File struct {
	TrackedTypes      []TrackedType         `yaml:"tracked_types" validate:"dive"`
	TrackedAssemblies []string              `yaml:"tracked_assemblies"`
	Reporters         []ReporterDeclaration `yaml:"reporters" validate:"dive"`
	Filters           []FilterDeclaration   `yaml:"filters" validate:"dive"`
	Enabled           bool                  `yaml:"enabled"`
}

var validate = validator.New()

// Load reads and validates a callwatch YAML configuration file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse validates and unmarshals a callwatch YAML configuration document
// already read into memory.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parsing yaml: %w", err)
	}
	if err := validate.Struct(&f); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}
	return &f, nil
}

// BuildParams returns an ordered monitoring.Params built from a tracked
// type's declared defaults, for use as the attributeParams argument to
// callstack.Engine.Create (config-declared parameters at the call site
// still take priority over these, per spec.md §4.4).
func (t TrackedType) BuildParams() *monitoring.Params {
	p := monitoring.NewParams()
	if t.WorkflowItemType != "" {
		p.Set("WorkflowItemType", t.WorkflowItemType)
	}
	if t.WorkflowItemGranularity != "" {
		p.Set("WorkflowItemGranularity", t.WorkflowItemGranularity)
	}
	for k, v := range t.DefaultParameters {
		p.SetIfAbsent(k, v)
	}
	return p
}

// Apply commits f's declarations to builder (tracked types/assemblies) and
// ctrl (reporter/filter declared states). It does not apply f.Enabled: the
// caller reads that field and decides whether to call ctrl.Enable().
func (f *File) Apply(builder *facade.ConfigurationBuilder, ctrl *controller.Controller) {
	for _, t := range f.TrackedTypes {
		builder.TrackType(t.ClassType)
	}
	for _, a := range f.TrackedAssemblies {
		builder.TrackAssembly(a)
	}
	for _, r := range f.Reporters {
		ctrl.SetComponentState(monitoring.KindReporter, monitoring.ComponentType(r.Type), r.Enabled)
	}
	for _, flt := range f.Filters {
		ctrl.SetComponentState(monitoring.KindFilter, monitoring.ComponentType(flt.Type), flt.Enabled)
	}
}
