package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/viper"

	"github.com/avkuznetsov/callwatch/internal/business/facade"
	"github.com/avkuznetsov/callwatch/internal/config"
	"github.com/avkuznetsov/callwatch/internal/infrastructure/descriptor"
	"github.com/avkuznetsov/callwatch/internal/infrastructure/livereporter"
)

// demoResolver stands in for a host's reflection/metadata collaborator
// (spec.md §1): every class+method pair resolves successfully, since this
// binary exists to demonstrate the control plane, not a type system.
type demoResolver struct{}

func (demoResolver) Resolve(classType, methodName string, genericArgs []string) (descriptor.Descriptor, error) {
	return descriptor.Descriptor{MethodDescriptor: classType + "." + methodName}, nil
}

// app bundles the Monitor, the live reporter, and the logger shared by every
// subcommand. newApp resolves the policy file path with viper: a
// CALLWATCH_POLICY environment variable overrides the --policy flag, the same
// override order the teacher's internal/config uses for its own settings.
type app struct {
	monitor  *facade.Monitor
	reporter *livereporter.Reporter
	logger   *slog.Logger
}

func newApp() (*app, error) {
	v := viper.New()
	v.SetConfigFile(policyPath)
	v.SetEnvPrefix("CALLWATCH")
	v.AutomaticEnv()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	resolvedPath := policyPath
	if v.IsSet("policy") {
		resolvedPath = v.GetString("policy")
	}

	file, err := config.Load(resolvedPath)
	if err != nil {
		return nil, fmt.Errorf("loading policy %s: %w", resolvedPath, err)
	}

	reporter := livereporter.New(logger)

	m, err := facade.New(demoResolver{}, facade.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("constructing monitor: %w", err)
	}
	m.Configure(func(b *facade.ConfigurationBuilder) {
		b.AddReporterType("live", reporter)
		file.Apply(b, m.Controller())
	})
	if file.Enabled {
		m.Enable()
	}

	return &app{monitor: m, reporter: reporter, logger: logger}, nil
}
