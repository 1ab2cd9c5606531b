package controller

import (
	"context"
	"sync/atomic"

	"github.com/avkuznetsov/callwatch/internal/core/monitoring"
)

// OperationScope is a nested region captured against one MonitoringVersion
// (spec.md GLOSSARY "Operation scope"). It freezes a tracking decision for
// the logical operation it spans; Valid() tells a caller whether the
// Controller has since moved on.
type OperationScope struct {
	controller *Controller
	version    monitoring.MonitoringVersion
	parent     *OperationScope
	isRoot     bool

	closed atomic.Bool
}

// Version returns the version this scope captured at BeginOperation time.
func (s *OperationScope) Version() monitoring.MonitoringVersion {
	return s.version
}

// Valid reports whether s's captured version still equals the Controller's
// current version.
func (s *OperationScope) Valid() bool {
	return s.version.Equal(s.controller.CurrentVersion())
}

// IsRoot reports whether s is the outermost operation scope in its flow: at
// most one root scope is active per flow at a time (spec.md §4.2).
func (s *OperationScope) IsRoot() bool {
	return s.isRoot
}

// Close ends the scope. Closing the root scope bumps the Controller's
// version as a commit signal (spec.md §4.2: "dropping the root bumps the
// version"); closing a nested scope is a pure pop with no side effect, since
// the parent scope's own captured version already governs that region. Close
// is idempotent.
func (s *OperationScope) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	if s.isRoot {
		s.controller.commitRootOperation()
	}
}

type operationScopeContextKey struct{}

func withScope(ctx context.Context, s *OperationScope) context.Context {
	return context.WithValue(ctx, operationScopeContextKey{}, s)
}

func scopeFromContext(ctx context.Context) (*OperationScope, bool) {
	s, ok := ctx.Value(operationScopeContextKey{}).(*OperationScope)
	return s, ok
}
