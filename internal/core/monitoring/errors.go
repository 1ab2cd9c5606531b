package monitoring

import "errors"

// ErrMethodNotFound is returned by the Call Stack Engine's create() when no
// matching method descriptor exists for the requested class/method/generic
// args (spec.md §4.4).
//
// This is a configuration error (spec.md §7): it surfaces synchronously at
// the call site and causes no state mutation.
var ErrMethodNotFound = errors.New("callwatch: method descriptor not found")

// ErrDepthExceeded is the fatal, thrown invariant violation raised when a
// push would bring a flow's call stack depth to 1000 (spec.md §3, invariant
// (d); §7 "depth-exceeded is fatal and thrown"); depth 999 is the deepest
// allowed.
var ErrDepthExceeded = errors.New("callwatch: call stack depth exceeded")

// ErrInvalidComponentKind names the error of an operation attempted against
// a component registered under a different ComponentKind than the one the
// operation expects. No callwatch operation returns it: the Controller and
// Component Registry accept any (kind, type) pair without checking it.
var ErrInvalidComponentKind = errors.New("callwatch: invalid component kind for this operation")

// ErrUnknownComponent names the error of an operation that references a
// component type that was never registered. No callwatch operation returns
// it: component-state and relationship calls accept unregistered types.
var ErrUnknownComponent = errors.New("callwatch: unknown component type")
