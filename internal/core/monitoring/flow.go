package monitoring

import (
	"context"
	"sync/atomic"
)

// FlowID identifies a logical call stack in the sense spec.md §3/§9 describes
// as "thread_id": a strand of execution that owns one stack of MethodCallInfo
// records. Go has no stable, observable goroutine identifier, so callwatch
// never reads one; instead a FlowID is minted once per top-level entry point
// and threaded explicitly through context.Context, exactly as spec.md §9's
// "AsyncLocal-style flow state" design note prescribes for languages without
// automatic task-local storage. An async continuation that resumes on a
// different goroutine still carries the same FlowID because it carries the
// same context.
type FlowID int64

// NoFlow is the parent flow id recorded on the process-wide root record,
// which by definition has no owning flow (spec.md §4.4 push() step 1).
const NoFlow FlowID = -1

var flowCounter int64

// NewFlowID mints a fresh, process-unique FlowID.
func NewFlowID() FlowID {
	return FlowID(atomic.AddInt64(&flowCounter, 1))
}

type flowIDContextKey struct{}

// WithFlow returns a context carrying id as the active flow. Call once at a
// top-level entry point (e.g. an HTTP handler, a queue consumer, a goroutine
// root); nested calls within the same logical operation should propagate the
// returned context rather than minting a new flow.
func WithFlow(ctx context.Context, id FlowID) context.Context {
	return context.WithValue(ctx, flowIDContextKey{}, id)
}

// FlowFromContext returns the FlowID carried by ctx, minting and attaching a
// fresh one if none is present. The returned context must be used for any
// further propagation so later lookups see the same flow.
func FlowFromContext(ctx context.Context) (context.Context, FlowID) {
	if id, ok := ctx.Value(flowIDContextKey{}).(FlowID); ok {
		return ctx, id
	}
	id := NewFlowID()
	return WithFlow(ctx, id), id
}
