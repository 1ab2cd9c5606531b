package monitoring

import (
	"sync/atomic"
	"time"
	"weak"
)

// RootLevel is the level (spec.md §3) assigned to the first record pushed
// onto an otherwise-empty call tree.
const RootLevel = 1

// MethodCallInfo is the pooled lifecycle record describing one method
// invocation (spec.md §3). It is rented from exactly one pool and returned
// exactly once, when its reference count drops to zero.
//
// Parent is a weak.Pointer rather than a plain pointer: spec.md §9 calls for
// "arena + weak index" so that a record's parent link can never keep a
// long-dead ancestor pinned in memory once the call stack has popped it and
// the pool has reclaimed it. Go's weak package (since Go 1.24) gives this
// directly — Parent.Value() returns nil once the ancestor is collected,
// which callwatch treats identically to "parent is the null record".
type MethodCallInfo struct {
	ID                 string
	ClassType          string
	MethodDescriptor   string
	GenericArgs        []string
	ParameterTypes     []string
	StartTime          time.Time
	Elapsed            time.Duration
	FlowID             FlowID
	ParentFlowID       FlowID
	Level              int
	Parent             weak.Pointer[MethodCallInfo]
	IsStatic           bool
	IsExtension        bool
	ExtendedType       string
	Parameters         *Params
	AttributeApplied   map[string]struct{} // names already injected from attributes
	AssociatedReporters []string
	IsNull             bool

	refcount int64
	pool     pooler
}

// pooler is the narrow interface MethodCallInfo needs back from its owning
// pool to implement reference-counted release, without importing the pool
// package (which imports monitoring) and creating a cycle. The method must
// be exported so a type in another package can implement this interface.
type pooler interface {
	Release(*MethodCallInfo)
}

// nullRecord is the shared sentinel returned whenever monitoring is disabled
// at rental time (spec.md §4.3). Every field access is meaningless; IsNull is
// the only field callers should ever read. It is never rented, never
// returned, never mutated, and shared by all callers — constructing it
// allocates nothing beyond this one package-level value.
var nullRecord = &MethodCallInfo{IsNull: true, ParentFlowID: NoFlow}

// NullRecord returns the shared null-object record.
func NullRecord() *MethodCallInfo {
	return nullRecord
}

// Use increments the reference count and returns a releaser that must be
// called exactly once to drop that reference. It lets a caller extend a
// record's lifetime past the point where the call stack would otherwise
// return it to the pool — e.g. an async reporter still serializing a Start
// event after the call has already returned and popped.
func (r *MethodCallInfo) Use() func() {
	if r.IsNull || r.pool == nil {
		return func() {}
	}
	atomic.AddInt64(&r.refcount, 1)
	var released int32
	return func() {
		if !atomic.CompareAndSwapInt32(&released, 0, 1) {
			return
		}
		if atomic.AddInt64(&r.refcount, -1) == 0 {
			r.pool.Release(r)
		}
	}
}

// ParentRecord resolves the weak parent pointer, returning the null record
// if the parent has already been reclaimed or was never set.
func (r *MethodCallInfo) ParentRecord() *MethodCallInfo {
	if p := r.Parent.Value(); p != nil {
		return p
	}
	return nullRecord
}

// SetPool binds r to its owning pool and marks it rented with the single
// implicit reference every rental starts with. Called only by pool.Pool.
func (r *MethodCallInfo) SetPool(p pooler) {
	r.pool = p
	r.refcount = 1
}

// ReleaseInitial drops the implicit reference a rental starts with. The
// method call context calls this from End(), after the record has been
// popped; the record returns to the pool once any outstanding Use()
// references also drop to zero.
func (r *MethodCallInfo) ReleaseInitial() {
	if r.IsNull || r.pool == nil {
		return
	}
	if atomic.AddInt64(&r.refcount, -1) == 0 {
		r.pool.Release(r)
	}
}

// Reset clears all mutable fields before the record is placed back on the
// pool's free-list (spec.md §4.3: "clears all mutable fields before
// enqueuing on a free-list").
func (r *MethodCallInfo) Reset() {
	r.ID = ""
	r.ClassType = ""
	r.MethodDescriptor = ""
	r.GenericArgs = nil
	r.ParameterTypes = nil
	r.StartTime = time.Time{}
	r.Elapsed = 0
	r.FlowID = 0
	r.ParentFlowID = 0
	r.Level = 0
	r.Parent = weak.Pointer[MethodCallInfo]{}
	r.IsStatic = false
	r.IsExtension = false
	r.ExtendedType = ""
	if r.Parameters != nil {
		r.Parameters.reset()
	} else {
		r.Parameters = NewParams()
	}
	for k := range r.AttributeApplied {
		delete(r.AttributeApplied, k)
	}
	r.AssociatedReporters = nil
	r.refcount = 0
}
