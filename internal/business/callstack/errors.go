package callstack

import "errors"

// ErrUnknownFlow names the case where no stack exists for the given flow,
// e.g. a double-pop or a pop from a flow that was already discarded by a
// prior self-heal (spec.md §7: "pop mismatches... the engine self-heals by
// discarding the stale stack"). Pop does not return it: Pop reports only
// whether it drained the last stack, and logs this case as a warning.
var ErrUnknownFlow = errors.New("callstack: no active stack for this flow")
