// Package monitoring holds the data model shared by every subsystem of
// callwatch: the version token, the pooled lifecycle record, the lifecycle
// event types, and the interfaces external reporters/filters/outputs
// implement. It intentionally has no dependency on any other callwatch
// package so that both the infrastructure layer (version manager, descriptor
// cache) and the business layer (controller, pool, call stack, policy,
// context, facade) can depend on it without a cycle.
package monitoring

import (
	"github.com/google/uuid"
)

// MonitoringVersion is a totally ordered (timestamp, counter, uuid) triple
// identifying one snapshot of the monitoring control plane's state (spec.md
// §3). Ordering is by TimestampMs, then Counter, then the UUID's byte order;
// the UUID only breaks ties that should never occur in practice and exists so
// equality is never ambiguous even under a misbehaving clock.
type MonitoringVersion struct {
	TimestampMs uint64
	Counter     uint32
	UUID        uuid.UUID
}

// Zero is the default MonitoringVersion, strictly less than any value a
// Manager will ever produce (timestamps are Unix milliseconds).
var Zero = MonitoringVersion{}

// Less reports whether v sorts strictly before other.
func (v MonitoringVersion) Less(other MonitoringVersion) bool {
	if v.TimestampMs != other.TimestampMs {
		return v.TimestampMs < other.TimestampMs
	}
	if v.Counter != other.Counter {
		return v.Counter < other.Counter
	}
	return compareUUID(v.UUID, other.UUID) < 0
}

// Equal reports structural equality of all three components.
func (v MonitoringVersion) Equal(other MonitoringVersion) bool {
	return v.TimestampMs == other.TimestampMs &&
		v.Counter == other.Counter &&
		v.UUID == other.UUID
}

func compareUUID(a, b uuid.UUID) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}
