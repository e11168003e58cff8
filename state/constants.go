package state

import "time"

const (
	// INF is an unreachable/retracted metric.
	INF = ^uint32(0)
	// MaxMetric is the largest metric that is not a retraction.
	MaxMetric = INF - 1
	// MaxLabel is the exclusive upper bound of the valid MPLS label space used
	// for node/adjacency labels: [0, MaxLabel).
	MaxLabel = 1 << 20
)

var (
	// DebounceMinDur is the minimum delay before a recomputation fires after
	// the first pending-update notification.
	DebounceMinDur = 10 * time.Millisecond
	// DebounceMaxDur is the ceiling the exponential backoff saturates at.
	DebounceMaxDur = 5 * time.Second
	// ColdStartDuration suppresses route publication for this long after
	// startup, to let the LSDB converge before the first RIB is computed.
	ColdStartDuration = 5 * time.Second
	// HoldTickInterval is how often decrementHolds is invoked.
	HoldTickInterval = 100 * time.Millisecond
)
