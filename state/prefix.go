package state

import "net/netip"

// PrefixType classifies why a prefix is advertised.
type PrefixType int

const (
	PrefixLoopback PrefixType = iota
	PrefixBGP
	PrefixOther
)

// ForwardingType selects the dataplane a prefix is routed over.
type ForwardingType int

const (
	ForwardingIP ForwardingType = iota
	ForwardingSRMPLS
)

// ForwardingAlgorithm selects the path-computation strategy for a prefix.
type ForwardingAlgorithm int

const (
	AlgoSpEcmp ForwardingAlgorithm = iota
	AlgoKsp2EdEcmp
)

// MetricEntityType tags a MetricVector entity; OPENR_IGP_COST is reserved for
// the engine's own IGP-distance entity (§4.3.4) and may never be carried by
// an advertiser.
type MetricEntityType int

const (
	EntityGeneric MetricEntityType = iota
	EntityIgpCost
)

// MetricOp controls how a single entity contributes to a lexicographic
// MetricVector comparison, in particular how asymmetric presence (one side
// lacks the entity entirely) is resolved.
type MetricOp int

const (
	// OpWinIfPresent: the side that carries this entity wins over a side
	// that lacks it.
	OpWinIfPresent MetricOp = iota
	// OpWinIfNotPresent: the side that lacks this entity wins over a side
	// that carries it. Used for the synthetic OPENR_IGP_COST entity so that
	// a candidate without a computable IGP distance never loses to one
	// that happens to have it attached.
	OpWinIfNotPresent
)

// MetricEntity is one prioritized, ordered field of a MetricVector.
type MetricEntity struct {
	Type       MetricEntityType
	Priority   int32
	Op         MetricOp
	TieBreaker bool
	Metric     []int64
}

// MetricVector is an ordered set of prioritized metric entities used to
// compare BGP-style announcements deterministically (§4.3.4).
type MetricVector struct {
	Entities []MetricEntity
}

// PrefixEntry is one advertiser's view of a prefix.
type PrefixEntry struct {
	Type                PrefixType
	ForwardingType      ForwardingType
	ForwardingAlgorithm ForwardingAlgorithm
	MetricVector        *MetricVector
	PrependLabel        *uint32
	MinNexthop          *int
}

func (p PrefixEntry) IsBGP() bool {
	return p.Type == PrefixBGP
}

// PrefixDatabase is one node's full (or per-prefix-keyed) set of advertised
// prefixes, as published on the `prefix:<node>[:<prefix-key>]` LSDB key.
type PrefixDatabase struct {
	ThisNode   Node
	Prefixes   map[netip.Prefix]PrefixEntry
	TtlVersion int64
}
