package state

import "net/netip"

// Adjacency describes one directed link as advertised by its origin node.
// A link only exists in the graph once both endpoints advertise a matching
// adjacency (the bidirectional agreement invariant); LinkState is
// responsible for enforcing that, not this type.
type Adjacency struct {
	ToNode   Node
	IfName   string
	NhV4     netip.Addr
	NhV6     netip.Addr
	Metric   uint32
	AdjLabel uint32
	Area     Area
}

func (a Adjacency) ValidAdjLabel() bool {
	return a.AdjLabel != 0 && a.AdjLabel < MaxLabel
}

// AdjacencyDatabase is the per-node, per-area adjacency set, as published on
// the `adj:<node>` LSDB key.
type AdjacencyDatabase struct {
	ThisNode    Node
	Area        Area
	NodeLabel   uint32
	Overloaded  bool
	Adjacencies []Adjacency
	TtlVersion  int64
}

func (db AdjacencyDatabase) ValidNodeLabel() bool {
	return db.NodeLabel != 0 && db.NodeLabel < MaxLabel
}
