// Package linkstate implements the per-area link-state graph: adjacency
// bookkeeping, cached Dijkstra SPF, KSP2 k-shortest paths, and the
// ordered-FIB hold-timer state machine (§4.1).
//
// Nodes are interned to small integers on first sight (a flat arena rather
// than a pointer graph), so the adjacency lists below never hold owning
// references and there is nothing to leak across mutation.
package linkstate

import (
	"net/netip"

	"github.com/lsdecision/decision/state"
)

type nodeID int

// rawAdj is one node's own view of one directed adjacency towards a peer.
type rawAdj struct {
	ifName   string
	nhV4     netip.Addr
	nhV6     netip.Addr
	metric   uint32
	adjLabel uint32
}

type holdPhase int

const (
	holdNone holdPhase = iota
	// holdUp: a newly added link, visible but not yet usable for forwarding.
	holdUp
	// holdDown: a withdrawn link, still usable for forwarding until it
	// drains. The withdrawn direction(s) are recorded in pendingClearA/B and
	// only actually cleared when the hold timer reaches zero.
	holdDown
)

// establishedLink is a link present in the graph because both endpoints
// advertise a matching adjacency. Each direction keeps its own rawAdj so
// that LinksFromNode can report the asking node's own interface/next-hop.
type establishedLink struct {
	a, b          nodeID
	fromAToB      rawAdj
	fromBToA      rawAdj
	hasAToB       bool
	hasBToA       bool
	holdPhase     holdPhase
	holdTtl       uint32
	pendingClearA bool
	pendingClearB bool
}

// exists reports whether both directions have been advertised, i.e. this is
// a real bidirectional-agreement link per the data model invariant.
func (l *establishedLink) exists() bool {
	return l.hasAToB && l.hasBToA
}

// effectiveMetric is the max-of-both-directions metric used by SPF.
func (l *establishedLink) effectiveMetric() uint32 {
	if !l.exists() {
		return state.INF
	}
	return max(l.fromAToB.metric, l.fromBToA.metric)
}

// usable reports whether SPF may traverse this link: a holdUp link is
// visible but not usable; a holdDown link remains usable until it drains.
func (l *establishedLink) usable() bool {
	return l.exists() && l.holdPhase != holdUp
}

type linkKey struct{ lo, hi nodeID }

func mkLinkKey(a, b nodeID) linkKey {
	if a <= b {
		return linkKey{a, b}
	}
	return linkKey{b, a}
}

// Graph is the arena-backed undirected link-state topology for one area.
type Graph struct {
	area state.Area

	nodeIdx map[state.Node]nodeID
	nodes   []state.Node

	// per-node raw adjacency set, as last advertised by that node.
	adjOut map[nodeID]map[nodeID]rawAdj

	links map[linkKey]*establishedLink
	// byNode indexes links by endpoint; entries persist after a link stops
	// existing, so every traversal filters on usable().
	byNode map[nodeID]map[nodeID]*establishedLink

	nodeLabels map[nodeID]uint32
	overloaded map[nodeID]bool
	// ttlVersion is the last advertised AdjacencyDatabase.TtlVersion per
	// node, kept only so introspection can round-trip it; SPF never reads it.
	ttlVersion map[nodeID]int64
}

func newGraph(area state.Area) *Graph {
	return &Graph{
		area:       area,
		nodeIdx:    make(map[state.Node]nodeID),
		adjOut:     make(map[nodeID]map[nodeID]rawAdj),
		links:      make(map[linkKey]*establishedLink),
		byNode:     make(map[nodeID]map[nodeID]*establishedLink),
		nodeLabels: make(map[nodeID]uint32),
		overloaded: make(map[nodeID]bool),
		ttlVersion: make(map[nodeID]int64),
	}
}

func (g *Graph) intern(n state.Node) nodeID {
	if id, ok := g.nodeIdx[n]; ok {
		return id
	}
	id := nodeID(len(g.nodes))
	g.nodeIdx[n] = id
	g.nodes = append(g.nodes, n)
	return id
}

func (g *Graph) lookup(n state.Node) (nodeID, bool) {
	id, ok := g.nodeIdx[n]
	return id, ok
}

func (g *Graph) hasNode(n state.Node) bool {
	id, ok := g.nodeIdx[n]
	if !ok {
		return false
	}
	_, advertised := g.adjOut[id]
	return advertised
}

func (g *Graph) link(a, b nodeID) (*establishedLink, bool) {
	l, ok := g.links[mkLinkKey(a, b)]
	return l, ok
}

func (g *Graph) getOrCreateLink(a, b nodeID) *establishedLink {
	k := mkLinkKey(a, b)
	l, ok := g.links[k]
	if !ok {
		l = &establishedLink{a: k.lo, b: k.hi}
		g.links[k] = l
		g.indexLink(a, b, l)
		g.indexLink(b, a, l)
	}
	return l
}

func (g *Graph) indexLink(from, to nodeID, l *establishedLink) {
	m, ok := g.byNode[from]
	if !ok {
		m = make(map[nodeID]*establishedLink)
		g.byNode[from] = m
	}
	m[to] = l
}

// usableNeighbors iterates the usable established links out of `n`.
func (g *Graph) usableNeighbors(n nodeID, fn func(peer nodeID, l *establishedLink)) {
	for peer, l := range g.byNode[n] {
		if l.usable() {
			fn(peer, l)
		}
	}
}

// setDirection records node `from`'s adjacency towards `to`, creating or
// updating the shared establishedLink entry for the (from,to) pair.
func (l *establishedLink) setDirection(from, to nodeID, adj rawAdj) {
	if from == l.a {
		l.fromAToB = adj
		l.hasAToB = true
	} else {
		l.fromBToA = adj
		l.hasBToA = true
	}
}

func (l *establishedLink) clearDirection(from nodeID) {
	if from == l.a {
		l.hasAToB = false
	} else {
		l.hasBToA = false
	}
}

// markPendingClear records that `from` has withdrawn its direction but the
// withdrawal is being held; the direction stays advertised until
// commitPendingClears runs at hold expiry.
func (l *establishedLink) markPendingClear(from nodeID) {
	if from == l.a {
		l.pendingClearA = true
	} else {
		l.pendingClearB = true
	}
}

func (l *establishedLink) cancelPendingClear(from nodeID) bool {
	if from == l.a && l.pendingClearA {
		l.pendingClearA = false
		return true
	}
	if from == l.b && l.pendingClearB {
		l.pendingClearB = false
		return true
	}
	return false
}

func (l *establishedLink) hasPendingClear() bool {
	return l.pendingClearA || l.pendingClearB
}

func (l *establishedLink) commitPendingClears() {
	if l.pendingClearA {
		l.hasAToB = false
		l.pendingClearA = false
	}
	if l.pendingClearB {
		l.hasBToA = false
		l.pendingClearB = false
	}
}

// adjOf returns the rawAdj that `from` advertised towards the other
// endpoint of this link.
func (l *establishedLink) adjOf(from nodeID) rawAdj {
	if from == l.a {
		return l.fromAToB
	}
	return l.fromBToA
}
