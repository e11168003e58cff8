package linkstate

import (
	"net/netip"
	"time"

	"github.com/lsdecision/decision/state"
)

// Link is a directed edge view, as seen from its `From` endpoint. It is the
// unit solver.Solver assembles next-hops and label stacks from.
type Link struct {
	From, To state.Node
	IfName   string
	NhV4     netip.Addr
	NhV6     netip.Addr
	Metric   uint32
	AdjLabel uint32
	Area     state.Area
}

// Path is an ordered list of directed links from source to destination,
// suitable for label-stack assembly (§4.3.3).
type Path []Link

// Cost sums the path's link metrics.
func (p Path) Cost() uint32 {
	var total uint32
	for _, l := range p {
		total += l.Metric
	}
	return total
}

// ContainsSubpath reports whether `sub`'s edges occur contiguously within p,
// used by KSP2's anti-double-spray filter.
func (p Path) ContainsSubpath(sub Path) bool {
	if len(sub) == 0 || len(sub) > len(p) {
		return false
	}
	for start := 0; start+len(sub) <= len(p); start++ {
		match := true
		for i, e := range sub {
			if p[start+i].From != e.From || p[start+i].To != e.To {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// SpfEntry is one destination's cached SPF result.
type SpfEntry struct {
	Metric   uint32
	NextHops map[state.Node]struct{}
}

// UpdateResult reports whether a mutation changed the graph's reachability
// shape enough to require a fresh SPF/route build.
type UpdateResult struct {
	TopologyChanged bool
}

// LinkState is the per-node view of every area's link-state graph: the
// adjacency bookkeeping, the hold-timer state machine, and a lazily
// (re)computed, per-source Dijkstra cache (§4.1).
type LinkState struct {
	graphs map[state.Area]*Graph
	// spfCache[area][src] is populated on first access after invalidation.
	spfCache map[state.Area]map[state.Node]map[state.Node]SpfEntry

	// SpfObserver, when set, receives the wall time of every full Dijkstra
	// run (cache misses only); the orchestrator feeds it into the spf_runs /
	// spf_ms counters.
	SpfObserver func(elapsed time.Duration)
}

func New() *LinkState {
	return &LinkState{
		graphs:   make(map[state.Area]*Graph),
		spfCache: make(map[state.Area]map[state.Node]map[state.Node]SpfEntry),
	}
}

func (ls *LinkState) graphFor(area state.Area) *Graph {
	g, ok := ls.graphs[area]
	if !ok {
		g = newGraph(area)
		ls.graphs[area] = g
	}
	return g
}

func (ls *LinkState) invalidate(area state.Area) {
	delete(ls.spfCache, area)
}

// Areas returns every area with at least one advertised adjacency database.
func (ls *LinkState) Areas() []state.Area {
	areas := make([]state.Area, 0, len(ls.graphs))
	for a, g := range ls.graphs {
		if len(g.adjOut) > 0 {
			areas = append(areas, a)
		}
	}
	return areas
}

func rawEqual(a, b rawAdj) bool {
	return a.ifName == b.ifName && a.nhV4 == b.nhV4 && a.nhV6 == b.nhV6 &&
		a.metric == b.metric && a.adjLabel == b.adjLabel
}

// UpdateAdjacencyDatabase replaces `db.ThisNode`'s adjacency set in
// `db.Area`'s graph. Adding or removing a link arms its hold timer when the
// corresponding TTL is non-zero; metric/label-only changes to an already
// established link recompute immediately without a hold.
func (ls *LinkState) UpdateAdjacencyDatabase(db state.AdjacencyDatabase, holdUpTtl, holdDownTtl uint32) UpdateResult {
	g := ls.graphFor(db.Area)
	me := g.intern(db.ThisNode)

	old, hadOld := g.adjOut[me]
	newSet := make(map[nodeID]rawAdj, len(db.Adjacencies))
	for _, a := range db.Adjacencies {
		peer := g.intern(a.ToNode)
		newSet[peer] = rawAdj{ifName: a.IfName, nhV4: a.NhV4, nhV6: a.NhV6, metric: a.Metric, adjLabel: a.AdjLabel}
	}

	changed := !hadOld

	for peer := range old {
		if _, stillThere := newSet[peer]; stillThere {
			continue
		}
		link := g.getOrCreateLink(me, peer)
		wasEstablished := link.exists()
		if wasEstablished && link.holdPhase != holdUp && holdDownTtl > 0 {
			// usable-but-not-removable: the direction stays advertised
			// until the hold drains.
			link.markPendingClear(me)
			link.holdPhase = holdDown
			link.holdTtl = holdDownTtl
			changed = true
			continue
		}
		link.clearDirection(me)
		link.holdPhase = holdNone
		link.holdTtl = 0
		link.pendingClearA = false
		link.pendingClearB = false
		if wasEstablished {
			changed = true
		}
	}

	for peer, adj := range newSet {
		link := g.getOrCreateLink(me, peer)
		if link.holdPhase == holdDown && link.cancelPendingClear(me) {
			// re-advertised before the hold drained; the withdrawal never
			// commits.
			if !link.hasPendingClear() {
				link.holdPhase = holdNone
				link.holdTtl = 0
			}
		}
		wasEstablished := link.exists()
		prevAdj := link.adjOf(me)
		link.setDirection(me, peer, adj)
		nowEstablished := link.exists()
		switch {
		case !wasEstablished && nowEstablished:
			changed = true
			if holdUpTtl > 0 {
				link.holdPhase = holdUp
				link.holdTtl = holdUpTtl
			} else {
				link.holdPhase = holdNone
				link.holdTtl = 0
			}
		case wasEstablished && nowEstablished && !rawEqual(prevAdj, adj):
			changed = true
		}
	}

	g.adjOut[me] = newSet
	g.ttlVersion[me] = db.TtlVersion

	if wasOverloaded := g.overloaded[me]; wasOverloaded != db.Overloaded {
		changed = true
	}
	g.overloaded[me] = db.Overloaded

	oldLabel, hadLabel := g.nodeLabels[me]
	if db.ValidNodeLabel() {
		if !hadLabel || oldLabel != db.NodeLabel {
			changed = true
		}
		g.nodeLabels[me] = db.NodeLabel
	} else if hadLabel {
		changed = true
		delete(g.nodeLabels, me)
	}

	if changed {
		ls.invalidate(db.Area)
	}
	return UpdateResult{TopologyChanged: changed}
}

// DeleteAdjacencyDatabase immediately withdraws every link `node` advertised
// in `area`, with no hold (the node is gone, there is nothing left to drain
// gracefully towards).
func (ls *LinkState) DeleteAdjacencyDatabase(area state.Area, node state.Node) UpdateResult {
	g := ls.graphFor(area)
	me, ok := g.lookup(node)
	if !ok {
		return UpdateResult{}
	}
	_, hadOld := g.adjOut[me]
	changed := hadOld
	for peer := range g.adjOut[me] {
		link := g.getOrCreateLink(me, peer)
		if link.exists() {
			changed = true
		}
		link.clearDirection(me)
		link.holdPhase = holdNone
		link.holdTtl = 0
		link.pendingClearA = false
		link.pendingClearB = false
	}
	delete(g.adjOut, me)
	delete(g.nodeLabels, me)
	delete(g.overloaded, me)
	delete(g.ttlVersion, me)
	if changed {
		ls.invalidate(area)
	}
	return UpdateResult{TopologyChanged: changed}
}

// DecrementHolds monotonically decreases every armed hold timer by one tick;
// a timer reaching zero commits its link's transition (a holdUp link
// becomes usable, a holdDown link is actually torn down).
func (ls *LinkState) DecrementHolds() UpdateResult {
	changed := false
	for area, g := range ls.graphs {
		for _, link := range g.links {
			if link.holdPhase == holdNone || link.holdTtl == 0 {
				continue
			}
			link.holdTtl--
			if link.holdTtl == 0 {
				switch link.holdPhase {
				case holdUp:
					link.holdPhase = holdNone
					changed = true
				case holdDown:
					link.holdPhase = holdNone
					link.commitPendingClears()
					changed = true
				}
				ls.invalidate(area)
			}
		}
	}
	return UpdateResult{TopologyChanged: changed}
}

func (ls *LinkState) HasNode(area state.Area, n state.Node) bool {
	return ls.graphFor(area).hasNode(n)
}

func (ls *LinkState) IsNodeOverloaded(area state.Area, n state.Node) bool {
	g := ls.graphFor(area)
	id, ok := g.lookup(n)
	if !ok {
		return false
	}
	return g.overloaded[id]
}

func (ls *LinkState) NodeLabel(area state.Area, n state.Node) (uint32, bool) {
	g := ls.graphFor(area)
	id, ok := g.lookup(n)
	if !ok {
		return 0, false
	}
	l, ok := g.nodeLabels[id]
	return l, ok
}

// AllNodeLabels returns every node in `area` that advertises a non-zero
// node label.
func (ls *LinkState) AllNodeLabels(area state.Area) map[state.Node]uint32 {
	g := ls.graphFor(area)
	out := make(map[state.Node]uint32, len(g.nodeLabels))
	for id, label := range g.nodeLabels {
		out[g.nodes[id]] = label
	}
	return out
}

// AllNodes returns every node that has advertised an adjacency database in
// `area`.
func (ls *LinkState) AllNodes(area state.Area) []state.Node {
	g := ls.graphFor(area)
	out := make([]state.Node, 0, len(g.adjOut))
	for id := range g.adjOut {
		out = append(out, g.nodes[id])
	}
	return out
}

func toLink(g *Graph, from, to nodeID, l *establishedLink) Link {
	adj := l.adjOf(from)
	return Link{
		From:     g.nodes[from],
		To:       g.nodes[to],
		IfName:   adj.ifName,
		NhV4:     adj.nhV4,
		NhV6:     adj.nhV6,
		Metric:   l.effectiveMetric(),
		AdjLabel: adj.adjLabel,
		Area:     g.area,
	}
}

// LinksFromNode returns every usable established link with `n` as the
// origin endpoint, in `n`'s own advertised terms (its ifName/next-hop
// towards each peer).
func (ls *LinkState) LinksFromNode(area state.Area, n state.Node) []Link {
	g := ls.graphFor(area)
	id, ok := g.lookup(n)
	if !ok {
		return nil
	}
	var out []Link
	g.usableNeighbors(id, func(peer nodeID, link *establishedLink) {
		out = append(out, toLink(g, id, peer, link))
	})
	return out
}

// MetricFromAToB returns the effective (bidirectional-agreed) metric of the
// direct link between a and b, if one is established and usable.
func (ls *LinkState) MetricFromAToB(area state.Area, a, b state.Node) (uint32, bool) {
	g := ls.graphFor(area)
	idA, okA := g.lookup(a)
	idB, okB := g.lookup(b)
	if !okA || !okB {
		return 0, false
	}
	link, ok := g.link(idA, idB)
	if !ok || !link.usable() {
		return 0, false
	}
	return link.effectiveMetric(), true
}

// AdjacencyDatabase reconstructs the wire-level AdjacencyDatabase last
// advertised by `node` in `area`, for introspection RPCs — LinkState never
// keeps the original struct around, only the bookkeeping it mutated.
func (ls *LinkState) AdjacencyDatabase(area state.Area, node state.Node) (state.AdjacencyDatabase, bool) {
	g := ls.graphFor(area)
	id, ok := g.lookup(node)
	if !ok {
		return state.AdjacencyDatabase{}, false
	}
	raw, advertised := g.adjOut[id]
	if !advertised {
		return state.AdjacencyDatabase{}, false
	}
	adjs := make([]state.Adjacency, 0, len(raw))
	for peer, adj := range raw {
		adjs = append(adjs, state.Adjacency{
			ToNode:   g.nodes[peer],
			IfName:   adj.ifName,
			NhV4:     adj.nhV4,
			NhV6:     adj.nhV6,
			Metric:   adj.metric,
			AdjLabel: adj.adjLabel,
			Area:     area,
		})
	}
	return state.AdjacencyDatabase{
		ThisNode:    node,
		Area:        area,
		NodeLabel:   g.nodeLabels[id],
		Overloaded:  g.overloaded[id],
		Adjacencies: adjs,
		TtlVersion:  g.ttlVersion[id],
	}, true
}

// AdjacencyDatabases returns every node's AdjacencyDatabase in `area`.
func (ls *LinkState) AdjacencyDatabases(area state.Area) map[state.Node]state.AdjacencyDatabase {
	out := make(map[state.Node]state.AdjacencyDatabase)
	for _, n := range ls.AllNodes(area) {
		if db, ok := ls.AdjacencyDatabase(area, n); ok {
			out[n] = db
		}
	}
	return out
}

// GetHopsFromAToB returns the direct link(s) from a to b, if adjacent.
func (ls *LinkState) GetHopsFromAToB(area state.Area, a, b state.Node) ([]Link, bool) {
	g := ls.graphFor(area)
	idA, okA := g.lookup(a)
	idB, okB := g.lookup(b)
	if !okA || !okB {
		return nil, false
	}
	link, ok := g.link(idA, idB)
	if !ok || !link.usable() {
		return nil, false
	}
	return []Link{toLink(g, idA, idB, link)}, true
}
