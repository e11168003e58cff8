package linkstate

import (
	"container/heap"

	"github.com/lsdecision/decision/state"
)

// shortestPathExcluding runs single-predecessor Dijkstra from srcId to dstId,
// optionally refusing to traverse one particular link. Equal-cost ties break
// towards the lexicographically smaller predecessor node name so the chosen
// path is stable across recomputations.
func shortestPathExcluding(g *Graph, srcId, dstId nodeID, excluded linkKey, hasExcluded bool) (Path, bool) {
	dist := map[nodeID]uint32{srcId: 0}
	prevLink := make(map[nodeID]*establishedLink)
	prevNode := make(map[nodeID]nodeID)

	pq := &priorityQueue{{node: srcId, dist: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		top := heap.Pop(pq).(pqItem)
		u := top.node
		if top.dist > dist[u] {
			continue
		}
		if u != srcId && g.overloaded[u] {
			continue
		}
		g.usableNeighbors(u, func(peer nodeID, link *establishedLink) {
			if hasExcluded && mkLinkKey(u, peer) == excluded {
				return
			}
			w := link.effectiveMetric()
			if w == state.INF {
				return
			}
			nd := addMetricSat(dist[u], w)
			cur, known := dist[peer]
			better := !known || nd < cur
			if !better && nd == cur {
				better = g.nodes[u] < g.nodes[prevNode[peer]]
			}
			if better {
				dist[peer] = nd
				prevNode[peer] = u
				prevLink[peer] = link
				heap.Push(pq, pqItem{node: peer, dist: nd})
			}
		})
	}

	if _, ok := dist[dstId]; !ok {
		return nil, false
	}

	var path Path
	cur := dstId
	for cur != srcId {
		pl, ok := prevLink[cur]
		if !ok {
			return nil, false
		}
		pn := prevNode[cur]
		path = append(Path{toLink(g, pn, cur, pl)}, path...)
		cur = pn
	}
	return path, true
}

// KthPaths returns the paths at level k between src and dst: for k=1 the
// shortest path, for k=2 the second-shortest found by removing each edge of
// the shortest path in turn, recomputing, and keeping the cheapest survivor
// (Yen's algorithm restricted to k=2). The caller is responsible for the
// cross-destination anti-double-spray filter.
func (ls *LinkState) KthPaths(area state.Area, src, dst state.Node, k int) []Path {
	g := ls.graphFor(area)
	srcId, ok := g.lookup(src)
	if !ok {
		return nil
	}
	dstId, ok := g.lookup(dst)
	if !ok {
		return nil
	}

	first, ok := shortestPathExcluding(g, srcId, dstId, linkKey{}, false)
	if !ok {
		return nil
	}
	if k <= 1 {
		return []Path{first}
	}

	var best Path
	bestCost := state.INF
	found := false
	for _, edge := range first {
		fromId, ok := g.lookup(edge.From)
		if !ok {
			continue
		}
		toId, ok := g.lookup(edge.To)
		if !ok {
			continue
		}
		excl := mkLinkKey(fromId, toId)
		cand, ok := shortestPathExcluding(g, srcId, dstId, excl, true)
		if !ok {
			continue
		}
		cost := cand.Cost()
		if !found || cost < bestCost {
			best = cand
			bestCost = cost
			found = true
		}
	}

	if !found {
		return nil
	}
	return []Path{best}
}
