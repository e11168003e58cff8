package linkstate

import (
	"container/heap"
	"time"

	"github.com/lsdecision/decision/state"
)

// addMetricSat adds two metrics, saturating at state.INF so an overflow (or
// either operand already being unreachable) never wraps around to a small
// number.
func addMetricSat(a, b uint32) uint32 {
	if a == state.INF || b == state.INF {
		return state.INF
	}
	sum := uint64(a) + uint64(b)
	if sum >= uint64(state.INF) {
		return state.INF
	}
	return uint32(sum)
}

type pqItem struct {
	node nodeID
	dist uint32
}

type priorityQueue []pqItem

func (pq priorityQueue) Len() int           { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool { return pq[i].dist < pq[j].dist }
func (pq priorityQueue) Swap(i, j int)      { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x any)        { *pq = append(*pq, x.(pqItem)) }
func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

// spfRun is the raw (node-id keyed) Dijkstra result for one source.
type spfRun struct {
	dist     map[nodeID]uint32
	nextHops map[nodeID]map[nodeID]struct{}
}

// dijkstra computes shortest distances and ECMP next-hop sets from src.
// Overloaded nodes are transit-forbidden: relaxation never proceeds out of
// an overloaded node (other than src itself), though the node remains a
// valid, reachable destination.
func dijkstra(g *Graph, srcId nodeID) spfRun {
	dist := map[nodeID]uint32{srcId: 0}
	nextHops := make(map[nodeID]map[nodeID]struct{})

	pq := &priorityQueue{{node: srcId, dist: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		top := heap.Pop(pq).(pqItem)
		u := top.node
		if top.dist > dist[u] {
			continue // stale entry
		}
		if u != srcId && g.overloaded[u] {
			continue // transit-forbidden
		}
		g.usableNeighbors(u, func(peer nodeID, link *establishedLink) {
			w := link.effectiveMetric()
			if w == state.INF {
				return
			}
			nd := addMetricSat(dist[u], w)
			cur, known := dist[peer]

			donor := map[nodeID]struct{}{peer: {}}
			if u != srcId {
				donor = nextHops[u]
			}

			switch {
			case !known || nd < cur:
				dist[peer] = nd
				fresh := make(map[nodeID]struct{}, len(donor))
				for k := range donor {
					fresh[k] = struct{}{}
				}
				nextHops[peer] = fresh
				heap.Push(pq, pqItem{node: peer, dist: nd})
			case nd == cur && nd != state.INF:
				if nextHops[peer] == nil {
					nextHops[peer] = make(map[nodeID]struct{})
				}
				for k := range donor {
					nextHops[peer][k] = struct{}{}
				}
			}
		})
	}

	return spfRun{dist: dist, nextHops: nextHops}
}

func (run spfRun) toResult(g *Graph) map[state.Node]SpfEntry {
	out := make(map[state.Node]SpfEntry, len(run.dist))
	for id, d := range run.dist {
		nhIds := run.nextHops[id]
		nhs := make(map[state.Node]struct{}, len(nhIds))
		for nhId := range nhIds {
			nhs[g.nodes[nhId]] = struct{}{}
		}
		out[g.nodes[id]] = SpfEntry{Metric: d, NextHops: nhs}
	}
	return out
}

// SpfResult returns the cached shortest-path result from src in area,
// computing (and caching) it if necessary.
func (ls *LinkState) SpfResult(area state.Area, src state.Node) map[state.Node]SpfEntry {
	g := ls.graphFor(area)
	srcId, ok := g.lookup(src)
	if !ok {
		return nil
	}
	if byArea, ok := ls.spfCache[area]; ok {
		if cached, ok := byArea[src]; ok {
			return cached
		}
	} else {
		ls.spfCache[area] = make(map[state.Node]map[state.Node]SpfEntry)
	}
	start := time.Now()
	result := dijkstra(g, srcId).toResult(g)
	if ls.SpfObserver != nil {
		ls.SpfObserver(time.Since(start))
	}
	ls.spfCache[area][src] = result
	return result
}
