// Package solver implements SpfSolver: per-area best-path selection and
// route assembly.
package solver

import (
	"net/netip"
	"sort"

	"github.com/lsdecision/decision/counters"
	"github.com/lsdecision/decision/linkstate"
	"github.com/lsdecision/decision/metricvector"
	"github.com/lsdecision/decision/prefixstate"
	"github.com/lsdecision/decision/state"
)

// Solver is SpfSolver scoped to one node's local configuration; it reads
// (but never mutates) the shared LinkState/PrefixState.
type Solver struct {
	cfg      state.DecisionConfig
	ls       *linkstate.LinkState
	ps       *prefixstate.State
	counters *counters.Registry

	staticMpls map[uint32]*state.NextHopSet
}

func New(cfg state.DecisionConfig, ls *linkstate.LinkState, ps *prefixstate.State, reg *counters.Registry) *Solver {
	return &Solver{cfg: cfg, ls: ls, ps: ps, counters: reg}
}

// SetStaticMplsRoutes supplies the statically-configured MPLS routes
// (keyed by top label) used to resolve anycast-self augmentation in
// selectKsp2.
func (s *Solver) SetStaticMplsRoutes(routes map[uint32]*state.NextHopSet) {
	s.staticMpls = routes
}

func addSat(a, b uint32) uint32 {
	if a == state.INF || b == state.INF {
		return state.INF
	}
	sum := uint64(a) + uint64(b)
	if sum >= uint64(state.INF) {
		return state.INF
	}
	return uint32(sum)
}

// BuildRouteDb computes the area-scoped RouteDb: one unicast entry per
// advertised prefix plus the area's MPLS label routes. Returns false if
// `area` doesn't know about the local node at all.
func (s *Solver) BuildRouteDb(area state.Area) (*state.RouteDb, bool) {
	if !s.ls.HasNode(area, s.cfg.ThisNode) {
		return nil, false
	}
	rdb := state.NewRouteDb(s.cfg.ThisNode)

	for prefix, advertisers := range s.ps.Prefixes() {
		if route := s.buildPrefix(area, prefix, advertisers); route != nil {
			rdb.UnicastRoutes[prefix] = route
		}
	}
	s.buildMplsRoutes(area, rdb)
	return rdb, true
}

func (s *Solver) buildPrefix(area state.Area, prefix netip.Prefix, advertisers map[state.Node]state.PrefixEntry) *state.UnicastRoute {
	var hasBGP, hasNonBGP, hasSpEcmp, missingMv, selfAdvertises bool
	for node, entry := range advertisers {
		if entry.IsBGP() {
			hasBGP = true
			if entry.MetricVector == nil {
				missingMv = true
			}
		} else {
			hasNonBGP = true
		}
		if entry.ForwardingAlgorithm == state.AlgoSpEcmp {
			hasSpEcmp = true
		}
		if node == s.cfg.ThisNode {
			selfAdvertises = true
		}
	}

	if hasBGP && hasNonBGP {
		s.counters.SkippedUnicastRoute.Add(1)
		return nil
	}
	if hasBGP && missingMv {
		s.counters.SkippedUnicastRoute.Add(1)
		return nil
	}
	if selfAdvertises && !hasBGP {
		return nil
	}
	if prefix.Addr().Is4() && !s.cfg.V4Enabled {
		s.counters.SkippedUnicastRoute.Add(1)
		return nil
	}

	switch {
	case hasSpEcmp && hasBGP:
		return s.selectEcmpBgp(area, prefix, advertisers)
	case hasSpEcmp:
		return s.selectEcmpOpenr(area, prefix, advertisers)
	default:
		return s.selectKsp2(area, prefix, advertisers, hasBGP)
	}
}

func sortedNodes(nodes []state.Node) []state.Node {
	out := make([]state.Node, len(nodes))
	copy(out, nodes)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// filterDrainedNodes drops overloaded nodes from a destination set, unless
// that would empty it — a fully drained advertiser set is still routed to.
func (s *Solver) filterDrainedNodes(area state.Area, dsts []state.Node) []state.Node {
	filtered := make([]state.Node, 0, len(dsts))
	for _, d := range dsts {
		if !s.ls.IsNodeOverloaded(area, d) {
			filtered = append(filtered, d)
		}
	}
	if len(filtered) == 0 {
		return dsts
	}
	return filtered
}

// bgpBestPath runs BGP best-path selection over every prefix advertiser
// reachable from the local node. It returns the full winning set
// (ECMP-eligible ties included), the single "primary" winner used to
// resolve bestNexthop, and the smallest IGP metric observed among all
// candidates. ok is false when no candidate survived or an irreconcilable
// Tie/Error outcome aborted selection.
func (s *Solver) bgpBestPath(area state.Area, advertisers map[state.Node]state.PrefixEntry) (winners []state.Node, primary state.Node, bestIgpMetric uint32, ok bool) {
	spf := s.ls.SpfResult(area, s.cfg.ThisNode)
	bestIgpMetric = state.INF

	candidates := make([]state.Node, 0, len(advertisers))
	for node := range advertisers {
		candidates = append(candidates, node)
	}
	candidates = sortedNodes(candidates)

	var best *state.MetricVector
	for _, node := range candidates {
		entry := advertisers[node]

		spfEntry, reachable := spf[node]
		if !reachable {
			continue
		}
		igpMetric := spfEntry.Metric

		if metricvector.HasOwnedEntity(entry.MetricVector) {
			continue
		}
		cand := entry.MetricVector
		if s.cfg.BgpUseIgpMetric {
			cand = metricvector.WithIgpCost(cand, igpMetric)
		}
		if igpMetric < bestIgpMetric {
			bestIgpMetric = igpMetric
		}

		if best == nil {
			best = cand
			primary = node
			winners = []state.Node{node}
			continue
		}

		switch metricvector.CompareMetricVectors(cand, best) {
		case metricvector.Winner:
			best = cand
			primary = node
			winners = []state.Node{node}
		case metricvector.TieWinner:
			best = cand
			primary = node
			winners = append(winners, node)
		case metricvector.TieLooser:
			winners = append(winners, node)
		case metricvector.Looser:
			// strictly worse, discarded
		default:
			return nil, "", 0, false
		}
	}
	return winners, primary, bestIgpMetric, best != nil
}
