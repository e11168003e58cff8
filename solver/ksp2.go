package solver

import (
	"net/netip"
	"time"

	"github.com/lsdecision/decision/linkstate"
	"github.com/lsdecision/decision/state"
)

// pathToNextHop builds a KSP2 next-hop from a traversed path: the next-hop
// itself is the path's first link, annotated with a PUSH label stack built
// from every subsequent hop's node-label (the first hop needs none, per
// PHP), with the destination's prependLabel (if any) pushed onto the bottom
// of the stack.
func (s *Solver) pathToNextHop(area state.Area, path linkstate.Path, advertisers map[state.Node]state.PrefixEntry, isV4 bool) *state.NextHop {
	if len(path) == 0 {
		return nil
	}
	first := path[0]
	dst := path[len(path)-1].To

	var stack []uint32
	for i := len(path) - 1; i >= 1; i-- {
		label, ok := s.ls.NodeLabel(area, path[i].To)
		if !ok || label == 0 || label >= state.MaxLabel {
			continue
		}
		stack = append(stack, label)
	}
	if entry, ok := advertisers[dst]; ok && entry.PrependLabel != nil {
		stack = append([]uint32{*entry.PrependLabel}, stack...)
	}

	nh := &state.NextHop{
		Iface:       first.IfName,
		Metric:      path.Cost(),
		NonShortest: true,
		Area:        first.Area,
	}
	if isV4 {
		nh.Addr = first.NhV4
	} else {
		nh.Addr = first.NhV6
	}
	if len(stack) > 0 {
		nh.Mpls = &state.MplsAction{Type: state.MplsPush, PushLabels: stack}
	}
	return nh
}

// ksp2Destinations resolves the KSP2 destination set. For a BGP prefix that
// is the winning set, with one twist: a best path originated by self is
// normally skipped, except when self carries a prependLabel and other
// winners exist (anycast self).
func (s *Solver) ksp2Destinations(area state.Area, advertisers map[state.Node]state.PrefixEntry, hasBGP bool) (dsts []state.Node, primary state.Node, bestIgpMetric uint32, ok bool) {
	if !hasBGP {
		for node := range advertisers {
			if node != s.cfg.ThisNode {
				dsts = append(dsts, node)
			}
		}
		return s.filterDrainedNodes(area, sortedNodes(dsts)), "", 0, len(dsts) > 0
	}

	winners, primary, bestIgpMetric, ok := s.bgpBestPath(area, advertisers)
	if !ok {
		s.counters.NoRouteToPrefix.Add(1)
		return nil, "", 0, false
	}
	selfWins := false
	for _, w := range winners {
		if w == s.cfg.ThisNode {
			selfWins = true
		}
	}
	selfEntry, selfAdvertises := advertisers[s.cfg.ThisNode]
	selfHasPrepend := selfAdvertises && selfEntry.PrependLabel != nil
	if selfWins && !(len(winners) > 1 && selfHasPrepend) {
		// best path originated by self
		return nil, "", 0, false
	}
	return s.filterDrainedNodes(area, sortedNodes(winners)), primary, bestIgpMetric, len(winners) > 0
}

// selectKsp2 assembles a KSP2-ed-ECMP unicast route: the shortest path
// towards every destination plus any second-shortest path that does not
// contain a retained shortest path as a contiguous edge subsequence (the
// anti-double-spray rule, which matters for anycast prefixes), each
// label-switched via SR-MPLS.
func (s *Solver) selectKsp2(area state.Area, prefix netip.Prefix, advertisers map[state.Node]state.PrefixEntry, hasBGP bool) *state.UnicastRoute {
	for _, entry := range advertisers {
		if entry.ForwardingType != state.ForwardingSRMPLS {
			s.counters.IncompatibleForwardingTyp.Add(1)
			return nil
		}
	}

	dsts, primary, bestIgpMetric, ok := s.ksp2Destinations(area, advertisers, hasBGP)
	if !ok {
		return nil
	}

	start := time.Now()
	anycastSelf := false
	var paths []linkstate.Path
	for _, d := range dsts {
		if d == s.cfg.ThisNode {
			anycastSelf = true
			continue
		}
		paths = append(paths, s.ls.KthPaths(area, s.cfg.ThisNode, d, 1)...)
	}
	firstPaths := len(paths)
	for _, d := range dsts {
		if d == s.cfg.ThisNode {
			continue
		}
	secondPaths:
		for _, sec := range s.ls.KthPaths(area, s.cfg.ThisNode, d, 2) {
			for i := 0; i < firstPaths; i++ {
				if sec.ContainsSubpath(paths[i]) {
					continue secondPaths
				}
			}
			paths = append(paths, sec)
		}
	}
	s.counters.PathBuildMs.Add(time.Since(start).Seconds() * 1000)

	if len(paths) == 0 {
		return nil
	}

	isV4 := prefix.Addr().Is4()
	nhs := state.NewNextHopSet()
	for _, p := range paths {
		if nh := s.pathToNextHop(area, p, advertisers, isV4); nh != nil {
			nhs.Add(*nh)
		}
	}

	staticNexthops := 0
	if anycastSelf {
		if entry, ok := advertisers[s.cfg.ThisNode]; ok && entry.PrependLabel != nil {
			if set, ok := s.staticMpls[*entry.PrependLabel]; ok {
				for _, nh := range set.Slice() {
					nh.Metric = 0
					nh.Iface = ""
					nh.Area = ""
					nh.NonShortest = true
					nhs.Add(nh)
					staticNexthops++
				}
			}
		}
	}

	minNexthop := 0
	for _, d := range dsts {
		if entry, ok := advertisers[d]; ok && entry.MinNexthop != nil && *entry.MinNexthop > minNexthop {
			minNexthop = *entry.MinNexthop
		}
	}
	if dynamic := nhs.Len() - staticNexthops; minNexthop > dynamic {
		return nil
	}
	if nhs.Len() == 0 {
		return nil
	}

	route := &state.UnicastRoute{Prefix: prefix, Nexthops: nhs}

	if hasBGP {
		vias := s.ps.GetLoopbackVias([]state.Node{primary}, isV4, map[state.Node]uint32{primary: bestIgpMetric})
		if len(vias) != 1 {
			s.counters.MissingLoopbackAddr.Add(1)
			return nil
		}
		entry := advertisers[primary]
		route.BestNexthop = &vias[0]
		route.BestPrefixEntry = &entry
		route.DoNotInstall = s.cfg.BgpDryRun
	}

	return route
}
