package solver

import (
	"net/netip"

	"github.com/lsdecision/decision/state"
)

// selectEcmpBgp assembles a shortest-path-ECMP unicast route whose
// destination set is the BGP winning set rather than every advertiser.
func (s *Solver) selectEcmpBgp(area state.Area, prefix netip.Prefix, advertisers map[state.Node]state.PrefixEntry) *state.UnicastRoute {
	winners, primary, bestIgpMetric, ok := s.bgpBestPath(area, advertisers)
	if !ok {
		s.counters.NoRouteToPrefix.Add(1)
		return nil
	}
	if len(winners) == 0 {
		s.counters.NoRouteToPrefix.Add(1)
		return nil
	}
	// never program a route we advertise the best path to ourselves
	for _, w := range winners {
		if w == s.cfg.ThisNode {
			return nil
		}
	}
	winners = s.filterDrainedNodes(area, winners)

	isV4 := prefix.Addr().Is4()
	vias := s.ps.GetLoopbackVias([]state.Node{primary}, isV4, map[state.Node]uint32{primary: bestIgpMetric})
	if len(vias) != 1 {
		s.counters.MissingLoopbackAddr.Add(1)
		return nil
	}

	minMetric, nhNodes := s.getNextHopsWithMetric(area, s.cfg.ThisNode, winners, false)
	links := s.ls.LinksFromNode(area, s.cfg.ThisNode)
	nhs := s.getNextHopsThrift(area, links, winners, false, minMetric, nhNodes, nil, &isV4)

	entry := advertisers[primary]
	return &state.UnicastRoute{
		Prefix:          prefix,
		Nexthops:        nhs,
		BestPrefixEntry: &entry,
		BestNexthop:     &vias[0],
		DoNotInstall:    s.cfg.BgpDryRun,
	}
}
