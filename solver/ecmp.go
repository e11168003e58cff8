package solver

import (
	"net/netip"

	"github.com/lsdecision/decision/state"
)

// selectEcmpOpenr assembles a non-BGP shortest-path-ECMP unicast route:
// destination set is every other advertiser, overloaded nodes filtered out
// unless that would empty the set.
func (s *Solver) selectEcmpOpenr(area state.Area, prefix netip.Prefix, advertisers map[state.Node]state.PrefixEntry) *state.UnicastRoute {
	var dsts []state.Node
	perDestination := false
	for node, entry := range advertisers {
		if node == s.cfg.ThisNode {
			continue
		}
		dsts = append(dsts, node)
		if entry.ForwardingType == state.ForwardingSRMPLS {
			perDestination = true
		}
	}
	if len(dsts) == 0 {
		return nil
	}
	dsts = s.filterDrainedNodes(area, dsts)

	minMetric, nhNodes := s.getNextHopsWithMetric(area, s.cfg.ThisNode, dsts, perDestination)
	if len(nhNodes) == 0 {
		s.counters.NoRouteToPrefix.Add(1)
		return nil
	}
	links := s.ls.LinksFromNode(area, s.cfg.ThisNode)
	isV4 := prefix.Addr().Is4()
	nhs := s.getNextHopsThrift(area, links, dsts, perDestination, minMetric, nhNodes, nil, &isV4)
	if nhs.Len() == 0 {
		return nil
	}
	return &state.UnicastRoute{Prefix: prefix, Nexthops: nhs}
}
